package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "rowlink", cmd.Use)
	assert.Contains(t, cmd.Long, "ROWLINK_DSN")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"migrate", "rollback", "reset", "status", "ddl"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, DefaultConfigFile, configFlag.DefValue)

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)

	for _, name := range []string{"dialect", "dsn", "dir", "table"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	migrateCmd, _, err := cmd.Find([]string{"migrate"})
	require.NoError(t, err)
	assert.NotNil(t, migrateCmd.Flags().Lookup("dry-run"))

	ddlCmd, _, err := cmd.Find([]string{"ddl"})
	require.NoError(t, err)
	assert.NotNil(t, ddlCmd.Flags().Lookup("down"))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("boom")))
	err := fmt.Errorf("wrapped: %w", commandError(errors.New("bad flag")))
	assert.Equal(t, ExitCommandError, ExitCode(err))
	assert.EqualError(t, err, "wrapped: bad flag")
}
