package sql

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/syssam/rowlink/dialect"
)

func mockDriver(t *testing.T, d string) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return OpenDB(d, db), mock
}

func TestStatsDriver(t *testing.T) {
	drv, mock := mockDriver(t, dialect.Postgres)
	var slow []string
	stats := NewStatsDriver(drv,
		WithSlowThreshold(-1),
		WithSlowQueryHook(func(_ context.Context, query string, _ []Value, _ time.Duration) {
			slow = append(slow, query)
		}),
	)
	ctx := context.Background()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("DELETE").WillReturnError(errors.New("locked"))

	_, err := stats.Query(ctx, "SELECT 1", nil)
	require.NoError(t, err)
	_, err = stats.Exec(ctx, "DELETE FROM t", nil)
	require.Error(t, err)

	snap := stats.QueryStats().Stats()
	assert.Equal(t, int64(1), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.TotalExecs)
	assert.Equal(t, int64(1), snap.Errors)
	assert.Equal(t, int64(2), snap.SlowQueries)
	assert.Equal(t, []string{"SELECT 1", "DELETE FROM t"}, slow)
	assert.Contains(t, snap.String(), "queries=1 execs=1")

	stats.SetSlowThreshold(time.Hour)
	assert.Equal(t, time.Hour, stats.SlowThreshold())
	stats.QueryStats().Reset()
	assert.Zero(t, stats.QueryStats().Stats().TotalQueries)
	assert.Zero(t, StatsSnapshot{}.AvgQueryDuration())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsDriverTx(t *testing.T) {
	drv, mock := mockDriver(t, dialect.SQLite)
	stats := NewStatsDriver(drv)
	db := NewDatabase(MustGrammar(dialect.SQLite), stats)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(escape(`DELETE FROM "users"`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, db.Transaction(ctx, func(tx *Database) error {
		_, err := tx.Table("users").Delete(ctx)
		return err
	}))
	assert.Equal(t, int64(1), stats.QueryStats().Stats().TotalExecs)

	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	_, err := db.Run(ctx, []Statement{{SQL: "INSERT INTO t DEFAULT VALUES"}, {SQL: "SELECT last_insert_rowid() AS id"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.QueryStats().Stats().TotalQueries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDebugDriver(t *testing.T) {
	drv, mock := mockDriver(t, dialect.MySQL)
	var lines []string
	debug := NewDebugDriver(drv, DebugWithLog(func(_ context.Context, v ...any) {
		lines = append(lines, v[0].(string))
	}))
	mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 1))
	_, err := debug.Exec(context.Background(), "UPDATE t SET a = ?", Values(1))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "exec: UPDATE t SET a = ? args: [1]"), lines[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsDriver(t *testing.T) {
	drv, mock := mockDriver(t, dialect.Postgres)
	reg := prometheus.NewRegistry()
	metrics, err := NewMetricsDriver(drv, WithRegisterer(reg), WithNamespace("test"))
	require.NoError(t, err)

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("DELETE").WillReturnError(errors.New("locked"))
	_, err = metrics.Query(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	_, err = metrics.Exec(context.Background(), "DELETE FROM t", nil)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.errs.WithLabelValues("exec", dialect.Postgres)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.errs.WithLabelValues("query", dialect.Postgres)))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.duration))

	// Registering again reuses the existing collectors.
	again, err := NewMetricsDriver(drv, WithRegisterer(reg), WithNamespace("test"))
	require.NoError(t, err)
	assert.Same(t, metrics.errs, again.errs)
	assert.Len(t, again.Collectors(), 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTraceDriver(t *testing.T) {
	drv, mock := mockDriver(t, dialect.SQLite)
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	traced := NewTraceDriver(drv, WithTracer(tp.Tracer("test")))

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("DELETE").WillReturnError(errors.New("locked"))
	_, err := traced.Query(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	_, err = traced.Exec(context.Background(), "DELETE FROM t", nil)
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "rowlink.query", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("db.statement", "SELECT 1"))
	assert.Contains(t, spans[0].Attributes(), attribute.String("db.system", dialect.SQLite))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, "rowlink.exec", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
