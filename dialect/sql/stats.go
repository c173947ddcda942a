package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// QueryStats holds query execution statistics.
type QueryStats struct {
	// TotalQueries is the total number of queries executed.
	TotalQueries atomic.Int64
	// TotalExecs is the total number of exec statements executed.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing queries.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of queries exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of query errors.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgQueryDuration returns the average statement duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Errors,
	)
}

// SlowQueryHook is a function called when a slow statement is detected.
type SlowQueryHook func(ctx context.Context, query string, args []Value, duration time.Duration)

// StatsDriver wraps an Executor with statement statistics.
type StatsDriver struct {
	observed
	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// StatsOption configures the StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the threshold for slow query detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements to the given logger, or to the
// default logger when l is nil.
func WithSlowQueryLog(l *slog.Logger) StatsOption {
	if l == nil {
		l = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, query string, args []Value, duration time.Duration) {
		l.WarnContext(ctx, "slow query detected", "duration", duration, "query", query, "args", args)
	})
}

// NewStatsDriver wraps an Executor with statistics collection.
//
// Example:
//
//	drv, _ := sql.Open("postgres", dsn)
//	stats := sql.NewStatsDriver(drv,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(nil),
//	)
//	db := sql.NewDatabase(sql.MustGrammar(drv.Dialect()), stats)
//
//	// Later, check statistics:
//	fmt.Println(stats.QueryStats().Stats())
func NewStatsDriver(e Executor, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	s.observed = observed{Executor: e, observe: s.record}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (d *StatsDriver) QueryStats() *QueryStats {
	return d.stats
}

// SlowThreshold returns the current slow query threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.slowThreshold
}

// SetSlowThreshold updates the slow query threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slowThreshold = threshold
}

func (d *StatsDriver) record(ctx context.Context, op Op, query string, args []Value, start time.Time, err error) {
	duration := time.Since(start)
	if op == OpQuery {
		d.stats.TotalQueries.Add(1)
	} else {
		d.stats.TotalExecs.Add(1)
	}
	d.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		d.stats.Errors.Add(1)
	}

	d.mu.RLock()
	threshold := d.slowThreshold
	hook := d.slowHook
	d.mu.RUnlock()

	if duration > threshold {
		d.stats.SlowQueries.Add(1)
		if hook != nil {
			hook(ctx, query, args, duration)
		}
	}
}

// DebugDriver wraps an Executor with debug logging.
type DebugDriver struct {
	observed
	log func(context.Context, ...any)
}

// DebugOption configures the DebugDriver.
type DebugOption func(*DebugDriver)

// DebugWithLog sets a custom log function.
func DebugWithLog(logFunc func(context.Context, ...any)) DebugOption {
	return func(d *DebugDriver) {
		d.log = logFunc
	}
}

// NewDebugDriver wraps an Executor with debug logging.
//
// Example:
//
//	debug := sql.NewDebugDriver(drv, sql.DebugWithLog(func(ctx context.Context, v ...any) {
//	    log.Println(v...)
//	}))
func NewDebugDriver(e Executor, opts ...DebugOption) *DebugDriver {
	d := &DebugDriver{
		log: func(ctx context.Context, v ...any) {
			slog.InfoContext(ctx, fmt.Sprint(v...))
		},
	}
	d.observed = observed{Executor: e, observe: func(ctx context.Context, op Op, query string, args []Value, start time.Time, err error) {
		if err != nil {
			d.log(ctx, fmt.Sprintf("%s: %s args: %v took: %s err: %v", op, query, args, time.Since(start), err))
			return
		}
		d.log(ctx, fmt.Sprintf("%s: %s args: %v took: %s", op, query, args, time.Since(start)))
	}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OpenWithStats opens a database connection with statistics collection
// enabled.
//
// Example:
//
//	drv, stats, err := sql.OpenWithStats("postgres", dsn,
//	    sql.WithSlowThreshold(100*time.Millisecond),
//	    sql.WithSlowQueryLog(nil),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go func() {
//	    for range time.Tick(time.Minute) {
//	        log.Printf("query stats: %s", stats.Stats())
//	    }
//	}()
func OpenWithStats(driverName, source string, opts ...StatsOption) (*StatsDriver, *QueryStats, error) {
	drv, err := Open(driverName, source)
	if err != nil {
		return nil, nil, err
	}
	statsDriver := NewStatsDriver(drv, opts...)
	return statsDriver, statsDriver.QueryStats(), nil
}
