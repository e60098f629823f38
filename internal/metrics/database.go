package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DBConnections reports pool connections by state: open, in_use, idle, max.
	DBConnections = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections",
			Help:      "Database pool connections by state",
		},
		[]string{"state"},
	)

	// DBAcquireWaitSeconds is the cumulative time spent acquiring connections.
	// A rising slope means the pool is too small.
	DBAcquireWaitSeconds = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_acquire_wait_seconds",
			Help:      "Cumulative time spent acquiring pooled connections",
		},
	)
)

// PoolStatter is satisfied by *pgxpool.Pool.
type PoolStatter interface {
	Stat() *pgxpool.Stat
}

// PoolStats is the subset of pool statistics that is exported.
type PoolStats struct {
	Total    int32
	Acquired int32
	Idle     int32
	Max      int32
	WaitTime time.Duration
}

// DBCollector copies pool statistics into gauges on an interval.
type DBCollector struct {
	read     func() (PoolStats, bool)
	stopOnce sync.Once
	stopChan chan struct{}
}

func NewDBCollector(pool PoolStatter) *DBCollector {
	return &DBCollector{
		read: func() (PoolStats, bool) {
			if pool == nil {
				return PoolStats{}, false
			}
			stat := pool.Stat()
			return PoolStats{
				Total:    stat.TotalConns(),
				Acquired: stat.AcquiredConns(),
				Idle:     stat.IdleConns(),
				Max:      stat.MaxConns(),
				WaitTime: stat.AcquireDuration(),
			}, true
		},
		stopChan: make(chan struct{}),
	}
}

// Start collects immediately and then every interval until Stop or ctx ends.
func (c *DBCollector) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop may be called more than once.
func (c *DBCollector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *DBCollector) collect() {
	stats, ok := c.read()
	if !ok {
		return
	}
	DBConnections.WithLabelValues("open").Set(float64(stats.Total))
	DBConnections.WithLabelValues("in_use").Set(float64(stats.Acquired))
	DBConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	DBConnections.WithLabelValues("max").Set(float64(stats.Max))
	DBAcquireWaitSeconds.Set(stats.WaitTime.Seconds())
}
