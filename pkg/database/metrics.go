package database

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

// DBStatsCollector exports database/sql pool statistics.
type DBStatsCollector struct {
	db      *sql.DB
	backend string

	openConns     *prometheus.Desc
	inUseConns    *prometheus.Desc
	idleConns     *prometheus.Desc
	waitCount     *prometheus.Desc
	waitDuration  *prometheus.Desc
	maxOpenConns  *prometheus.Desc
	maxIdleClosed *prometheus.Desc
}

// NewDBStatsCollector creates a collector for db labelled with backend.
func NewDBStatsCollector(db *sql.DB, backend string) *DBStatsCollector {
	labels := []string{"backend"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("storefront_storage_"+name, help, labels, nil)
	}
	return &DBStatsCollector{
		db:            db,
		backend:       backend,
		openConns:     desc("open_connections", "Number of established connections"),
		inUseConns:    desc("in_use_connections", "Number of connections currently in use"),
		idleConns:     desc("idle_connections", "Number of idle connections"),
		waitCount:     desc("wait_count_total", "Total number of connections waited for"),
		waitDuration:  desc("wait_duration_seconds_total", "Total time blocked waiting for a connection"),
		maxOpenConns:  desc("max_open_connections", "Maximum number of open connections"),
		maxIdleClosed: desc("max_idle_closed_total", "Connections closed due to SetMaxIdleConns"),
	}
}

// Describe implements prometheus.Collector.
func (c *DBStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.openConns
	ch <- c.inUseConns
	ch <- c.idleConns
	ch <- c.waitCount
	ch <- c.waitDuration
	ch <- c.maxOpenConns
	ch <- c.maxIdleClosed
}

// Collect implements prometheus.Collector.
func (c *DBStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.db.Stats()
	ch <- prometheus.MustNewConstMetric(c.openConns, prometheus.GaugeValue, float64(s.OpenConnections), c.backend)
	ch <- prometheus.MustNewConstMetric(c.inUseConns, prometheus.GaugeValue, float64(s.InUse), c.backend)
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(s.Idle), c.backend)
	ch <- prometheus.MustNewConstMetric(c.waitCount, prometheus.CounterValue, float64(s.WaitCount), c.backend)
	ch <- prometheus.MustNewConstMetric(c.waitDuration, prometheus.CounterValue, s.WaitDuration.Seconds(), c.backend)
	ch <- prometheus.MustNewConstMetric(c.maxOpenConns, prometheus.GaugeValue, float64(s.MaxOpenConnections), c.backend)
	ch <- prometheus.MustNewConstMetric(c.maxIdleClosed, prometheus.CounterValue, float64(s.MaxIdleClosed), c.backend)
}

// RegisterDBStats registers a collector for db with reg. Registering the same
// backend twice returns the prometheus.AlreadyRegisteredError.
func RegisterDBStats(reg prometheus.Registerer, db *sql.DB, backend string) error {
	return reg.Register(NewDBStatsCollector(db, backend))
}
