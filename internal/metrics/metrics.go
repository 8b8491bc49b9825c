// Package metrics exposes Prometheus counters for session migration
// outcomes. Registration is lazy and optional: hosts that never call
// InitMetrics pay nothing, and recording is a no-op until they do.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsMigratedTotal  prometheus.Counter
	migrationsSkippedTotal *prometheus.CounterVec
	migrationFallbackTotal prometheus.Counter

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered bool
)

// MigrationMetrics provides methods to record migration outcomes.
type MigrationMetrics struct{}

// NewMigrationMetrics creates a new MigrationMetrics instance.
// Metrics are lazily registered on first use.
func NewMigrationMetrics() *MigrationMetrics {
	return &MigrationMetrics{}
}

// InitMetrics initializes all Prometheus metrics.
// Call once at startup if Prometheus metrics are enabled.
func InitMetrics() {
	metricsOnce.Do(func() {
		sessionsMigratedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "keyshift_sessions_migrated_total",
			Help: "Total number of sessions regenerated onto the active secret",
		})

		migrationsSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyshift_migrations_skipped_total",
				Help: "Total number of migration checks that passed through without acting",
			},
			[]string{"reason"},
		)

		migrationFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "keyshift_migration_fallback_total",
			Help: "Total number of store lookups that collapsed to not-found in the migration fallback path",
		})

		metricsRegistered = true
	})
}

// RecordMigrated records a session regenerated onto the active secret.
func (m *MigrationMetrics) RecordMigrated() {
	if !metricsRegistered || sessionsMigratedTotal == nil {
		return
	}
	sessionsMigratedTotal.Inc()
}

// RecordSkipped records a migration check that was a no-op, labeled by the
// reason it did not act (no_previous, insecure_active, already_migrated,
// no_session, error).
func (m *MigrationMetrics) RecordSkipped(reason string) {
	if !metricsRegistered || migrationsSkippedTotal == nil {
		return
	}
	migrationsSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordFallback records a migration lookup that resolved to not-found.
func (m *MigrationMetrics) RecordFallback() {
	if !metricsRegistered || migrationFallbackTotal == nil {
		return
	}
	migrationFallbackTotal.Inc()
}
