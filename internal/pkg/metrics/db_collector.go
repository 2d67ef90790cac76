package metrics

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolStatter reports connection pool state for the active store.
type PoolStatter interface {
	PoolStats() PoolStats
}

// PoolStats is a driver-neutral pool snapshot.
type PoolStats struct {
	InUse int
	Idle  int
	Max   int
}

// RecordPoolStats updates database pool metrics.
func RecordPoolStats(stats PoolStats) {
	DBPoolConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	DBPoolConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	DBPoolConnections.WithLabelValues("max").Set(float64(stats.Max))
}

// PgxPoolStats reads a pgx pool snapshot.
func PgxPoolStats(pool *pgxpool.Pool) PoolStats {
	stats := pool.Stat()
	return PoolStats{
		InUse: int(stats.AcquiredConns()),
		Idle:  int(stats.IdleConns()),
		Max:   int(stats.MaxConns()),
	}
}

// SQLPoolStats reads a database/sql pool snapshot.
func SQLPoolStats(db *sql.DB) PoolStats {
	stats := db.Stats()
	return PoolStats{
		InUse: stats.InUse,
		Idle:  stats.Idle,
		Max:   stats.MaxOpenConnections,
	}
}
