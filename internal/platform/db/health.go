package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the connection pool snapshot reported by the health endpoint.
// Acquired includes connections pinned by held booking locks, so a pool that
// sits near Max under load is a sign the lock wait or pool size needs tuning.
type PoolStats struct {
	Total         int32  `json:"total_conns"`
	Idle          int32  `json:"idle_conns"`
	Acquired      int32  `json:"acquired_conns"`
	Max           int32  `json:"max_conns"`
	AcquireCount  int64  `json:"acquire_count"`
	EmptyAcquires int64  `json:"empty_acquire_count"`
	PingLatency   string `json:"ping_latency,omitempty"`
}

func snapshotPool(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		Total:         stat.TotalConns(),
		Idle:          stat.IdleConns(),
		Acquired:      stat.AcquiredConns(),
		Max:           stat.MaxConns(),
		AcquireCount:  stat.AcquireCount(),
		EmptyAcquires: stat.EmptyAcquireCount(),
	}
}

// HealthHandler serves the database health check: a bounded ping plus the
// pool snapshot. Unreachable database answers 503 so load balancers drain
// the instance instead of routing bookings into failed allocations.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		start := time.Now()
		err := pool.Ping(ctx)
		stats := snapshotPool(pool)
		stats.PingLatency = time.Since(start).String()

		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
				"pool":   stats,
			})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"status": "healthy",
			"pool":   stats,
		})
	}
}
