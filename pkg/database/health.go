package database

import (
	"context"
	"time"
)

// Health statuses reported by Client.Health.
const (
	StatusHealthy   = "healthy"
	StatusSaturated = "saturated"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus is the result of a ping plus pool statistics.
type HealthStatus struct {
	Status        string `json:"status"`
	PingMillis    int64  `json:"response_time_ms"`
	MaxConns      int32  `json:"max_connections"`
	TotalConns    int32  `json:"total_connections"`
	AcquiredConns int32  `json:"acquired_connections"`
	IdleConns     int32  `json:"idle_connections"`
	// EmptyAcquires counts acquires that had to wait for a connection.
	EmptyAcquires     int64 `json:"empty_acquire_count"`
	AcquireWaitMillis int64 `json:"acquire_duration_ms"`
}

// Health pings the database. A reachable pool with every connection in use
// reports StatusSaturated; callers treat that as degraded, not down.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	err := c.pool.Ping(ctx)
	h := &HealthStatus{Status: StatusHealthy, PingMillis: time.Since(start).Milliseconds()}
	if err != nil {
		h.Status = StatusUnhealthy
		return h, err
	}

	st := c.pool.Stat()
	h.MaxConns = st.MaxConns()
	h.TotalConns = st.TotalConns()
	h.AcquiredConns = st.AcquiredConns()
	h.IdleConns = st.IdleConns()
	h.EmptyAcquires = st.EmptyAcquireCount()
	h.AcquireWaitMillis = st.AcquireDuration().Milliseconds()
	if h.MaxConns > 0 && h.AcquiredConns >= h.MaxConns {
		h.Status = StatusSaturated
	}
	return h, nil
}
