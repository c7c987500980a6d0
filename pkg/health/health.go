package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
)

// Status is the health of a single check or of the whole checker.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc is a function that performs a health check
type CheckFunc func() error

// Check represents a single health check result
type Check struct {
	Name        string
	Status      Status
	Message     string
	LastChecked time.Time
}

// Checker manages health checks for a set of connections
type Checker struct {
	mu          sync.RWMutex
	checks      map[string]*Check
	lastHealthy time.Time
}

// NewChecker creates a new health checker
func NewChecker() *Checker {
	return &Checker{
		checks:      make(map[string]*Check),
		lastHealthy: time.Now(),
	}
}

// RunCheck executes a health check and updates the status
func (c *Checker) RunCheck(name string, checkFunc CheckFunc) {
	status := StatusHealthy
	message := "OK"

	if err := checkFunc(); err != nil {
		status = StatusUnhealthy
		message = err.Error()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks[name] = &Check{
		Name:        name,
		Status:      status,
		Message:     message,
		LastChecked: time.Now(),
	}

	// Update last healthy time if all checks pass
	if c.isHealthy() {
		c.lastHealthy = time.Now()
	}
}

// PingCheck returns a check that pings conn within timeout.
func PingCheck(ctx context.Context, conn adapter.Connection, timeout time.Duration) CheckFunc {
	return func() error {
		if !conn.IsConnected() {
			return adapter.ErrConnectionClosed
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return conn.Ping(pingCtx)
	}
}

// CheckConnections opens database on every registered connection and pings
// it. An empty database checks the database named like the connection.
func (c *Checker) CheckConnections(ctx context.Context, connections *adapter.ConnectionRegistry, database string, timeout time.Duration) {
	for _, name := range connections.Names() {
		factory, _ := connections.Lookup(name)
		c.RunCheck(name, connectionCheck(ctx, name, factory, database, timeout))
	}
}

func connectionCheck(ctx context.Context, name string, factory adapter.ConnectionFactory, database string, timeout time.Duration) CheckFunc {
	return func() error {
		dp, ok := factory.(adapter.DialectProvider)
		if !ok || dp.Dialect() == "" {
			return fmt.Errorf("connection %s has no dialect", name)
		}
		if database == "" {
			database = name
		}

		connectCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		conn, err := factory.Connect(connectCtx, dbcapabilities.BuildConnectionURL(dp.Dialect(), database), nil)
		if err != nil {
			return err
		}
		return PingCheck(ctx, conn, timeout)()
	}
}

// GetOverallStatus returns the overall health status
func (c *Checker) GetOverallStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.checks) == 0 {
		return StatusHealthy
	}

	unhealthyCount := 0
	for _, check := range c.checks {
		if check.Status == StatusUnhealthy {
			unhealthyCount++
		}
	}

	if unhealthyCount == 0 {
		return StatusHealthy
	} else if unhealthyCount < len(c.checks) {
		return StatusDegraded
	}

	return StatusUnhealthy
}

// GetAllChecks returns all health check results ordered by name
func (c *Checker) GetAllChecks() []*Check {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var checks []*Check
	for _, check := range c.checks {
		checkCopy := *check
		checks = append(checks, &checkCopy)
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })

	return checks
}

// GetLastHealthyTime returns the last time all checks were healthy
func (c *Checker) GetLastHealthyTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastHealthy
}

func (c *Checker) isHealthy() bool {
	for _, check := range c.checks {
		if check.Status != StatusHealthy {
			return false
		}
	}
	return true
}
