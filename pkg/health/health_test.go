package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-persistence/pkg/adapter"
)

type stubConn struct {
	adapter.Connection
	connected bool
	pingErr   error
}

func (c *stubConn) IsConnected() bool             { return c.connected }
func (c *stubConn) Ping(ctx context.Context) error { return c.pingErr }

type stubFactory struct {
	dialect string
	conn    *stubConn
	err     error
	urls    []string
}

func (f *stubFactory) Dialect() string { return f.dialect }

func (f *stubFactory) Connect(ctx context.Context, url string, props adapter.Properties) (adapter.Connection, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

func TestOverallStatus(t *testing.T) {
	c := NewChecker()
	assert.Equal(t, StatusHealthy, c.GetOverallStatus())

	c.RunCheck("a", func() error { return nil })
	assert.Equal(t, StatusHealthy, c.GetOverallStatus())

	c.RunCheck("b", func() error { return errors.New("down") })
	assert.Equal(t, StatusDegraded, c.GetOverallStatus())

	c.RunCheck("a", func() error { return errors.New("down") })
	assert.Equal(t, StatusUnhealthy, c.GetOverallStatus())

	checks := c.GetAllChecks()
	require.Len(t, checks, 2)
	assert.Equal(t, "a", checks[0].Name)
	assert.Equal(t, "down", checks[1].Message)
}

func TestLastHealthyTime(t *testing.T) {
	c := NewChecker()
	before := c.GetLastHealthyTime()

	c.RunCheck("a", func() error { return errors.New("down") })
	assert.Equal(t, before, c.GetLastHealthyTime())

	c.RunCheck("a", func() error { return nil })
	assert.False(t, c.GetLastHealthyTime().Before(before))
}

func TestPingCheck(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, PingCheck(ctx, &stubConn{connected: true}, time.Second)())
	assert.ErrorIs(t, PingCheck(ctx, &stubConn{}, time.Second)(), adapter.ErrConnectionClosed)

	boom := errors.New("boom")
	assert.ErrorIs(t, PingCheck(ctx, &stubConn{connected: true, pingErr: boom}, time.Second)(), boom)
}

func TestCheckConnections(t *testing.T) {
	ok := &stubFactory{dialect: "derby", conn: &stubConn{connected: true}}
	failing := &stubFactory{dialect: "postgres", err: adapter.ErrConnectionFailed}
	noDialect := adapter.ConnectionFactoryFunc(func(ctx context.Context, url string, props adapter.Properties) (adapter.Connection, error) {
		return &stubConn{connected: true}, nil
	})

	registry := adapter.NewConnectionRegistry(map[string]adapter.ConnectionFactory{
		"crm":     ok,
		"billing": failing,
		"legacy":  noDialect,
	})

	c := NewChecker()
	c.CheckConnections(context.Background(), registry, "", time.Second)

	checks := c.GetAllChecks()
	require.Len(t, checks, 3)
	assert.Equal(t, "billing", checks[0].Name)
	assert.Equal(t, StatusUnhealthy, checks[0].Status)
	assert.Equal(t, StatusHealthy, checks[1].Status)
	assert.Equal(t, StatusUnhealthy, checks[2].Status)
	assert.Contains(t, checks[2].Message, "no dialect")
	assert.Equal(t, StatusDegraded, c.GetOverallStatus())

	assert.Equal(t, []string{"derby:crm;create=true"}, ok.urls)

	c.CheckConnections(context.Background(), registry, "sales", time.Second)
	assert.Equal(t, "derby:sales;create=true", ok.urls[1])
}
