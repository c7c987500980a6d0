package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbco/redb-persistence/pkg/adapter"
)

func TestConnString(t *testing.T) {
	a := &Adapter{}

	cfg := adapter.ConnectionConfig{Host: "db", Username: "app", Password: "p@ss", DatabaseName: "orders"}
	assert.Equal(t, "postgres://app:p%40ss@db:5432/orders?sslmode=disable", a.connString(cfg, cfg.DatabaseName))
	assert.Equal(t, "postgres://app:p%40ss@db:5432/postgres?sslmode=disable", a.connString(cfg, SystemDatabase))

	cfg.SSL = true
	cfg.Port = 6543
	cfg.SSLRootCert = adapter.GetStringPtr("/certs/ca.pem")
	assert.Equal(t, "postgres://app:p%40ss@db:6543/orders?sslmode=verify-full&sslrootcert=/certs/ca.pem", a.connString(cfg, cfg.DatabaseName))

	cfg.SSLRejectUnauthorized = adapter.GetBoolPtr(false)
	assert.Equal(t, "verify-ca", a.getSslMode(cfg))
	cfg.SSLMode = "require"
	assert.Equal(t, "require", a.getSslMode(cfg))
}

func TestCreateTableStatement(t *testing.T) {
	table := adapter.TableSpec{
		Name: "customer",
		Columns: []adapter.ColumnSpec{
			{Name: "customer_id", Type: adapter.ColumnInteger},
			{Name: "full_name", Type: adapter.ColumnText, Nullable: true},
			{Name: "birthday", Type: adapter.ColumnDate, Nullable: true},
		},
		PrimaryKey:   "customer_id",
		IDGeneration: adapter.IDDatabase,
	}
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "customer" ("customer_id" BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY, "full_name" TEXT, "birthday" DATE)`,
		Dialect.CreateTable(table))
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "13:45:10", normalizeValue(pgtype.Time{Microseconds: int64((13*time.Hour + 45*time.Minute + 10*time.Second) / time.Microsecond), Valid: true}))
	assert.Nil(t, normalizeValue(pgtype.Time{}))
	assert.Equal(t, int64(7), normalizeValue(int32(7)))
	assert.Equal(t, "hello", normalizeValue("hello"))
	assert.Equal(t, "00010203-0405-0607-0809-0a0b0c0d0e0f",
		normalizeValue([16]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}))
}

func setupTestConn(t *testing.T) adapter.Connection {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := NewAdapter().Connect(ctx, adapter.ConnectionConfig{
		Host:           "localhost",
		Port:           5432,
		Username:       "postgres",
		Password:       "postgres",
		DatabaseName:   "persistence_test",
		CreateDatabase: true,
	})
	if err != nil {
		t.Skipf("Skipping test - could not connect to PostgreSQL: %v", err)
	}
	return conn
}

func TestDataOperations(t *testing.T) {
	conn := setupTestConn(t)
	defer conn.Close()

	ctx := context.Background()
	table := adapter.TableSpec{
		Name: "test_notes",
		Columns: []adapter.ColumnSpec{
			{Name: "id", Type: adapter.ColumnInteger},
			{Name: "body", Type: adapter.ColumnText, Nullable: true},
			{Name: "rev", Type: adapter.ColumnInteger},
		},
		PrimaryKey:   "id",
		IDGeneration: adapter.IDDatabase,
	}
	require.NoError(t, conn.SchemaOperations().DropTable(ctx, table.Name))
	require.NoError(t, conn.SchemaOperations().EnsureTable(ctx, table))

	data := conn.DataOperations()
	id, err := data.Insert(ctx, table, adapter.Record{"body": "hi", "rev": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	row, err := data.Get(ctx, table, id)
	require.NoError(t, err)
	assert.Equal(t, "hi", row["body"])

	n, err := data.Update(ctx, table, adapter.Record{"rev": int64(2)}, map[string]interface{}{"id": id, "rev": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = data.Update(ctx, table, adapter.Record{"rev": int64(3)}, map[string]interface{}{"id": id, "rev": int64(1)})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = data.Delete(ctx, table, map[string]interface{}{"id": id})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = data.Get(ctx, table, id)
	assert.True(t, adapter.IsNotFound(err))
}
