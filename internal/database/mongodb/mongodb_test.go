package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/redbco/redb-persistence/pkg/adapter"
)

var customers = adapter.TableSpec{
	Name: "customer",
	Columns: []adapter.ColumnSpec{
		{Name: "customer_id", Type: adapter.ColumnInteger},
		{Name: "full_name", Type: adapter.ColumnText, Nullable: true},
		{Name: "rev", Type: adapter.ColumnInteger},
	},
	PrimaryKey:   "customer_id",
	IDGeneration: adapter.IDDatabase,
}

func TestConnString(t *testing.T) {
	a := &Adapter{}
	assert.Equal(t, "mongodb://localhost:27017/crm?tls=false",
		a.connString(adapter.ConnectionConfig{Host: "localhost", DatabaseName: "crm"}))
	assert.Equal(t, "mongodb://app:s%2Fcret@db:27018/crm?authSource=admin&tls=true&tlsCAFile=/ca.pem",
		a.connString(adapter.ConnectionConfig{
			Host: "db", Port: 27018, Username: "app", Password: "s/cret", DatabaseName: "crm",
			SSL: true, SSLRootCert: adapter.GetStringPtr("/ca.pem"),
		}))
}

func TestDocumentMapping(t *testing.T) {
	doc := toDocument(customers, adapter.Record{"customer_id": int64(4), "full_name": "Ada", "rev": nil})
	assert.Equal(t, bson.M{"_id": int64(4), "full_name": "Ada"}, doc)

	assert.Equal(t, bson.M{"_id": int64(4), "rev": int64(1)},
		filter(customers, map[string]interface{}{"customer_id": int64(4), "rev": int64(1)}))

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	oid := bson.NewObjectID()
	record := fromDocument(customers, bson.M{
		"_id":  int32(4),
		"at":   bson.NewDateTimeFromTime(at),
		"ref":  oid,
		"blob": bson.Binary{Data: []byte{1}},
	})
	assert.Equal(t, int64(4), record["customer_id"])
	assert.True(t, at.Equal(record["at"].(time.Time)))
	assert.Equal(t, oid.Hex(), record["ref"])
	assert.Equal(t, []byte{1}, record["blob"])
}

func setupTestConn(t *testing.T) adapter.Connection {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := NewAdapter().Connect(ctx, adapter.ConnectionConfig{
		Host:         "localhost",
		Port:         27017,
		DatabaseName: "persistence_test",
	})
	if err != nil {
		t.Skipf("Skipping test - could not connect to MongoDB: %v", err)
	}
	return conn
}

func TestDataOperations(t *testing.T) {
	conn := setupTestConn(t)
	defer conn.Close()

	ctx := context.Background()
	schema := conn.SchemaOperations()
	require.NoError(t, schema.DropTable(ctx, customers.Name))
	require.NoError(t, schema.EnsureTable(ctx, customers))
	require.NoError(t, schema.EnsureTable(ctx, customers))

	tables, err := schema.ListTables(ctx)
	require.NoError(t, err)
	assert.Contains(t, tables, customers.Name)
	assert.NotContains(t, tables, SequenceCollection)

	data := conn.DataOperations()
	id, err := data.Insert(ctx, customers, adapter.Record{"full_name": "Ada", "rev": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	row, err := data.Get(ctx, customers, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", row["full_name"])
	assert.Equal(t, int64(1), row["customer_id"])

	n, err := data.Update(ctx, customers, adapter.Record{"rev": int64(2)}, map[string]interface{}{"customer_id": id, "rev": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = data.Update(ctx, customers, adapter.Record{"rev": int64(3)}, map[string]interface{}{"customer_id": id, "rev": int64(1)})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = data.Delete(ctx, customers, map[string]interface{}{"customer_id": id})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = data.Get(ctx, customers, id)
	assert.True(t, adapter.IsNotFound(err))
}
