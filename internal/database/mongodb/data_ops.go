package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
)

const (
	// idField is the field MongoDB keys documents by.
	idField = "_id"

	// SequenceCollection holds one counter per table with integer generated ids.
	SequenceCollection = "_sequences"

	namespaceExists = 48
)

// SchemaOps implements adapter.SchemaOperator for MongoDB.
type SchemaOps struct {
	conn *Connection
}

// EnsureTable creates the collection if it does not exist.
func (s *SchemaOps) EnsureTable(ctx context.Context, table adapter.TableSpec) error {
	if err := table.Validate(); err != nil {
		return err
	}
	names, err := s.conn.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: table.Name}})
	if err != nil {
		return adapter.WrapError(dbcapabilities.MongoDB, "ensure_table", err)
	}
	if len(names) > 0 {
		return nil
	}
	if err := s.conn.db.CreateCollection(ctx, table.Name); err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Code == namespaceExists {
			return nil
		}
		return adapter.WrapError(dbcapabilities.MongoDB, "ensure_table", err)
	}
	return nil
}

// ListTables returns the collection names, without the sequence collection.
func (s *SchemaOps) ListTables(ctx context.Context) ([]string, error) {
	names, err := s.conn.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.MongoDB, "list_tables", err)
	}
	tables := names[:0]
	for _, n := range names {
		if n != SequenceCollection {
			tables = append(tables, n)
		}
	}
	return tables, nil
}

// DropTable drops the collection and its counter.
func (s *SchemaOps) DropTable(ctx context.Context, table string) error {
	if err := s.conn.db.Collection(table).Drop(ctx); err != nil {
		return adapter.WrapError(dbcapabilities.MongoDB, "drop_table", err)
	}
	_, err := s.conn.db.Collection(SequenceCollection).DeleteOne(ctx, bson.D{{Key: idField, Value: table}})
	if err != nil {
		return adapter.WrapError(dbcapabilities.MongoDB, "drop_table", err)
	}
	return nil
}

// DataOps implements adapter.DataOperator for MongoDB.
type DataOps struct {
	conn *Connection
}

// Get loads one document by primary key.
func (d *DataOps) Get(ctx context.Context, table adapter.TableSpec, id interface{}) (adapter.Record, error) {
	var doc bson.M
	err := d.conn.db.Collection(table.Name).FindOne(ctx, bson.D{{Key: idField, Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, adapter.NewRecordNotFoundError(dbcapabilities.MongoDB, table.Name, id)
	}
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.MongoDB, "get", err)
	}
	return fromDocument(table, doc), nil
}

// Exists reports whether a document with the primary key exists.
func (d *DataOps) Exists(ctx context.Context, table adapter.TableSpec, id interface{}) (bool, error) {
	n, err := d.conn.db.Collection(table.Name).CountDocuments(ctx, bson.D{{Key: idField, Value: id}}, options.Count().SetLimit(1))
	if err != nil {
		return false, adapter.WrapError(dbcapabilities.MongoDB, "exists", err)
	}
	return n > 0, nil
}

// Insert stores a new document. Missing integer keys come from the table's
// counter; other missing keys are new object ids in hex form.
func (d *DataOps) Insert(ctx context.Context, table adapter.TableSpec, record adapter.Record) (interface{}, error) {
	id := record[table.PrimaryKey]
	if id == nil {
		if table.IDGeneration != adapter.IDDatabase {
			return nil, adapter.NewConfigurationError(dbcapabilities.MongoDB, table.PrimaryKey,
				fmt.Sprintf("table %s needs an assigned id", table.Name))
		}
		next, err := d.nextID(ctx, table)
		if err != nil {
			return nil, adapter.WrapError(dbcapabilities.MongoDB, "insert", err)
		}
		id = next
	}

	doc := toDocument(table, record)
	doc[idField] = id
	if _, err := d.conn.db.Collection(table.Name).InsertOne(ctx, doc); err != nil {
		return nil, adapter.WrapError(dbcapabilities.MongoDB, "insert", err)
	}
	return id, nil
}

func (d *DataOps) nextID(ctx context.Context, table adapter.TableSpec) (interface{}, error) {
	if table.PrimaryKeyColumn().Type != adapter.ColumnInteger {
		return bson.NewObjectID().Hex(), nil
	}

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := d.conn.db.Collection(SequenceCollection).FindOneAndUpdate(ctx,
		bson.D{{Key: idField, Value: table.Name}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return nil, err
	}
	return counter.Seq, nil
}

// Update sets record's fields on the document matching conditions and
// returns the number of matched documents.
func (d *DataOps) Update(ctx context.Context, table adapter.TableSpec, record adapter.Record, conditions map[string]interface{}) (int64, error) {
	set := bson.M{}
	unset := bson.M{}
	for col, v := range record {
		field := fieldName(table, col)
		if v == nil {
			unset[field] = ""
			continue
		}
		set[field] = v
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(update) == 0 {
		return 0, nil
	}

	res, err := d.conn.db.Collection(table.Name).UpdateOne(ctx, filter(table, conditions), update)
	if err != nil {
		return 0, adapter.WrapError(dbcapabilities.MongoDB, "update", err)
	}
	return res.MatchedCount, nil
}

// Delete removes the document matching conditions.
func (d *DataOps) Delete(ctx context.Context, table adapter.TableSpec, conditions map[string]interface{}) (int64, error) {
	res, err := d.conn.db.Collection(table.Name).DeleteOne(ctx, filter(table, conditions))
	if err != nil {
		return 0, adapter.WrapError(dbcapabilities.MongoDB, "delete", err)
	}
	return res.DeletedCount, nil
}

func fieldName(table adapter.TableSpec, col string) string {
	if col == table.PrimaryKey {
		return idField
	}
	return col
}

// filter matches every condition; nil matches a missing or null field.
func filter(table adapter.TableSpec, conditions map[string]interface{}) bson.M {
	f := make(bson.M, len(conditions))
	for col, v := range conditions {
		f[fieldName(table, col)] = v
	}
	return f
}

func toDocument(table adapter.TableSpec, record adapter.Record) bson.M {
	doc := make(bson.M, len(record))
	for col, v := range record {
		if v == nil {
			continue
		}
		doc[fieldName(table, col)] = v
	}
	return doc
}

// fromDocument maps a stored document back to columns, turning BSON
// specific types into plain Go values.
func fromDocument(table adapter.TableSpec, doc bson.M) adapter.Record {
	record := make(adapter.Record, len(doc))
	for field, v := range doc {
		col := field
		if field == idField {
			col = table.PrimaryKey
		}
		record[col] = normalizeValue(v)
	}
	return record
}

func normalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case bson.DateTime:
		return x.Time().UTC()
	case bson.ObjectID:
		return x.Hex()
	case bson.Binary:
		return x.Data
	case int32:
		return int64(x)
	case bson.Decimal128:
		return x.String()
	}
	return v
}
