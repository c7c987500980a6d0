package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redbco/redb-persistence/internal/database/common"
	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
)

// sequenceSuffix names the counter key of a table.
const sequenceSuffix = "_seq"

// maxTxRetries bounds optimistic transaction retries when a watched key changes.
const maxTxRetries = 5

// ErrDuplicateKey is returned when inserting a record whose key is taken.
var ErrDuplicateKey = errors.New("record already exists")

func (c *Connection) recordKey(table string, id interface{}) string {
	return c.prefix + ":" + table + ":" + common.KeyString(id)
}

func (c *Connection) sequenceKey(table string) string {
	return c.prefix + ":" + table + ":" + sequenceSuffix
}

// SchemaOps implements adapter.SchemaOperator for Redis. Tables exist as key
// prefixes only.
type SchemaOps struct {
	conn *Connection
}

// EnsureTable validates the table; nothing has to be created.
func (s *SchemaOps) EnsureTable(ctx context.Context, table adapter.TableSpec) error {
	return table.Validate()
}

// ListTables returns the tables that have at least one key.
func (s *SchemaOps) ListTables(ctx context.Context) ([]string, error) {
	prefix := s.conn.prefix + ":"
	seen := make(map[string]struct{})

	iter := s.conn.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		rest := strings.TrimPrefix(iter.Val(), prefix)
		if table, _, ok := strings.Cut(rest, ":"); ok {
			seen[table] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, adapter.WrapError(dbcapabilities.Redis, "list_tables", err)
	}
	return common.SortedKeys(seen), nil
}

// DropTable deletes every key of the table, its counter included.
func (s *SchemaOps) DropTable(ctx context.Context, table string) error {
	client := s.conn.client
	iter := client.Scan(ctx, 0, s.conn.prefix+":"+table+":*", 100).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := client.Del(ctx, batch...).Err(); err != nil {
				return adapter.WrapError(dbcapabilities.Redis, "drop_table", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return adapter.WrapError(dbcapabilities.Redis, "drop_table", err)
	}
	if len(batch) > 0 {
		if err := client.Del(ctx, batch...).Err(); err != nil {
			return adapter.WrapError(dbcapabilities.Redis, "drop_table", err)
		}
	}
	return nil
}

// DataOps implements adapter.DataOperator for Redis.
type DataOps struct {
	conn *Connection
}

// Get loads the hash of one record.
func (d *DataOps) Get(ctx context.Context, table adapter.TableSpec, id interface{}) (adapter.Record, error) {
	fields, err := d.conn.client.HGetAll(ctx, d.conn.recordKey(table.Name, id)).Result()
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.Redis, "get", err)
	}
	if len(fields) == 0 {
		return nil, adapter.NewRecordNotFoundError(dbcapabilities.Redis, table.Name, id)
	}
	record, err := decodeRecord(table, fields)
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.Redis, "get", err)
	}
	return record, nil
}

// Exists reports whether the record's hash exists.
func (d *DataOps) Exists(ctx context.Context, table adapter.TableSpec, id interface{}) (bool, error) {
	n, err := d.conn.client.Exists(ctx, d.conn.recordKey(table.Name, id)).Result()
	if err != nil {
		return false, adapter.WrapError(dbcapabilities.Redis, "exists", err)
	}
	return n > 0, nil
}

// Insert stores a new hash. Records without a key get the next value of the
// table's counter when the database assigns ids.
func (d *DataOps) Insert(ctx context.Context, table adapter.TableSpec, record adapter.Record) (interface{}, error) {
	client := d.conn.client

	id := record[table.PrimaryKey]
	if id == nil {
		if table.IDGeneration != adapter.IDDatabase {
			return nil, adapter.NewConfigurationError(dbcapabilities.Redis, table.PrimaryKey,
				fmt.Sprintf("table %s needs an assigned id", table.Name))
		}
		n, err := client.Incr(ctx, d.conn.sequenceKey(table.Name)).Result()
		if err != nil {
			return nil, adapter.WrapError(dbcapabilities.Redis, "insert", err)
		}
		id = n
		record = record.Clone()
		record[table.PrimaryKey] = id
	}

	key := d.conn.recordKey(table.Name, id)
	set, _ := encodeRecord(record)

	err := d.watch(ctx, key, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, set)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.Redis, "insert", err)
	}
	return id, nil
}

// Update sets record's fields on the record matching conditions. Conditions
// must name the primary key; the other conditions are compared with the
// stored fields inside a WATCH transaction.
func (d *DataOps) Update(ctx context.Context, table adapter.TableSpec, record adapter.Record, conditions map[string]interface{}) (int64, error) {
	if len(record) == 0 {
		return 0, nil
	}
	set, unset := encodeRecord(record)
	return d.conditional(ctx, table, "update", conditions, func(p redis.Pipeliner, key string) {
		if len(set) > 0 {
			p.HSet(ctx, key, set)
		}
		if len(unset) > 0 {
			p.HDel(ctx, key, unset...)
		}
	})
}

// Delete removes the record matching conditions.
func (d *DataOps) Delete(ctx context.Context, table adapter.TableSpec, conditions map[string]interface{}) (int64, error) {
	return d.conditional(ctx, table, "delete", conditions, func(p redis.Pipeliner, key string) {
		p.Del(ctx, key)
	})
}

func (d *DataOps) conditional(ctx context.Context, table adapter.TableSpec, op string, conditions map[string]interface{}, apply func(p redis.Pipeliner, key string)) (int64, error) {
	id, ok := conditions[table.PrimaryKey]
	if !ok || id == nil {
		return 0, adapter.NewUnsupportedOperationError(dbcapabilities.Redis, op, "conditions must include the primary key")
	}
	key := d.conn.recordKey(table.Name, id)

	var affected int64
	err := d.watch(ctx, key, func(tx *redis.Tx) error {
		affected = 0
		stored, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(stored) == 0 || !matches(stored, conditions) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			apply(p, key)
			return nil
		})
		if err == nil {
			affected = 1
		}
		return err
	})
	if err != nil {
		return 0, adapter.WrapError(dbcapabilities.Redis, op, err)
	}
	return affected, nil
}

// watch runs fn in a WATCH transaction on key, retrying when the key changed.
func (d *DataOps) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := d.conn.client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

func matches(stored map[string]string, conditions map[string]interface{}) bool {
	for col, want := range conditions {
		got, present := stored[col]
		s, ok := encodeValue(want)
		if !ok {
			if present {
				return false
			}
			continue
		}
		if !present || got != s {
			return false
		}
	}
	return true
}

// encodeRecord splits record into the fields to set and the fields to delete.
func encodeRecord(record adapter.Record) (map[string]interface{}, []string) {
	set := make(map[string]interface{}, len(record))
	var unset []string
	for _, col := range common.SortedKeys(record) {
		if s, ok := encodeValue(record[col]); ok {
			set[col] = s
		} else {
			unset = append(unset, col)
		}
	}
	return set, unset
}

// encodeValue renders a value as a hash field. Nil has no rendering.
func encodeValue(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case bool:
		return strconv.FormatBool(x), true
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), true
	}
	return fmt.Sprint(v), true
}

// decodeRecord parses hash fields back into the column types of table.
func decodeRecord(table adapter.TableSpec, fields map[string]string) (adapter.Record, error) {
	record := make(adapter.Record, len(fields))
	for name, raw := range fields {
		spec, ok := table.Column(name)
		if !ok {
			record[name] = raw
			continue
		}
		v, err := decodeValue(spec, raw)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		record[name] = v
	}
	return record, nil
}

func decodeValue(spec adapter.ColumnSpec, raw string) (interface{}, error) {
	switch spec.Type {
	case adapter.ColumnInteger:
		return strconv.ParseInt(raw, 10, 64)
	case adapter.ColumnFloat:
		return strconv.ParseFloat(raw, 64)
	case adapter.ColumnBoolean:
		return strconv.ParseBool(raw)
	case adapter.ColumnTimestamp, adapter.ColumnDate:
		return time.Parse(time.RFC3339Nano, raw)
	case adapter.ColumnBytes:
		return []byte(raw), nil
	}
	return raw, nil
}
