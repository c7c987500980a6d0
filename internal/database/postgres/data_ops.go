package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/redbco/redb-persistence/internal/database/common"
	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
)

// Dialect generates PostgreSQL statements.
var Dialect = common.Dialect{
	Type:        dbcapabilities.PostgreSQL,
	Quote:       common.QuoteIdentifier,
	Placeholder: common.DollarPlaceholder,
	ColumnType:  columnType,
	IdentityColumn: func(name string) string {
		return name + " BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
	},
	EmptyInsert: "INSERT INTO %s DEFAULT VALUES",
	Returning:   true,
	ListTables: `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
}

func columnType(c adapter.ColumnSpec) string {
	switch c.Type {
	case adapter.ColumnString:
		return fmt.Sprintf("VARCHAR(%d)", common.VarcharLength(c))
	case adapter.ColumnInteger:
		return "BIGINT"
	case adapter.ColumnFloat:
		return "DOUBLE PRECISION"
	case adapter.ColumnBoolean:
		return "BOOLEAN"
	case adapter.ColumnTimestamp:
		return "TIMESTAMP"
	case adapter.ColumnDate:
		return "DATE"
	case adapter.ColumnTime:
		return "TIME"
	case adapter.ColumnBytes:
		return "BYTEA"
	default:
		return "TEXT"
	}
}

// SchemaOps implements adapter.SchemaOperator for PostgreSQL.
type SchemaOps struct {
	conn *Connection
}

// EnsureTable creates the table if it does not exist.
func (s *SchemaOps) EnsureTable(ctx context.Context, table adapter.TableSpec) error {
	if err := table.Validate(); err != nil {
		return err
	}
	if _, err := s.conn.pool.Exec(ctx, Dialect.CreateTable(table)); err != nil {
		return adapter.WrapError(dbcapabilities.PostgreSQL, "ensure_table", err)
	}
	return nil
}

// ListTables returns the tables of the current schema.
func (s *SchemaOps) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.conn.pool.Query(ctx, Dialect.ListTables)
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.PostgreSQL, "list_tables", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.PostgreSQL, "list_tables", err)
	}
	return tables, nil
}

// DropTable drops the table if it exists.
func (s *SchemaOps) DropTable(ctx context.Context, table string) error {
	if _, err := s.conn.pool.Exec(ctx, Dialect.DropTable(table)); err != nil {
		return adapter.WrapError(dbcapabilities.PostgreSQL, "drop_table", err)
	}
	return nil
}

// DataOps implements adapter.DataOperator for PostgreSQL.
type DataOps struct {
	conn *Connection
}

// Get loads one row by primary key.
func (d *DataOps) Get(ctx context.Context, table adapter.TableSpec, id interface{}) (adapter.Record, error) {
	rows, err := d.conn.pool.Query(ctx, Dialect.SelectByKey(table), id)
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.PostgreSQL, "get", err)
	}
	record, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (adapter.Record, error) {
		values, err := row.Values()
		if err != nil {
			return nil, err
		}
		fields := row.FieldDescriptions()
		record := make(adapter.Record, len(fields))
		for i, f := range fields {
			record[f.Name] = normalizeValue(values[i])
		}
		return record, nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, adapter.NewRecordNotFoundError(dbcapabilities.PostgreSQL, table.Name, id)
	}
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.PostgreSQL, "get", err)
	}
	return record, nil
}

// Exists reports whether a row with the primary key exists.
func (d *DataOps) Exists(ctx context.Context, table adapter.TableSpec, id interface{}) (bool, error) {
	var one int
	err := d.conn.pool.QueryRow(ctx, Dialect.ExistsByKey(table), id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, adapter.WrapError(dbcapabilities.PostgreSQL, "exists", err)
	}
	return true, nil
}

// Insert adds a row and returns its primary key through RETURNING.
func (d *DataOps) Insert(ctx context.Context, table adapter.TableSpec, record adapter.Record) (interface{}, error) {
	query, args := Dialect.Insert(table, record)

	var id interface{}
	if err := d.conn.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return nil, adapter.WrapError(dbcapabilities.PostgreSQL, "insert", err)
	}
	return normalizeValue(id), nil
}

// Update sets record's columns on the rows matching conditions.
func (d *DataOps) Update(ctx context.Context, table adapter.TableSpec, record adapter.Record, conditions map[string]interface{}) (int64, error) {
	if len(record) == 0 {
		return 0, nil
	}
	query, args := Dialect.Update(table.Name, record, conditions)
	tag, err := d.conn.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, adapter.WrapError(dbcapabilities.PostgreSQL, "update", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes the rows matching conditions.
func (d *DataOps) Delete(ctx context.Context, table adapter.TableSpec, conditions map[string]interface{}) (int64, error) {
	query, args := Dialect.Delete(table.Name, conditions)
	tag, err := d.conn.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, adapter.WrapError(dbcapabilities.PostgreSQL, "delete", err)
	}
	return tag.RowsAffected(), nil
}

// normalizeValue turns pgtype values without a plain Go form into ones the
// converters understand.
func normalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case pgtype.Time:
		if !x.Valid {
			return nil
		}
		d := time.Duration(x.Microseconds) * time.Microsecond
		return time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC).Add(d).Format("15:04:05")
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case float32:
		return float64(x)
	case [16]byte:
		return pgtype.UUID{Bytes: x, Valid: true}.String()
	}
	return v
}
