package common

import (
	"context"
	"database/sql"
	"errors"

	"github.com/redbco/redb-persistence/pkg/adapter"
)

// SQLStore implements adapter.SchemaOperator and adapter.DataOperator over a
// database/sql handle. Generated keys are read with LastInsertId.
type SQLStore struct {
	DB      *sql.DB
	Dialect Dialect
}

// EnsureTable creates the table if it does not exist.
func (s *SQLStore) EnsureTable(ctx context.Context, t adapter.TableSpec) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if _, err := s.DB.ExecContext(ctx, s.Dialect.CreateTable(t)); err != nil {
		return adapter.WrapError(s.Dialect.Type, "ensure_table", err)
	}
	return nil
}

// ListTables returns the names of all tables.
func (s *SQLStore) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, s.Dialect.ListTables)
	if err != nil {
		return nil, adapter.WrapError(s.Dialect.Type, "list_tables", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, adapter.WrapError(s.Dialect.Type, "list_tables", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// DropTable drops the table if it exists.
func (s *SQLStore) DropTable(ctx context.Context, table string) error {
	if _, err := s.DB.ExecContext(ctx, s.Dialect.DropTable(table)); err != nil {
		return adapter.WrapError(s.Dialect.Type, "drop_table", err)
	}
	return nil
}

// Get loads one row by primary key.
func (s *SQLStore) Get(ctx context.Context, t adapter.TableSpec, id interface{}) (adapter.Record, error) {
	rows, err := s.DB.QueryContext(ctx, s.Dialect.SelectByKey(t), id)
	if err != nil {
		return nil, adapter.WrapError(s.Dialect.Type, "get", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, adapter.WrapError(s.Dialect.Type, "get", err)
		}
		return nil, adapter.NewRecordNotFoundError(s.Dialect.Type, t.Name, id)
	}
	record, err := ScanRecord(rows, t)
	if err != nil {
		return nil, adapter.WrapError(s.Dialect.Type, "get", err)
	}
	return record, nil
}

// Exists reports whether a row with the primary key exists.
func (s *SQLStore) Exists(ctx context.Context, t adapter.TableSpec, id interface{}) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx, s.Dialect.ExistsByKey(t), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, adapter.WrapError(s.Dialect.Type, "exists", err)
	}
	return true, nil
}

// Insert adds a row and returns its primary key.
func (s *SQLStore) Insert(ctx context.Context, t adapter.TableSpec, record adapter.Record) (interface{}, error) {
	query, args := s.Dialect.Insert(t, record)
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, adapter.WrapError(s.Dialect.Type, "insert", err)
	}

	if id, ok := record[t.PrimaryKey]; ok && id != nil {
		return id, nil
	}
	if t.IDGeneration != adapter.IDDatabase {
		return nil, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, adapter.WrapError(s.Dialect.Type, "insert", err)
	}
	return id, nil
}

// Update sets record's columns on the rows matching conditions.
func (s *SQLStore) Update(ctx context.Context, t adapter.TableSpec, record adapter.Record, conditions map[string]interface{}) (int64, error) {
	if len(record) == 0 {
		return 0, nil
	}
	query, args := s.Dialect.Update(t.Name, record, conditions)
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, adapter.WrapError(s.Dialect.Type, "update", err)
	}
	return res.RowsAffected()
}

// Delete removes the rows matching conditions.
func (s *SQLStore) Delete(ctx context.Context, t adapter.TableSpec, conditions map[string]interface{}) (int64, error) {
	query, args := s.Dialect.Delete(t.Name, conditions)
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, adapter.WrapError(s.Dialect.Type, "delete", err)
	}
	return res.RowsAffected()
}

// ScanRecord reads the current row. Text arriving as []byte is turned into a
// string except for bytes columns.
func ScanRecord(rows *sql.Rows, t adapter.TableSpec) (adapter.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	record := make(adapter.Record, len(cols))
	for i, name := range cols {
		v := values[i]
		if b, ok := v.([]byte); ok {
			if spec, known := t.Column(name); !known || spec.Type != adapter.ColumnBytes {
				v = string(b)
			}
		}
		record[name] = v
	}
	return record, nil
}
