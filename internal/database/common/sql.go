package common

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
)

// Dialect captures the differences between the SQL databases the adapters
// generate statements for.
type Dialect struct {
	Type dbcapabilities.DatabaseType

	// Quote quotes an identifier.
	Quote func(name string) string

	// Placeholder returns the n-th (1-based) bind parameter.
	Placeholder func(n int) string

	// ColumnType returns the native type for a column.
	ColumnType func(c adapter.ColumnSpec) string

	// IdentityColumn returns the full definition of a database generated
	// primary key column, constraint included.
	IdentityColumn func(quotedName string) string

	// EmptyInsert is the statement inserting a row of defaults into %s.
	EmptyInsert string

	// Returning enables INSERT ... RETURNING for database generated keys.
	Returning bool

	// ListTables lists the tables of the current database.
	ListTables string
}

// QuestionPlaceholder is the "?" style used by SQLite and MySQL.
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder is the "$n" style used by PostgreSQL.
func DollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// CreateTable builds CREATE TABLE IF NOT EXISTS for t.
func (d Dialect) CreateTable(t adapter.TableSpec) string {
	identity := t.IDGeneration == adapter.IDDatabase

	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		name := d.Quote(c.Name)
		if identity && c.Name == t.PrimaryKey {
			defs = append(defs, d.IdentityColumn(name))
			continue
		}
		def := name + " " + d.ColumnType(c)
		if !c.Nullable || c.Name == t.PrimaryKey {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if !identity {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", d.Quote(t.PrimaryKey)))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.Quote(t.Name), strings.Join(defs, ", "))
}

// DropTable builds DROP TABLE IF EXISTS.
func (d Dialect) DropTable(table string) string {
	return "DROP TABLE IF EXISTS " + d.Quote(table)
}

// SelectByKey selects every column of t for one primary key value.
func (d Dialect) SelectByKey(t adapter.TableSpec) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = d.Quote(c.Name)
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		strings.Join(cols, ", "), d.Quote(t.Name), d.Quote(t.PrimaryKey), d.Placeholder(1))
}

// ExistsByKey selects a constant for one primary key value.
func (d Dialect) ExistsByKey(t adapter.TableSpec) string {
	return fmt.Sprintf("SELECT 1 FROM %s WHERE %s = %s LIMIT 1",
		d.Quote(t.Name), d.Quote(t.PrimaryKey), d.Placeholder(1))
}

// Insert builds an INSERT of record into t. With Returning set the primary
// key is returned.
func (d Dialect) Insert(t adapter.TableSpec, record adapter.Record) (string, []interface{}) {
	var query string
	args := make([]interface{}, 0, len(record))

	if len(record) == 0 {
		query = fmt.Sprintf(d.EmptyInsert, d.Quote(t.Name))
	} else {
		cols := SortedKeys(record)
		quoted := make([]string, len(cols))
		params := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = d.Quote(c)
			params[i] = d.Placeholder(i + 1)
			args = append(args, record[c])
		}
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			d.Quote(t.Name), strings.Join(quoted, ", "), strings.Join(params, ", "))
	}

	if d.Returning {
		query += " RETURNING " + d.Quote(t.PrimaryKey)
	}
	return query, args
}

// Update builds an UPDATE setting record's columns on rows matching all conditions.
func (d Dialect) Update(table string, record adapter.Record, conditions map[string]interface{}) (string, []interface{}) {
	cols := SortedKeys(record)
	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+len(conditions))
	for i, c := range cols {
		args = append(args, record[c])
		sets[i] = fmt.Sprintf("%s = %s", d.Quote(c), d.Placeholder(len(args)))
	}

	where, args := d.where(conditions, args)
	return fmt.Sprintf("UPDATE %s SET %s%s", d.Quote(table), strings.Join(sets, ", "), where), args
}

// Delete builds a DELETE of rows matching all conditions.
func (d Dialect) Delete(table string, conditions map[string]interface{}) (string, []interface{}) {
	where, args := d.where(conditions, nil)
	return fmt.Sprintf("DELETE FROM %s%s", d.Quote(table), where), args
}

// where renders the conditions, appending their values to args. Nil values
// compare with IS NULL.
func (d Dialect) where(conditions map[string]interface{}, args []interface{}) (string, []interface{}) {
	if len(conditions) == 0 {
		return "", args
	}
	parts := make([]string, 0, len(conditions))
	for _, c := range SortedKeys(conditions) {
		v := conditions[c]
		if v == nil {
			parts = append(parts, d.Quote(c)+" IS NULL")
			continue
		}
		args = append(args, v)
		parts = append(parts, fmt.Sprintf("%s = %s", d.Quote(c), d.Placeholder(len(args))))
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// VarcharLength returns the declared length of a string column, 255 when unset.
func VarcharLength(c adapter.ColumnSpec) int {
	if c.Length > 0 {
		return c.Length
	}
	return 255
}
