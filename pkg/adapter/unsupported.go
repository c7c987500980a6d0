package adapter

import (
	"context"

	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
)

// UnsupportedSchemaOperator is a nil object pattern for schemaless databases.
type UnsupportedSchemaOperator struct {
	dbType dbcapabilities.DatabaseType
}

func (u *UnsupportedSchemaOperator) EnsureTable(ctx context.Context, table TableSpec) error {
	return NewUnsupportedOperationError(u.dbType, "ensure table", "schemaless store")
}

func (u *UnsupportedSchemaOperator) ListTables(ctx context.Context) ([]string, error) {
	return nil, NewUnsupportedOperationError(u.dbType, "list tables", "")
}

func (u *UnsupportedSchemaOperator) DropTable(ctx context.Context, table string) error {
	return NewUnsupportedOperationError(u.dbType, "drop table", "")
}

// NewUnsupportedSchemaOperator creates a new unsupported schema operator.
func NewUnsupportedSchemaOperator(dbType dbcapabilities.DatabaseType) SchemaOperator {
	return &UnsupportedSchemaOperator{dbType: dbType}
}

