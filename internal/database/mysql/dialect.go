package mysql

import (
	"fmt"

	"github.com/redbco/redb-persistence/internal/database/common"
	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
)

// Dialect generates MySQL statements.
var Dialect = dialectFor(dbcapabilities.MySQL)

func dialectFor(dbType dbcapabilities.DatabaseType) common.Dialect {
	return common.Dialect{
		Type:        dbType,
		Quote:       common.QuoteBacktickIdentifier,
		Placeholder: common.QuestionPlaceholder,
		ColumnType:  columnType,
		IdentityColumn: func(name string) string {
			return name + " BIGINT AUTO_INCREMENT PRIMARY KEY"
		},
		EmptyInsert: "INSERT INTO %s () VALUES ()",
		ListTables: `SELECT table_name FROM information_schema.tables
			WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
			ORDER BY table_name`,
	}
}

func columnType(c adapter.ColumnSpec) string {
	switch c.Type {
	case adapter.ColumnString:
		return fmt.Sprintf("VARCHAR(%d)", common.VarcharLength(c))
	case adapter.ColumnInteger:
		return "BIGINT"
	case adapter.ColumnFloat:
		return "DOUBLE"
	case adapter.ColumnBoolean:
		return "BOOLEAN"
	case adapter.ColumnTimestamp:
		return "DATETIME(3)"
	case adapter.ColumnDate:
		return "DATE"
	case adapter.ColumnTime:
		return "TIME"
	case adapter.ColumnBytes:
		return "LONGBLOB"
	default:
		return "LONGTEXT"
	}
}
