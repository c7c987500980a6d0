package mysql

import (
	"github.com/redbco/redb-persistence/pkg/adapter"
)

func init() {
	// Register MySQL and MariaDB adapters with the global registry
	adapter.Register(NewAdapter())
	adapter.Register(NewMariaDBAdapter())
}
