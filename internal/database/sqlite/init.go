package sqlite

import (
	"github.com/redbco/redb-persistence/pkg/adapter"
)

func init() {
	// Register SQLite adapter with the global registry
	adapter.Register(NewAdapter())
}
