package postgres

import (
	"github.com/redbco/redb-persistence/pkg/adapter"
)

func init() {
	// Register PostgreSQL adapter with the global registry
	adapter.Register(NewAdapter())
}
