package mongodb

import (
	"github.com/redbco/redb-persistence/pkg/adapter"
)

func init() {
	// Register MongoDB adapter with the global registry
	adapter.Register(NewAdapter())
}
