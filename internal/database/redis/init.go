package redis

import (
	"github.com/redbco/redb-persistence/pkg/adapter"
)

func init() {
	// Register Redis adapter with the global registry
	adapter.Register(NewAdapter())
}
