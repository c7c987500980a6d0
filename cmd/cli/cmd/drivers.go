package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/redbco/redb-persistence/cmd/cli/internal/resources"
	"github.com/redbco/redb-persistence/pkg/adapter"

	// Import database adapters to trigger their init() registration
	_ "github.com/redbco/redb-persistence/internal/database/mongodb"
	_ "github.com/redbco/redb-persistence/internal/database/mysql"
	_ "github.com/redbco/redb-persistence/internal/database/postgres"
	_ "github.com/redbco/redb-persistence/internal/database/redis"
	_ "github.com/redbco/redb-persistence/internal/database/sqlite"
)

// driversCmd represents the drivers command
var driversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "List supported database dialects",
	Long: `Display every dialect a connection type may name, with its aliases, default
port, system database and whether a driver is compiled in.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return resources.Drivers(adapter.GlobalRegistry(), os.Stdout)
	},
}
