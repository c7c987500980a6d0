package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/redbco/redb-persistence/cmd/cli/internal/config"
)

var (
	configFile string
	// Build information variables
	Version   = "dev"     // Default version for development
	GitCommit = "unknown" // Git commit hash
	BuildTime = "unknown" // Build timestamp
)

// printVersionInfo displays detailed version information
func printVersionInfo() {
	fmt.Printf("reDB persistence CLI (build %s)\n", Version)
	fmt.Printf("Built: %s, from commit: %s\n", BuildTime, GitCommit)
	fmt.Printf("Go version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.ServiceName,
	Short: "reDB persistence command line interface",
	Long: "Read, write, delete and check database-backed resources addressed as " +
		"scheme://connection/database/table/id, using the connections of the config file.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Check if --version flag is set
		if cmd.Flags().Lookup("version") != nil && cmd.Flags().Lookup("version").Changed {
			printVersionInfo()
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Initialize configuration
	rootCmd.PersistentFlags().StringVar(&configFile, "config", os.ExpandEnv("$HOME/.redb/persistence.yaml"), "Path to config file")

	// Add version flag
	rootCmd.Flags().Bool("version", false, "Show version information and exit")

	// Initialize config when the command is executed
	cobra.OnInitialize(func() {
		if err := config.Init(configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
			os.Exit(1)
		}
	})

	// Setup all commands
	setupCommands()

	// Setup completion
	setupCompletion()
}

func main() {
	Execute()
}
