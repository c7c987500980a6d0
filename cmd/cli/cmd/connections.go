package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/redbco/redb-persistence/cmd/cli/internal/config"
	"github.com/redbco/redb-persistence/cmd/cli/internal/resources"
	"github.com/redbco/redb-persistence/cmd/cli/internal/session"
	"github.com/redbco/redb-persistence/pkg/persistence"
)

// connectionsCmd represents the connections command
var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "Inspect configured connections",
}

// listConnectionsCmd represents the list command
var listConnectionsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all connections",
	Long:  `Display a formatted list of the connections defined in the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session, _ persistence.Options) error {
			return resources.ListConnections(s, os.Stdout)
		})
	},
}

// healthConnectionsCmd represents the health command
var healthConnectionsCmd = &cobra.Command{
	Use:   "health",
	Short: "Ping every connection",
	Long: `Open a database on every connection and ping it. The database defaults to the
connection name.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, _ := cmd.Flags().GetString("database")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		return withSession(cmd, func(ctx context.Context, s *session.Session, _ persistence.Options) error {
			return resources.Health(ctx, s, database, timeout, os.Stdout)
		})
	},
}

// setPasswordConnectionsCmd represents the set-password command
var setPasswordConnectionsCmd = &cobra.Command{
	Use:   "set-password [connection-name]",
	Short: "Store a connection password in the keyring",
	Long: `Store the password of a connection in the keyring. Connections marked with
password_keyring: true read it from there instead of the config file. The password
is prompted for on a terminal and read from standard input otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		cfg := config.GetConfig()
		if _, ok := cfg.Connections[name]; !ok {
			return fmt.Errorf("connection %s is not configured", name)
		}

		password, err := readPassword(fmt.Sprintf("Password for %s: ", name))
		if err != nil {
			return fmt.Errorf("failed to read password: %v", err)
		}
		if password == "" {
			return fmt.Errorf("password cannot be empty")
		}

		km, err := session.OpenKeyring(cfg)
		if err != nil {
			return err
		}
		if err := km.SetConnectionPassword(name, password); err != nil {
			return fmt.Errorf("failed to store password: %v", err)
		}
		fmt.Printf("Stored password for %s in the %s keyring\n", name, km.Backend())
		return nil
	},
}

func readPassword(prompt string) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		fmt.Print(prompt)
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(passwordBytes), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	healthConnectionsCmd.Flags().String("database", "", "Database to open on each connection")
	healthConnectionsCmd.Flags().Duration("timeout", 5*time.Second, "Timeout per connection")

	connectionsCmd.AddCommand(listConnectionsCmd)
	connectionsCmd.AddCommand(healthConnectionsCmd)
	connectionsCmd.AddCommand(setPasswordConnectionsCmd)
}
