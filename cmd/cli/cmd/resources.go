package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/redbco/redb-persistence/cmd/cli/internal/config"
	"github.com/redbco/redb-persistence/cmd/cli/internal/resources"
	"github.com/redbco/redb-persistence/cmd/cli/internal/session"
	"github.com/redbco/redb-persistence/pkg/persistence"
)

// withSession runs fn against a session built from the loaded configuration.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session.Session, opts persistence.Options) error) error {
	pairs, _ := cmd.Flags().GetStringArray("option")
	opts, err := resources.ParseOptions(pairs)
	if err != nil {
		return err
	}

	s, err := session.New(config.GetConfig(), Version)
	if err != nil {
		return err
	}
	defer s.Close()

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" && s.Metrics != nil {
		srv := &http.Server{Addr: addr, Handler: s.Metrics.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.Logger.Warnf("metrics server stopped: %v", err)
			}
		}()
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, s, opts)
}

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get [resource]",
	Short: "Print a stored resource",
	Long: `Read the resource and print its JSON document.

Examples:
  redb-persist get jdbc://crm/orders/customer/1
  redb-persist get jdbc://crm/orders/notes/7f9c... --option type=derby`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session, opts persistence.Options) error {
			pretty := term.IsTerminal(int(os.Stdout.Fd()))
			return resources.Get(ctx, s, args[0], opts, os.Stdout, pretty)
		})
	},
}

// putCmd represents the put command
var putCmd = &cobra.Command{
	Use:   "put [resource]",
	Short: "Store a resource",
	Long: `Store the JSON document read from --file or standard input. A resource without an
id gets one from the store; the stored identifier is printed.

Examples:
  echo '{"name":"Ada"}' | redb-persist put jdbc://crm/orders/customer/
  redb-persist put jdbc://crm/orders/customer/1 --file customer.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = os.Stdin
		if file, _ := cmd.Flags().GetString("file"); file != "" && file != "-" {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open %s: %v", file, err)
			}
			defer f.Close()
			in = f
		}
		return withSession(cmd, func(ctx context.Context, s *session.Session, opts persistence.Options) error {
			return resources.Put(ctx, s, args[0], opts, in, os.Stdout)
		})
	},
}

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete [resource]",
	Short: "Delete a stored resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session, opts persistence.Options) error {
			return resources.Delete(ctx, s, args[0], opts, os.Stdout)
		})
	},
}

// existsCmd represents the exists command
var existsCmd = &cobra.Command{
	Use:   "exists [resource]",
	Short: "Check whether a resource is stored",
	Long:  `Print true or false. With --fail the command exits non-zero when the resource is missing.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failMissing, _ := cmd.Flags().GetBool("fail")
		return withSession(cmd, func(ctx context.Context, s *session.Session, opts persistence.Options) error {
			found, err := resources.Exists(ctx, s, args[0], opts, os.Stdout)
			if err != nil {
				return err
			}
			if !found && failMissing {
				return fmt.Errorf("%s does not exist", args[0])
			}
			return nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{getCmd, putCmd, deleteCmd, existsCmd} {
		cmd.Flags().StringArrayP("option", "o", nil, "Handler option as key=value (type, databaseName, name or a driver property)")
		cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")
	}
	putCmd.Flags().StringP("file", "f", "-", "File holding the JSON document (- for standard input)")
	existsCmd.Flags().Bool("fail", false, "Exit non-zero when the resource does not exist")
}
