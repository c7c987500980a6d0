package main

import (
	"os"

	"github.com/spf13/cobra"
)

// setupCommands initializes all commands and their relationships
func setupCommands() {
	// Add resource commands
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(existsCmd)

	// Add connections commands
	rootCmd.AddCommand(connectionsCmd)
	rootCmd.AddCommand(driversCmd)
}

// setupCompletion adds shell completion support
func setupCompletion() {
	// Add completion command
	rootCmd.AddCommand(completionCmd)

	// Setup custom completions
	setupCustomCompletions()
}

// completionCmd represents the completion command
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate completion script",
	Long: `To load completions:

Bash:
  $ source <(redb-persist completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ redb-persist completion bash > /etc/bash_completion.d/redb-persist
  # macOS:
  $ redb-persist completion bash > /usr/local/etc/bash_completion.d/redb-persist

Zsh:
  $ source <(redb-persist completion zsh)

  # To load completions for each session, execute once:
  $ redb-persist completion zsh > "${fpath[1]}/_redb-persist"

Fish:
  $ redb-persist completion fish | source

PowerShell:
  PS> redb-persist completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		default:
			return cmd.Root().GenPowerShellCompletion(os.Stdout)
		}
	},
}
