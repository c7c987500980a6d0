package main

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/redbco/redb-persistence/cmd/cli/internal/config"
)

// resourceCompletion completes the connection part of a resource identifier
// from the configured connections.
func resourceCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cfg := config.GetConfig()
	if cfg == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var filtered []string
	for name := range cfg.Connections {
		candidate := cfg.Scheme + "://" + name + "/"
		if strings.HasPrefix(candidate, toComplete) {
			filtered = append(filtered, candidate)
		}
	}
	sort.Strings(filtered)

	return filtered, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

// connectionNameCompletion provides completion for connection names
func connectionNameCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg := config.GetConfig()
	if len(args) > 0 || cfg == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var filtered []string
	for name := range cfg.Connections {
		if strings.HasPrefix(name, toComplete) {
			filtered = append(filtered, name)
		}
	}
	sort.Strings(filtered)

	return filtered, cobra.ShellCompDirectiveNoFileComp
}

// setupCustomCompletions adds custom completion functions to commands
func setupCustomCompletions() {
	getCmd.ValidArgsFunction = resourceCompletion
	putCmd.ValidArgsFunction = resourceCompletion
	deleteCmd.ValidArgsFunction = resourceCompletion
	existsCmd.ValidArgsFunction = resourceCompletion

	setPasswordConnectionsCmd.ValidArgsFunction = connectionNameCompletion
}
