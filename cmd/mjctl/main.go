// Command mjctl is the operator CLI for the MJ Member service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mjctl",
		Short: "Operator tool for the MJ Member messaging service",
		Long: `mjctl creates members and their API keys, explains which target
queries a member's inbox is built from, and reads an inbox through the API.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Disable completion command
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newMemberCmd(), newTargetsCmd(), newInboxCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
