package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mj-member/mjmember/internal/inbox"
)

func newTargetsCmd() *cobra.Command {
	var (
		memberID int64
		role     string
		global   bool
	)

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "Print the target queries an inbox is built from",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := inbox.BuildRecipientTargetQueries(memberID, role, global)
			out := cmd.OutOrStdout()
			if len(targets) == 0 {
				fmt.Fprintln(out, "no targets")
				return nil
			}
			for i, t := range targets {
				fmt.Fprintf(out, "%d. %s\n", i+1, t)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&memberID, "member", 0, "member ID (0 for an anonymous viewer)")
	cmd.Flags().StringVar(&role, "role", "", "role key")
	cmd.Flags().BoolVar(&global, "global", false, "include organisation-wide messages")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if memberID < 0 {
			return errors.New("--member must not be negative")
		}
		return nil
	}
	return cmd
}
