package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mj-member/mjmember/clients/go/mjmember"
)

func newInboxCmd() *cobra.Command {
	var (
		baseURL  string
		memberID int64
		apiKey   string
		opts     mjmember.ListOptions
	)

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List a member's messages through the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if memberID <= 0 || apiKey == "" {
				return errors.New("--member and --key are required")
			}

			client := mjmember.NewClient(baseURL, memberID, apiKey)
			resp, err := client.Messages(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, msg := range resp.Messages {
				mark := " "
				if !msg.Read {
					mark = "*"
				}
				from := msg.SenderName
				if from == "" {
					from = "anonymous"
				}
				fmt.Fprintf(out, "%s %s  %-13s %-8s %s: %s\n",
					mark,
					msg.CreatedAt.Local().Format("2006-01-02 15:04"),
					msg.TargetType,
					msg.Status,
					from,
					msg.Subject,
				)
			}
			fmt.Fprintf(out, "%d message(s)\n", resp.Count)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", os.Getenv("MJMEMBER_URL"), "API base URL")
	cmd.Flags().Int64Var(&memberID, "member", envInt64("MJMEMBER_ID"), "member ID")
	cmd.Flags().StringVar(&apiKey, "key", os.Getenv("MJMEMBER_KEY"), "member API key")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum messages to list")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only messages with this status")
	cmd.Flags().BoolVar(&opts.UnreadOnly, "unread", false, "only unread messages")
	cmd.Flags().BoolVar(&opts.All, "all", false, "every message (moderators only)")
	return cmd
}

func envInt64(key string) int64 {
	n, _ := strconv.ParseInt(os.Getenv(key), 10, 64)
	return n
}
