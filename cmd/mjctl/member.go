package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/mj-member/mjmember/internal/inbox"
	"github.com/mj-member/mjmember/internal/models"
	"github.com/mj-member/mjmember/internal/store"
)

type storeFlags struct {
	dbPath      string
	databaseURL string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.dbPath, "db", envOr("DB_PATH", "./data/mjmember.db"), "SQLite database path")
	cmd.Flags().StringVar(&f.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL URL (takes precedence over --db)")
}

// open returns the configured store. PostgreSQL schemas are migrated first.
func (f *storeFlags) open(ctx context.Context) (store.DataStore, error) {
	if f.databaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, f.databaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	}
	return store.NewSQLiteStore(ctx, f.dbPath)
}

func newMemberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage members",
	}
	cmd.AddCommand(newMemberAddCmd())
	return cmd
}

func newMemberAddCmd() *cobra.Command {
	var (
		sf        storeFlags
		name      string
		email     string
		role      string
		moderator bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a member and print its API key",
		Long: `Create a member with a freshly generated API key. The key is printed
once and only its bcrypt hash is stored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name = strings.TrimSpace(name)
			if name == "" {
				return errors.New("--name is required")
			}

			ctx := cmd.Context()
			ds, err := sf.open(ctx)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer ds.Close()

			key := uuid.NewString()
			hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash api key: %w", err)
			}

			member, err := ds.CreateMember(ctx, &models.Member{
				Name:        name,
				Email:       strings.TrimSpace(email),
				Role:        inbox.NormalizeRole(role),
				CanModerate: moderator,
				APIKeyHash:  string(hash),
			})
			if err != nil {
				return fmt.Errorf("create member: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "member %d created (role %q, moderator %v)\n", member.ID, member.Role, member.CanModerate)
			fmt.Fprintf(out, "api key: %s\n", key)
			fmt.Fprintln(out, "store the key now, it cannot be shown again")
			return nil
		},
	}

	sf.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", "", "role key, e.g. animateur or coordinateur")
	cmd.Flags().BoolVar(&moderator, "moderator", false, "allow moderating every message")
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
