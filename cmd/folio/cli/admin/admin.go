package admin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mwantia/folio/internal/agent"
	"github.com/mwantia/folio/internal/auth"
	config "github.com/mwantia/folio/internal/config/server"
	"github.com/mwantia/folio/pkg/db/store"
	"github.com/spf13/cobra"
)

func NewAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative tasks against the metadata store",
		Long:  "Provision users and inspect the metadata store without running the agent.",
	}

	cmd.AddCommand(newUserCommand())
	cmd.AddCommand(newStatsCommand())

	return cmd
}

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	cmd.AddCommand(newUserCreateCommand())

	return cmd
}

// passwordEnv is read when neither --password nor --password-stdin is given.
const passwordEnv = "FOLIO_ADMIN_PASSWORD"

func newUserCreateCommand() *cobra.Command {
	var password string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user allowed to manage content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin(), password, passwordStdin)
			if err != nil {
				return err
			}

			return withStore(cmd.Context(), func(ctx context.Context, s *store.GormStore) error {
				// Provision never signs tokens; the secret is unused
				authenticator, err := auth.NewAuthenticator(s, make([]byte, 32), 0)
				if err != nil {
					return err
				}

				user, err := authenticator.Provision(ctx, args[0], password)
				if err != nil {
					return fmt.Errorf("failed to create user: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Created user '%s' (id %d)\n", user.Username, user.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "password for the new user, visible in process listings")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")

	return cmd
}

// readPassword picks the password from stdin, the flag or the environment,
// in that order.
func readPassword(in io.Reader, flag string, fromStdin bool) (string, error) {
	password := flag
	if fromStdin {
		scanner := bufio.NewScanner(in)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("failed to read password from stdin: %w", err)
			}
		}
		password = strings.TrimRight(scanner.Text(), "\r")
	} else if password == "" {
		password = os.Getenv(passwordEnv)
	}

	if password == "" {
		return "", fmt.Errorf("a password is required: use --password-stdin, --password or %s", passwordEnv)
	}
	return password, nil
}

func newStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print row counts of the metadata store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s *store.GormStore) error {
				stats, err := s.Stats(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "STORE\t%s\n", s.Name())
				fmt.Fprintf(w, "ARTICLES\t%d\n", stats.Articles)
				fmt.Fprintf(w, "DOCUMENTS\t%d\n", stats.Documents)
				fmt.Fprintf(w, "TAGS\t%d\n", stats.Tags)
				fmt.Fprintf(w, "USERS\t%d\n", stats.Users)
				return w.Flush()
			})
		},
	}

	return cmd
}

func withStore(ctx context.Context, fn func(context.Context, *store.GormStore) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}

	s, err := agent.OpenStore(ctx, cfg.Metadata)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(ctx, s)
}
