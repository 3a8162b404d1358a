package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ledger/internal/config"
	"ledger/internal/log"
	"ledger/internal/session"
)

type root struct {
	open    Opener
	app     *App
	envFile string
	userID  string
	debug   bool
}

// Execute runs the ledger command tree with args, writing to out. A nil
// open builds the App from the environment.
func Execute(ctx context.Context, open Opener, args []string, out io.Writer) error {
	r, cmd := newRoot(open)
	defer r.close()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(out)
	return cmd.ExecuteContext(ctx)
}

func newRoot(open Opener) (*root, *cobra.Command) {
	r := &root{open: open}
	if r.open == nil {
		r.open = r.openFromEnv
	}

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Track wallets, transactions and categories",
		Long: `ledger keeps wallet balances consistent with their transactions.

Every transaction create, update or delete adjusts the affected wallet
balance by the exact difference it introduces.

Example:
  ledger wallet create --name Cash --currency USD --opening 50
  ledger tx add --wallet <id> --income 100 --category Salary
  ledger report summary`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return r.start(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&r.envFile, "env-file", "", "env file to load (default .env)")
	cmd.PersistentFlags().StringVar(&r.userID, "user", "", "user id (overrides LEDGER_USER_ID)")
	cmd.PersistentFlags().BoolVar(&r.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		r.walletCmd(),
		r.txCmd(),
		r.categoryCmd(),
		r.reportCmd(),
		r.auditCmd(),
	)
	return r, cmd
}

func (r *root) start(ctx context.Context) error {
	app, err := r.open(ctx)
	if err != nil {
		return err
	}
	r.app = app
	if err := app.Ledger.Load(ctx); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return errors.New("no authenticated session found: set LEDGER_USER_ID or pass --user")
		}
		return err
	}
	return nil
}

func (r *root) openFromEnv(ctx context.Context) (*App, error) {
	if err := LoadEnvFile(r.envFile); err != nil {
		return nil, err
	}
	cfg, err := LoadConfig((*config.Config).Validate)
	if err != nil {
		return nil, err
	}
	if u := strings.TrimSpace(r.userID); u != "" {
		cfg.UserID = u
	}
	level := cfg.LogLevel
	if r.debug {
		level = "debug"
	}
	logger := SetupLogger(level, log.ComponentCLI)
	return Open(ctx, cfg, logger)
}

func (r *root) close() {
	if r.app == nil {
		return
	}
	if err := r.app.Close(); err != nil {
		r.app.Logger.Warn("Failed to close backend", log.FieldError, err)
	}
}
