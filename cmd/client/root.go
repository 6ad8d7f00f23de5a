package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/user-directory/internal/client"
	"github.com/spec-kit/user-directory/internal/config"
	"github.com/spec-kit/user-directory/internal/observability"
)

// app is built once per invocation in PersistentPreRunE.
type app struct {
	store   *client.Store
	service *client.Service
	logger  *zap.Logger
}

type rootFlags struct {
	apiURL    string
	sessionDB string
}

// NewRootCmd creates the root command for the directory CLI.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	state := &app{}

	cmd := &cobra.Command{
		Use:           "userdir",
		Short:         "Command line client for the user directory API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return state.init(cmd.Context(), flags)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return state.close()
		},
	}

	cmd.PersistentFlags().StringVar(&flags.apiURL, "api", "", "API base URL (default from CLIENT_API_URL)")
	cmd.PersistentFlags().StringVar(&flags.sessionDB, "session-db", "", "session database path (default from CLIENT_SESSION_DB)")

	cmd.AddCommand(newRegisterCmd(state))
	cmd.AddCommand(newLoginCmd(state))
	cmd.AddCommand(newProfileCmd(state))
	cmd.AddCommand(newRefreshCmd(state))
	cmd.AddCommand(newLogoutCmd(state))
	cmd.AddCommand(newStatusCmd(state))

	return cmd
}

func (a *app) init(ctx context.Context, flags *rootFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.apiURL != "" {
		cfg.Client.BaseURL = flags.apiURL
	}
	if flags.sessionDB != "" {
		cfg.Client.SessionDB = flags.sessionDB
	}

	logCfg := cfg.Logger
	logCfg.Encoding = "console"
	logCfg.Output = "stderr"
	if a.logger, err = observability.NewLogger(logCfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if a.store, err = client.OpenStore(ctx, cfg.Client.SessionDB); err != nil {
		return err
	}
	session := client.NewSession(a.store)
	if err := session.Load(ctx); err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	api := client.NewAPIClient(cfg.Client.BaseURL, cfg.Client.HTTPTimeout())
	a.service = client.NewService(api, session, a.logger)
	return nil
}

func (a *app) close() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// fail prints a terminal friendly message and returns err so the exit code is non-zero.
func fail(cmd *cobra.Command, err error) error {
	cmd.PrintErrln("error:", client.UserMessage(err))
	return err
}
