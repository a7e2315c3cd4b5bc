// Command console runs the Smart Risk operator console: a local web UI over
// one authenticated backend session, plus CLI session commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"smartrisk/internal/console"
	"smartrisk/internal/platform/config"
	"smartrisk/internal/platform/server"
	"smartrisk/internal/platform/telemetry"
	"smartrisk/internal/session"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "console",
		Short:         "Smart Risk operator console",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newLoginCmd(&configPath),
		newLogoutCmd(&configPath),
		newWhoamiCmd(&configPath),
	)
	return root
}

// buildStore loads config, installs logging and constructs the session store
// and its gateway as one unit.
func buildStore(configPath string, metrics *telemetry.ConsoleMetrics) (config.Config, *session.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	credPath := cfg.CredentialFile
	if credPath == "" {
		credPath, err = session.DefaultCredentialPath()
		if err != nil {
			return config.Config{}, nil, err
		}
	}

	store := session.New(cfg.BackendURL, session.NewCredentialFile(credPath), session.Options{
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
		Metrics: metrics,
	})
	return cfg, store, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdown, err := telemetry.Setup(ctx, "console")
			if err != nil {
				return fmt.Errorf("telemetry setup: %w", err)
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					slog.Error("telemetry shutdown error", "error", err)
				}
			}()

			metrics, err := telemetry.NewConsoleMetrics()
			if err != nil {
				return fmt.Errorf("metrics initialization: %w", err)
			}

			cfg, store, err := buildStore(*configPath, metrics)
			if err != nil {
				return err
			}

			// The guards stay closed until the phase settles, so the
			// listener may start before bootstrap completes.
			store.Bootstrap(ctx)

			app := console.New(store, slog.Default(), metrics)
			slog.Info("console starting",
				"addr", cfg.ListenAddr,
				"backend_url", cfg.BackendURL,
				"phase", store.Phase().String(),
			)
			return server.New(cfg.ListenAddr, app.Handler(), slog.Default()).Run(ctx)
		},
	}
}

func newLoginCmd(configPath *string) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the Smart Risk backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, store, err := buildStore(*configPath, nil)
			if err != nil {
				return err
			}
			store.Bootstrap(cmd.Context())

			principal, err := store.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Printf("Logged in as %s <%s> (roles: %s)\n",
				principal.Name, principal.Email, strings.Join(principal.Roles, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, store, err := buildStore(*configPath, nil)
			if err != nil {
				return err
			}
			store.Bootstrap(cmd.Context())
			store.Logout(cmd.Context())
			fmt.Println("Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, store, err := buildStore(*configPath, nil)
			if err != nil {
				return err
			}
			store.Bootstrap(cmd.Context())

			if store.Phase() != session.PhaseAuthenticated {
				return fmt.Errorf("not logged in")
			}
			p := store.Principal()
			fmt.Printf("%s <%s>\n", p.Name, p.Email)
			fmt.Printf("roles: %s\n", strings.Join(p.Roles, ", "))
			fmt.Printf("permissions: %s\n", strings.Join(p.Permissions, ", "))
			return nil
		},
	}
}
