package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/auth"
	"github.com/aradhanasaha/coffee-sub000/internal/config"
	"github.com/aradhanasaha/coffee-sub000/internal/push"
	"github.com/aradhanasaha/coffee-sub000/internal/sweep"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "brewlog-api",
		Short: "Brewlog coffee journal backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newSweepCommand(), newVAPIDKeysCommand(), newMintTokenCommand(), newModerateCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before configuration")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "PostgreSQL DSN")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-file", defaults.GetString("log.file"), "Optional rotated JSON log file")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("dispatch-secret", "", "Shared secret for internal dispatch calls (overrides env)")
	cmd.PersistentFlags().String("dispatch-webhook-url", defaults.GetString("dispatch.webhook_url"), "Remote dispatch endpoint; empty dispatches in-process")
	cmd.PersistentFlags().Bool("sweep-enabled", defaults.GetBool("sweep.enabled"), "Run the inactivity sweep on its schedule")
	cmd.PersistentFlags().String("sweep-schedule", defaults.GetString("sweep.schedule"), "Cron schedule for the inactivity sweep")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.file", "log-file")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "dispatch.secret", "dispatch-secret")
	bindFlag(cmd, "dispatch.webhook_url", "dispatch-webhook-url")
	bindFlag(cmd, "sweep.enabled", "sweep-enabled")
	bindFlag(cmd, "sweep.schedule", "sweep-schedule")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	app, err := newApplication(appConfig)
	if err != nil {
		return err
	}
	defer app.Close()
	logger := app.logger

	handler, err := app.httpHandler()
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay, err := app.outboxRelay()
	if err != nil {
		return err
	}
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay.Run(signalCtx)
	}()

	var scheduler *sweep.Scheduler
	if appConfig.SweepEnabled {
		scheduler, err = sweep.NewScheduler(appConfig.SweepSchedule, app.sweeper, logger)
		if err != nil {
			return err
		}
		scheduler.Start()
		logger.Info("inactivity sweep scheduled", zap.String("schedule", appConfig.SweepSchedule))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.Bool("push_enabled", appConfig.PushEnabled()))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if scheduler != nil {
			scheduler.Stop(shutdownCtx)
		}
		err := httpServer.Shutdown(shutdownCtx)
		<-relayDone
		return err
	case err := <-errCh:
		stop()
		<-relayDone
		return err
	}
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the inactivity nudge sweep once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			app, err := newApplication(appConfig)
			if err != nil {
				return err
			}
			defer app.Close()

			nudged, err := app.sweeper.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "nudged %d users\n", nudged)
			return nil
		},
	}
}

func newVAPIDKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair for web push",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			publicKey, privateKey, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "BREWLOG_PUSH_VAPID_PUBLIC_KEY=%s\nBREWLOG_PUSH_VAPID_PRIVATE_KEY=%s\n", publicKey, privateKey)
			return nil
		},
	}
}

func newMintTokenCommand() *cobra.Command {
	var (
		userID      string
		displayName string
		ttl         time.Duration
	)
	cmd := &cobra.Command{
		Use:   "mint-token",
		Short: "Mint a session token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(appConfig.AuthSigningSecret),
				Issuer:        appConfig.AuthIssuer,
				TokenTTL:      ttl,
			})
			if err != nil {
				return err
			}
			token, expiresIn, err := issuer.IssueSessionToken(cmd.Context(), auth.SessionSubject{
				UserID:      userID,
				DisplayName: displayName,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n# expires in %ds\n", token, expiresIn)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id to mint the token for")
	cmd.Flags().StringVar(&displayName, "name", "", "Display name carried in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newModerateCommand() *cobra.Command {
	moderate := &cobra.Command{
		Use:   "moderate",
		Short: "Moderation actions on coffee logs",
	}
	moderate.AddCommand(
		newModerationAction("delete-log", "Soft delete a coffee log", func(ctx context.Context, app *application, logID string) error {
			return app.social.SoftDeleteLog(ctx, logID)
		}),
		newModerationAction("hide-photo", "Hide the photo of a coffee log", func(ctx context.Context, app *application, logID string) error {
			return app.social.HidePhoto(ctx, logID)
		}),
	)
	return moderate
}

func newModerationAction(use, short string, action func(context.Context, *application, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <log-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			app, err := newApplication(appConfig)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := action(cmd.Context(), app, args[0]); err != nil {
				return err
			}
			app.logger.Info("moderation action applied", zap.String("action", use), zap.String("log_id", args[0]))
			return nil
		},
	}
}
