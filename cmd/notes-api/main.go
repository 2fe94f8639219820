package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kamalennam/notes-app-backend/internal/config"
	"github.com/Kamalennam/notes-app-backend/internal/database"
	"github.com/Kamalennam/notes-app-backend/internal/digest"
	"github.com/Kamalennam/notes-app-backend/internal/logging"
	"github.com/Kamalennam/notes-app-backend/internal/mailer"
	"github.com/Kamalennam/notes-app-backend/internal/notes"
	"github.com/Kamalennam/notes-app-backend/internal/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "notes-api",
		Short: "Notes backend service with daily reminder digests",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	digestCmd := &cobra.Command{
		Use:   "digest",
		Short: "Run one reminder digest dispatch cycle and exit",
		Long: "Queries the store for notes scheduled within the current UTC day, " +
			"emails a digest when any match, and exits. Intended to be invoked " +
			"once per day by an external scheduler.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd.Context())
		},
	}
	rootCmd.AddCommand(digestCmd)

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("smtp-host", defaults.GetString("smtp.host"), "SMTP endpoint host")
	cmd.PersistentFlags().Int("smtp-port", defaults.GetInt("smtp.port"), "SMTP connection port")
	cmd.PersistentFlags().String("smtp-user", "", "SMTP auth principal")
	cmd.PersistentFlags().String("smtp-secret", "", "SMTP auth credential (overrides env)")
	cmd.PersistentFlags().String("mail-from", "", "Digest sender address (defaults to smtp-user)")
	cmd.PersistentFlags().String("mail-to", "", "Digest recipient address (defaults to smtp-user)")
	cmd.PersistentFlags().String("digest-token", "", "Shared secret for the HTTP digest trigger endpoint")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "smtp.host", "smtp-host")
	bindFlag(cmd, "smtp.port", "smtp-port")
	bindFlag(cmd, "smtp.user", "smtp-user")
	bindFlag(cmd, "smtp.secret", "smtp-secret")
	bindFlag(cmd, "mail.from", "mail-from")
	bindFlag(cmd, "mail.to", "mail-to")
	bindFlag(cmd, "digest.trigger_token", "digest-token")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	// A missing .env file is fine; env vars may come from the environment.
	_ = godotenv.Load()

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

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, notesStore, err := openStore(appConfig, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var dispatcher *digest.Dispatcher
	sender, err := newSender(appConfig, logger)
	if err != nil {
		logger.Warn("digest dispatch disabled", zap.Error(err))
	} else {
		dispatcher, err = digest.NewDispatcher(digest.DispatcherConfig{
			Notes:  notesStore,
			Sender: sender,
			Logger: logger,
		})
		if err != nil {
			return err
		}
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		NotesStore:   notesStore,
		Dispatcher:   dispatcher,
		TriggerToken: appConfig.DigestTriggerToken,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runDigest(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	sender, err := newSender(appConfig, logger)
	if err != nil {
		// Missing credentials fail before any connection attempt.
		logger.Error("digest dispatch misconfigured", zap.Error(err))
		return err
	}

	db, notesStore, err := openStore(appConfig, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	dispatcher, err := digest.NewDispatcher(digest.DispatcherConfig{
		Notes:  notesStore,
		Sender: sender,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	outcome, runErr := dispatcher.Run(ctx)
	logger.Info("digest run finished", zap.String("outcome", string(outcome)))
	if !outcome.Succeeded() {
		return fmt.Errorf("digest run failed with outcome %s: %w", outcome, runErr)
	}
	return nil
}

func openStore(appConfig config.AppConfig, logger *zap.Logger) (*gorm.DB, *notes.Store, error) {
	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, nil, err
	}

	notesStore, err := notes.NewStore(notes.StoreConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}

	return db, notesStore, nil
}

func newSender(appConfig config.AppConfig, logger *zap.Logger) (*mailer.SMTPSender, error) {
	return mailer.NewSMTPSender(mailer.Config{
		Host:   appConfig.SMTPHost,
		Port:   appConfig.SMTPPort,
		User:   appConfig.SMTPUser,
		Secret: appConfig.SMTPSecret,
		From:   appConfig.MailFrom,
		To:     appConfig.MailTo,
	}, logger)
}
