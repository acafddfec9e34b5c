package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/companion/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/config"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/library"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/server"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 10 * time.Second
	downloadIssuer  = "companion-api"
)

var (
	cfgFile string
	version = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "companion-api",
		Short: "Companion reader backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.ReadFile(viper.GetViper(), cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newImportCommand(), newMCPCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.StringSlice("allowed-origins", defaults.GetStringSlice("http.allowed_origins"), "CORS origins allowed to call the API")
	flags.String("database-path", defaults.GetString("database.path"), "SQLite database path")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	flags.String("signing-secret", "", "Session signing secret (overrides env)")
	flags.String("library-root", defaults.GetString("library.root"), "Directory holding uploaded books")
	flags.Bool("library-watch", defaults.GetBool("library.watch"), "Evict cached book text when files change on disk")
	flags.Int("words-per-page", defaults.GetInt("reading.words_per_page"), "Words per page for navigation and search")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.allowed_origins", "allowed-origins")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "tauth.signing_secret", "signing-secret")
	bindFlag(cmd, "library.root", "library-root")
	bindFlag(cmd, "library.watch", "library-watch")
	bindFlag(cmd, "reading.words_per_page", "words-per-page")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	app, err := openApplication(appConfig)
	if err != nil {
		return err
	}
	defer app.Close()
	logger := app.logger

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if appConfig.LibraryWatch {
		watcher, err := library.NewWatcher(app.libraryRoot, app.store, logger)
		if err != nil {
			return err
		}
		defer watcher.Close()
		go func() {
			if err := watcher.Run(signalCtx); err != nil {
				logger.Warn("library watcher stopped", zap.Error(err))
			}
		}()
	}

	sessions, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.TAuthSigningKey),
		Issuer:        appConfig.TAuthIssuer,
		CookieName:    appConfig.TAuthCookieName,
	})
	if err != nil {
		return err
	}
	readers, err := users.NewService(users.ServiceConfig{Database: app.db})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:       sessions,
		Readers:        readers,
		Reading:        app.reading,
		Library:        app.library,
		Downloads:      app.downloads,
		Realtime:       server.NewRealtimeDispatcher(),
		Limiter:        server.NewRateLimiter(appConfig.RatePerSecond, appConfig.RateBurst),
		AllowedOrigins: appConfig.AllowedOrigins,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress), zap.String("version", version))
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
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
