package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shook/internal/deployment"
	"shook/internal/history"
	"shook/internal/install"
	"shook/internal/security"
	"shook/internal/server"
	"shook/internal/socket"
)

var (
	serveOverrides overrideFlags
	dbPath         string
	noHistory      bool
	testMode       bool
	deployQueue    int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the HTTP server that receives GitHub webhook deliveries.

Deliveries are verified against SHOOK_WEBHOOK_SECRET. When the event is one
of update_events, the tracked branch is pulled and the service restarted.
Values given on the command line override shook.yaml.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveOverrides.register(serveCmd)
	serveCmd.Flags().StringVar(&dbPath, "db", getEnvOrDefault("SHOOK_DB_PATH", install.DefaultDBPath), "Path to SQLite delivery history")
	serveCmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record deliveries")
	serveCmd.Flags().BoolVar(&testMode, "test-mode", os.Getenv("SHOOK_TEST_MODE") == "1", "Disable rate limiting and history")
	serveCmd.Flags().IntVar(&deployQueue, "queue", 8, "Deploys that may wait for the running one before new deliveries get 503")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := setupLogging(logFile, logLevel)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer closeLog()

	logger.Info("Starting shook", "version", version)

	cfg, path, err := loadServerConfig(cmd, &serveOverrides, logger)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return err
	}
	logger.Info("Configuration loaded", "config", path, "repo_path", cfg.RepoPath, "system_name", cfg.SystemName)

	secret := webhookSecret()
	switch {
	case secret == "":
		logger.Warn("No webhook secret configured; signatures will not be checked", "env", install.SecretEnvVar)
	case security.IsWeakSecret(secret):
		logger.Warn("Webhook secret is weak; generate one with shook init")
	}

	orch := deployment.NewOrchestrator(logger)
	if secret != "" {
		orch.Redact = []string{secret}
	}
	dispatcher := deployment.NewDispatcher(orch, 1, deployQueue, logger)

	var hist *history.History
	if !testMode && !noHistory {
		logger.Info("Initializing history database", "db", dbPath)
		hist, err = history.NewHistory(dbPath)
		if err != nil {
			logger.Error("Failed to initialize history database", "error", err)
			return fmt.Errorf("failed to initialize history database: %w", err)
		}
		defer hist.Close()
	}

	srv, err := server.NewServer(server.Options{
		Config:     cfg,
		Secret:     secret,
		Dispatcher: dispatcher,
		History:    hist,
		Logger:     logger,
		TestMode:   testMode,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := socket.NewProvisioner(logger).Provision(ctx, cfg.Addr, cfg.SocketGroup, cfg.SocketUser)
	if err != nil {
		logger.Error("Failed to open listener", "addr", cfg.Addr.String(), "error", err)
		return err
	}

	serveErr := srv.Serve(ctx, ln)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
	defer cancel()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Deploys still running at shutdown were cancelled", "error", err)
	}

	if serveErr != nil {
		logger.Error("Server failed", "error", serveErr)
		return fmt.Errorf("server failed: %w", serveErr)
	}
	logger.Info("Server stopped")
	return nil
}
