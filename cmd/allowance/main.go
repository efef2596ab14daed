package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"allowance/internal/amqp"
	"allowance/internal/auth"
	"allowance/internal/cli"
	apphttp "allowance/internal/http"
	"allowance/internal/log"
	"allowance/internal/records"
	"allowance/internal/services"
	"allowance/internal/session"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger("info"))
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx, stop := cli.SignalContext()
	defer stop()

	result := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := result.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	repo := records.NewRepository(result.Store)

	sessions := session.NewManager(repo, cfg.SessionTTL)
	sessions.StartJanitor(time.Minute)
	defer sessions.Stop()

	verifier, err := auth.NewVerifier(cfg.PasswordScheme)
	if err != nil {
		logger.Error("Invalid password scheme", log.FieldError, err)
		os.Exit(1)
	}

	// Month-archived notifications are optional; without AMQP_URL resets
	// only archive locally.
	var notifier services.ArchiveNotifier
	if cfg.NotificationsEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, month notifications disabled", log.FieldError, err)
		} else {
			defer client.Close()
			notifier = client
			logger.Info("AMQP notifications enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:      auth.NewAuthenticator(repo, verifier),
		Sessions:  sessions,
		Allowance: services.NewAllowanceService(notifier),
		Expenses:  services.NewExpenseService(),
		Store:     repo,
		Logger:    logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting allowance server", log.FieldOperation, log.OpStartup, "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
