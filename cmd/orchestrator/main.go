package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/zappedin/orchestrator/internal/accounts"
	"github.com/zappedin/orchestrator/internal/api"
	"github.com/zappedin/orchestrator/internal/browserctx"
	"github.com/zappedin/orchestrator/internal/browserpool"
	"github.com/zappedin/orchestrator/internal/config"
	"github.com/zappedin/orchestrator/internal/deeplink"
	"github.com/zappedin/orchestrator/internal/intake"
	"github.com/zappedin/orchestrator/internal/logging"
	"github.com/zappedin/orchestrator/internal/loginflow"
	"github.com/zappedin/orchestrator/internal/notify"
	"github.com/zappedin/orchestrator/internal/ratelimit"
	"github.com/zappedin/orchestrator/internal/statestore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "orchestrator: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// When the OS hands us a deep link and an instance is already serving,
	// forward the payload and exit; the running instance owns all sessions.
	payload := parseDeepLink(os.Args[1:], logger)
	if payload != nil && forwardActivation(cfg.ListenAddr, payload, logger) {
		return nil
	}

	if err := playwright.Install(&playwright.RunOptions{SkipInstallBrowsers: true}); err != nil {
		return fmt.Errorf("failed to install playwright driver: %w", err)
	}
	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}
	defer pw.Stop()

	launchers, poolCleanup, err := buildLaunchers(cfg, pw, logger)
	if err != nil {
		return err
	}
	if poolCleanup != nil {
		defer poolCleanup()
	}

	store, err := statestore.New(cfg.StateDir, logger.Named("statestore"))
	if err != nil {
		return err
	}

	lookup := accounts.New(cfg.APIBaseURL, cfg.APIToken)
	hub := notify.NewHub(logger.Named("notify"))
	defer hub.Close()
	notifier := notify.Multi{notify.NewLogNotifier(logger.Named("notify")), hub}

	ctxCfg := browserctx.DefaultConfig()
	ctxCfg.DiagnosticsDir = cfg.DiagnosticsDir

	intakeMgr := intake.NewManager(
		lookup,
		store,
		launchers,
		notifier,
		loginflow.DefaultConfig(),
		ctxCfg,
		cfg.MaxConcurrentAccounts,
		logger.Named("intake"),
	)

	handler := api.NewHandler(intakeMgr, hub, logger.Named("api"))
	router := handler.SetupRoutes(ratelimit.NewLimiter(cfg.ActivationsPerHour, cfg.ActivationBurst))

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("deep-link API listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// The deep link that started this instance is serviced by it.
	if payload != nil {
		go func() {
			if _, err := intakeMgr.ActivateByID(context.Background(), payload.AccountID); err != nil {
				logger.Error("startup activation failed",
					zap.String("account_id", payload.AccountID), zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}
	intakeMgr.CloseAll(shutdownCtx)

	logger.Info("stopped")
	return nil
}

func parseDeepLink(args []string, logger *zap.Logger) *deeplink.Payload {
	raw, ok := deeplink.Find(args)
	if !ok {
		return nil
	}

	payload, err := deeplink.Parse(raw)
	if err != nil {
		logger.Error("ignoring malformed deep link", zap.Error(err))
		return nil
	}
	logger.Info("deep link received", zap.String("account_id", payload.AccountID))
	return payload
}

// forwardActivation hands the payload to an already-running instance.
// Whether an instance exists is decided by the health endpoint, not by the
// activation call: activation is accepted asynchronously, but a failure
// there must never make a second process try to bind the occupied port.
func forwardActivation(listenAddr string, payload *deeplink.Payload, logger *zap.Logger) bool {
	client := resty.New().
		SetBaseURL("http://" + listenAddr).
		SetTimeout(5 * time.Second)

	health, err := client.R().Get("/v1/healthz")
	if err != nil || health.IsError() {
		logger.Info("no running instance, starting locally")
		return false
	}

	resp, err := client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"id": payload.AccountID}).
		Post("/v1/activations")
	if err != nil {
		logger.Error("failed to forward deep link to running instance", zap.Error(err))
		return true
	}

	logger.Info("deep link forwarded to running instance",
		zap.String("status", resp.Status()))
	return true
}

// buildLaunchers selects the browser backend. The local backend drives the
// operator's Chrome install; the docker backend runs containerized Chrome
// and attaches over CDP.
func buildLaunchers(cfg *config.Config, pw *playwright.Playwright, logger *zap.Logger) (intake.LauncherFactory, func(), error) {
	if cfg.Launcher == "docker" {
		pool, err := browserpool.NewPool(logger.Named("browserpool"))
		if err != nil {
			return nil, nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := pool.EnsureImage(ctx); err != nil {
			return nil, nil, err
		}

		factory := func(accountKey string) browserctx.Launcher {
			return browserpool.NewLauncher(pool, pw, accountKey)
		}
		return factory, func() { pool.Close() }, nil
	}

	factory := func(string) browserctx.Launcher {
		return browserctx.NewLocalLauncher(pw, cfg.ChromePath(), cfg.Headless)
	}
	return factory, nil, nil
}
