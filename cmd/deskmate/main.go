package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"deskmate/internal/adapter/authapi"
	"deskmate/internal/adapter/capability"
	"deskmate/internal/adapter/channel"
	"deskmate/internal/adapter/store"
	"deskmate/internal/adapter/tui"
	"deskmate/internal/infra/config"
	"deskmate/internal/infra/logger"
	"deskmate/internal/infra/tracer"
	"deskmate/internal/security"
	"deskmate/internal/usecase"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`deskmate - desktop assistant client

USAGE:
    deskmate [FLAGS]

FLAGS:
    -h, --help       Show this help message
    --config PATH    Config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml
    Environment: ${VAR} references in the config are expanded.
    Set the passphrase variable named by storage.passphrase_env to
    encrypt persisted tokens at rest.`)
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("DESKMATE_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func run() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Storage, with token encryption when a passphrase is present
	var cipher *security.TokenCipher
	if pass := os.Getenv(cfg.Storage.PassphraseEnv); pass != "" {
		cipher, err = security.NewTokenCipher(pass)
		if err != nil {
			return fmt.Errorf("cipher: %w", err)
		}
	} else {
		log.Warn("no storage passphrase set, tokens persist unencrypted",
			"env", cfg.Storage.PassphraseEnv)
	}
	db, err := store.NewSQLiteStore(cfg.Storage.Path, cipher)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer db.Close()

	// 4. Auth
	authClient := authapi.NewClient(cfg.Auth, log)
	authFlow := usecase.NewAuthFlow(authClient, db, log)
	if err := authFlow.Restore(ctx); err != nil {
		log.Warn("session restore failed", "error", err)
	}

	// 5. Channel
	backend := channel.NewClient(cfg.Backend, log)
	defer backend.Close()

	// 6. Capabilities and executor
	shell := capability.NewLocalShell(cfg.Shell, log)
	screen := capability.NewExecCapturer(log)
	input := capability.NewExecInput(log)

	var limiter *rate.Limiter
	if cfg.Actions.MaxPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Actions.MaxPerSecond), 1)
	}

	gate := usecase.NewGate(log)
	executor, err := usecase.NewToolExecutor(usecase.ToolExecutorDeps{
		Terminal: shell,
		Screen:   screen,
		Input:    input,
		Gate:     gate,
		Limiter:  limiter,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("executor: %w", err)
	}

	// 7. Quota with midnight reset
	quota := usecase.NewDailyQuota(db, cfg.Quota.DailyLimit, log)
	scheduler := cron.New()
	if err := quota.ScheduleMidnightReset(scheduler); err != nil {
		return fmt.Errorf("quota scheduler: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// 8. UI and orchestrator
	app := tui.NewApp(log)

	var orch *usecase.Orchestrator
	slash := usecase.NewSlashHandler(authFlow, db, func() {
		orch.ClearConversation()
	})
	orch = usecase.NewOrchestrator(backend, executor, gate, quota, authFlow, slash, app, log)

	// 9. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("deskmate starting",
		"backend", cfg.Backend.URL,
		"daily_limit", quota.Limit(),
		"authenticated", authFlow.Authenticated(),
		"encryption", cipher != nil,
	)

	return app.Start(ctx, orch.ProcessQuery, orch.HandleConfirmation)
}
