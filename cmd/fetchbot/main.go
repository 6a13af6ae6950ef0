package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fetchbot/internal/bus"
	"fetchbot/internal/channel"
	"fetchbot/internal/classify"
	"fetchbot/internal/config"
	"fetchbot/internal/fetch"
	"fetchbot/internal/loop"
	"fetchbot/internal/metrics"
	"fetchbot/internal/retrieve"
	"fetchbot/internal/store"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "fetchbot",
		Short: "fetchbot: Telegram media-retrieval bot",
		Long:  "fetchbot watches a Telegram chat for video links, forwarded media, and post links, downloads each video once, and remembers what it already fetched.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.fetchbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(installDaemonCmd())
	root.AddCommand(uninstallDaemonCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and download directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(config.ExpandPath(cfg.Storage.DownloadDir), 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "downloads", cfg.Storage.DownloadDir)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot (Telegram channel + message loop)",
		Long:  "Connects to Telegram, classifies every inbound message, and downloads recognized videos exactly once. Press Ctrl+C to stop.",
		RunE:  runBot,
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = buildLogger(cfg)

	if err := os.MkdirAll(cfg.Storage.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)
	defer messageBus.Close()

	identityStore, err := store.NewSQLiteStore(cfg.Storage.DBPath, logger)
	if err != nil {
		return fmt.Errorf("identity store: %w", err)
	}
	defer identityStore.Close()

	rules, err := classify.LoadRules(cfg.Retrieval.PlatformRules, logger)
	if err != nil {
		return fmt.Errorf("platform rules: %w", err)
	}
	classifier := classify.NewClassifier(rules)

	ytdlp := retrieve.NewYtdlp(retrieve.YtdlpConfig{
		BinPath:   cfg.Retrieval.YtdlpPath,
		RateLimit: cfg.Retrieval.RateLimit,
		Timeout:   time.Duration(cfg.Retrieval.TimeoutSec) * time.Second,
		Logger:    logger,
	})
	var browser *retrieve.BrowserProbe
	if cfg.Retrieval.BrowserProbe {
		browser = retrieve.NewBrowserProbe(retrieve.BrowserProbeConfig{
			ProfileDir: cfg.Retrieval.ProfileDir,
			Logger:     logger,
		})
	}
	engine := retrieve.NewEngine(ytdlp, browser, logger)

	telegram := channel.NewTelegram(channel.TelegramConfig{
		Token:     cfg.Telegram.Token,
		AllowFrom: cfg.Telegram.AllowFrom,
		ParseMode: cfg.Telegram.ParseMode,
		FetchChat: cfg.Telegram.FetchChat,
		Logger:    logger,
	})

	orchestrator := fetch.NewOrchestrator(fetch.OrchestratorConfig{
		Store:       identityStore,
		Engine:      engine,
		Chat:        telegram,
		DownloadDir: cfg.Storage.DownloadDir,
		Logger:      logger,
	})

	messageLoop := loop.New(loop.LoopConfig{
		Bus:          messageBus,
		Classifier:   classifier,
		Orchestrator: orchestrator,
		Chat:         telegram,
		Logger:       logger,
		Concurrency:  cfg.General.MaxConcurrentFetches,
	})

	if cfg.Metrics.Enabled {
		startMetricsServer(ctx, cfg.Metrics.Addr)
	}

	go messageLoop.Run(ctx)

	return telegram.Start(ctx, messageBus)
}

func startMetricsServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", metrics.Collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// buildLogger applies the configured log level and optional log file.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var w io.Writer = os.Stderr
	if cfg.General.LogFile != "" {
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Warn("cannot open log file, logging to stderr", "path", cfg.General.LogFile, "err", err)
		} else {
			w = io.MultiWriter(os.Stderr, f)
		}
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show recorded downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			identityStore, err := store.NewSQLiteStore(cfg.Storage.DBPath, logger)
			if err != nil {
				return fmt.Errorf("identity store: %w", err)
			}
			defer identityStore.Close()

			ctx := context.Background()
			total, err := identityStore.Count(ctx)
			if err != nil {
				return err
			}
			recent, err := identityStore.Recent(ctx, 10)
			if err != nil {
				return err
			}

			fmt.Printf("Videos recorded: %d\n", total)
			if len(recent) > 0 {
				fmt.Println("\nMost recent:")
				for _, r := range recent {
					fmt.Printf("  %-12s %-22s %s\n", r.Platform, r.Identity, r.Title)
				}
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List config values (secrets redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
