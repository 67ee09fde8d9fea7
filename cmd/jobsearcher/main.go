// ABOUTME: Entry point for the jobsearcher channel watcher
// ABOUTME: Wires the store, ingestion loop, retention job, and selection cycle together

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/Azhdankov/JobSearcher/internal/classify"
	"github.com/Azhdankov/JobSearcher/internal/config"
	"github.com/Azhdankov/JobSearcher/internal/filter"
	"github.com/Azhdankov/JobSearcher/internal/ingest"
	"github.com/Azhdankov/JobSearcher/internal/notify"
	"github.com/Azhdankov/JobSearcher/internal/processor"
	"github.com/Azhdankov/JobSearcher/internal/retention"
	"github.com/Azhdankov/JobSearcher/internal/scheduler"
	"github.com/Azhdankov/JobSearcher/internal/source"
	"github.com/Azhdankov/JobSearcher/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
    _       _                            _
   (_) ___ | |__  ___  ___  __ _ _ __ __| |__   ___ _ __
   | |/ _ \| '_ \/ __|/ _ \/ _' | '__/ _' |\ \ / _ \ '__|
   | | (_) | |_) \__ \  __/ (_| | | | (_| | \ V /  __/ |
  _/ |\___/|_.__/|___/\___|\__,_|_|  \__,_|  \_/ \___|_|
 |__/
`

// getConfigPath returns the path to the watcher config file.
// Priority: JOBSEARCHER_CONFIG env var > XDG_CONFIG_HOME/jobsearcher/watcher.yaml > ~/.config/jobsearcher/watcher.yaml
func getConfigPath() string {
	if envPath := os.Getenv("JOBSEARCHER_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "watcher.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "jobsearcher", "watcher.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: jobsearcher <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start watching channels")
		fmt.Println("  init      Create a starter config file")
		fmt.Println("  version   Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "Error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	// Secrets usually live in a .env next to the config
	_ = godotenv.Load()

	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	color.New(color.FgHiBlack).Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Retention: %s every %s\n", cfg.Retention.Horizon, cfg.Retention.CleanupInterval)
	green.Print("    ▶ ")
	fmt.Printf("Selection: every %s\n", cfg.Selection.Interval)
	fmt.Println()

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	var classifier classify.Classifier
	if cfg.Selection.OpenAI.APIKey != "" {
		opts := []classify.Option{classify.WithTimeout(cfg.Selection.OpenAI.Timeout)}
		if cfg.Selection.OpenAI.BaseURL != "" {
			opts = append(opts, classify.WithAPIBase(cfg.Selection.OpenAI.BaseURL))
		}
		classifier = classify.NewOpenAIClassifier(
			cfg.Selection.OpenAI.APIKey,
			cfg.Selection.OpenAI.Model,
			cfg.Selection.Criteria,
			opts...,
		)
	} else {
		logger.Warn("openai api key not set, selection cycles will select nothing")
	}

	var notifier notify.Notifier
	if cfg.Telegram.ChatID != "" {
		notifier = notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	} else {
		logger.Warn("telegram chat_id not set, notifications are disabled")
	}

	newSource := func() source.Source {
		return source.NewBotSource(cfg.Telegram.BotToken, source.WithPollTimeout(cfg.Telegram.PollTimeout))
	}

	loop := ingest.New(newSource, filter.New(cfg.Filter.ExcludeWords, cfg.Filter.MinLength), st)
	proc := processor.New(st, classifier, notifier)
	cleanup := retention.New(st, cfg.Retention.Horizon)

	retentionSched, err := scheduler.New("retention", cfg.Retention.CleanupInterval, cleanup.Tick)
	if err != nil {
		return fmt.Errorf("creating retention scheduler: %w", err)
	}
	selectionSched, err := scheduler.New("selection", cfg.Selection.Interval, proc.Tick)
	if err != nil {
		return fmt.Errorf("creating selection scheduler: %w", err)
	}

	// Background jobs stop when the ingest loop ends, cleanly or not
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		retentionSched.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		selectionSched.Run(runCtx)
	}()

	logger.Info("watcher started", "version", version)

	err = loop.Run(runCtx)

	stop()
	wg.Wait()

	if errors.Is(err, source.ErrUnauthorized) {
		return fmt.Errorf("telegram rejected the bot token, re-issue credentials and restart: %w", err)
	}
	if err != nil {
		return err
	}

	logger.Info("watcher stopped")
	return nil
}

const starterConfig = `# jobsearcher configuration
# Values support ${VAR} expansion from the environment.

database:
  path: ./telegram_messages.db

telegram:
  bot_token: "${TELEGRAM_BOT_TOKEN}"
  # Chat that receives the selected messages. Leave empty to disable delivery.
  chat_id: "${TELEGRAM_CHAT_ID}"

filter:
  # JSON array or comma-separated string also works, e.g. via ${FILTER_EXCLUDE_WORDS}
  exclude_words:
    - spam
  min_length: 0

retention:
  horizon: 48h
  cleanup_interval: 1h

selection:
  interval: 2h
  criteria: "Select job postings matching my criteria."
  openai:
    api_key: "${OPENAI_API_KEY}"
    model: gpt-4o-mini

logging:
  level: info
  format: text
`

func runInit() error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Wrote starter config to %s\n", path)
	return nil
}
