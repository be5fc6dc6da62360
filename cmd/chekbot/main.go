package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/avtotest/chekbot/internal/accounts"
	"github.com/avtotest/chekbot/internal/classify"
	"github.com/avtotest/chekbot/internal/engine"
	"github.com/avtotest/chekbot/internal/extract"
	"github.com/avtotest/chekbot/internal/lockfile"
	"github.com/avtotest/chekbot/internal/messaging"
	"github.com/avtotest/chekbot/internal/provision"
	"github.com/avtotest/chekbot/internal/store"
	"github.com/avtotest/chekbot/internal/util"
	"github.com/avtotest/chekbot/internal/verify"
	"github.com/avtotest/chekbot/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for chekbot state data
	DefaultStateDir = "/var/lib/chekbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "chekbot.db"
	// DefaultTransport is the messaging transport used when none is selected
	DefaultTransport = "telegram"
	// DefaultWebhookAddr is the listen address for the Twilio inbound webhook
	DefaultWebhookAddr = ":8080"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	if err := run(flags); err != nil {
		slog.Error("chekbot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("chekbot exited successfully")
}

// Config holds environment configuration
type Config struct {
	Transport     string
	StateDir      string
	DatabaseURL   string
	TelegramToken string
	OpenAIKey     string
	WebhookAddr   string
}

// Flags holds command line flag values
type Flags struct {
	transport     *string
	stateDir      *string
	dbDSN         *string
	telegramToken *string
	openaiKey     *string
	webhookAddr   *string
	qrOutput      *string
	numeric       *bool
}

// initializeLogger sets up structured logging; CHEKBOT_DEBUG enables debug level
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("CHEKBOT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		Transport:     util.EnvOrDefault("CHEKBOT_TRANSPORT", DefaultTransport),
		StateDir:      util.EnvOrDefault("CHEKBOT_STATE_DIR", DefaultStateDir),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		WebhookAddr:   util.EnvOrDefault("WEBHOOK_ADDR", DefaultWebhookAddr),
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"CHEKBOT_TRANSPORT", config.Transport,
		"CHEKBOT_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"TELEGRAM_BOT_TOKEN_SET", config.TelegramToken != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"WEBHOOK_ADDR", config.WebhookAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		transport:     flag.String("transport", config.Transport, "messaging transport: telegram, twilio or whatsapp (overrides $CHEKBOT_TRANSPORT)"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for chekbot data (overrides $CHEKBOT_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "session database DSN (overrides $DATABASE_URL)"),
		telegramToken: flag.String("telegram-token", config.TelegramToken, "Telegram bot token (overrides $TELEGRAM_BOT_TOKEN)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		webhookAddr:   flag.String("webhook-addr", config.WebhookAddr, "listen address for the Twilio webhook (overrides $WEBHOOK_ADDR)"),
		qrOutput:      flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:       flag.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"transport", *flags.transport,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"telegramTokenSet", *flags.telegramToken != "",
		"openaiKeySet", *flags.openaiKey != "",
		"webhookAddr", *flags.webhookAddr,
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric)

	return flags
}

// run wires the collaborators together and blocks until shutdown.
func run(flags Flags) error {
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	extractor, err := extract.NewOpenAIExtractor(buildExtractorOptions(flags)...)
	if err != nil {
		return fmt.Errorf("failed to initialize text extractor: %w", err)
	}

	issuer, err := accounts.NewSupabaseClient()
	if err != nil {
		return fmt.Errorf("failed to initialize account issuer: %w", err)
	}

	svc, webhook, err := buildTransport(flags)
	if err != nil {
		return err
	}

	eng := engine.New(st,
		classify.New(buildMarkers()),
		verify.New(buildProofMarkers()),
		extractor,
		provision.New(issuer),
		svc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer svc.Stop()

	if webhook != nil {
		go func() {
			slog.Info("Webhook server listening", "addr", webhook.Addr)
			if err := webhook.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Webhook server failed", "error", err)
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := webhook.Shutdown(shutdownCtx); err != nil {
				slog.Error("Webhook server shutdown failed", "error", err)
			}
		}()
	}

	slog.Info("chekbot started", "transport", *flags.transport)
	messaging.NewDispatcher(svc, eng).Start(ctx)
	return nil
}

// buildStore constructs the session store from the DSN flag. An empty DSN
// selects the in-memory store.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if dsn == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}

	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		st, err := store.NewPostgresStore(store.WithDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL store: %w", err)
		}
		return st, nil
	}

	// SQLite DSNs are file paths; the parent directory must exist first.
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", dsn)
	if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	st, err := store.NewSQLiteStore(store.WithDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}
	return st, nil
}

// buildMarkers returns the intent marker vocabulary, with comma-separated
// environment overrides per category.
func buildMarkers() classify.Markers {
	markers := classify.DefaultMarkers()
	if v := util.SplitList("CHEKBOT_PRICE_MARKERS"); v != nil {
		markers.PriceInquiry = v
	}
	if v := util.SplitList("CHEKBOT_PAYMENT_MARKERS"); v != nil {
		markers.PaymentIntent = v
	}
	return markers
}

// buildProofMarkers returns the receipt validation markers.
func buildProofMarkers() []string {
	if v := util.SplitList("CHEKBOT_PROOF_MARKERS"); v != nil {
		return v
	}
	return verify.DefaultMarkers()
}

// buildExtractorOptions constructs text extractor configuration options
func buildExtractorOptions(flags Flags) []extract.Option {
	var opts []extract.Option
	if *flags.openaiKey != "" {
		opts = append(opts, extract.WithAPIKey(*flags.openaiKey))
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		opts = append(opts, extract.WithModel(model))
	}
	return opts
}

// buildTransport constructs the selected messaging transport. The Twilio
// transport is webhook driven, so it also returns the HTTP server that
// receives inbound messages.
func buildTransport(flags Flags) (messaging.Service, *http.Server, error) {
	switch *flags.transport {
	case "telegram":
		var opts []messaging.TelegramOption
		if *flags.telegramToken != "" {
			opts = append(opts, messaging.WithTelegramToken(*flags.telegramToken))
		}
		svc, err := messaging.NewTelegramService(opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Telegram transport: %w", err)
		}
		return svc, nil, nil

	case "twilio":
		svc, err := messaging.NewTwilioService()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Twilio transport: %w", err)
		}
		mux := http.NewServeMux()
		mux.HandleFunc("/webhook/twilio", svc.WebhookHandler)
		return svc, &http.Server{Addr: *flags.webhookAddr, Handler: mux}, nil

	case "whatsapp":
		var waOpts []whatsapp.Option
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		waOpts = append(waOpts, whatsapp.WithDBDSN(filepath.Join(*flags.stateDir, "whatsmeow.db")))
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize WhatsApp transport: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown transport %q (expected telegram, twilio or whatsapp)", *flags.transport)
	}
}
