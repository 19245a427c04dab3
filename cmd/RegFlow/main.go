package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/RegFlow/internal/messaging"
	"github.com/BTreeMap/RegFlow/internal/scheduler"
	"github.com/BTreeMap/RegFlow/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for RegFlow state data
	DefaultStateDir = "/var/lib/regflow"
	// DefaultDBFileName is the default SQLite database filename for sessions and backups
	DefaultDBFileName = "regflow.db"
	// DefaultWhatsAppDBFileName is the default SQLite filename for the whatsmeow device store
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultSessionTTL is how long an untouched registration stays resumable
	DefaultSessionTTL = 24 * time.Hour
)

// Chat channel names accepted by -chat-channel.
const (
	ChatNone     = "none"
	ChatWhatsApp = "whatsapp"
	ChatTwilio   = "twilio"
)

// ErrUnknownChannel is returned for an unsupported -chat-channel value.
var ErrUnknownChannel = errors.New("unknown chat channel")

func main() {
	config := loadEnvironmentConfig()
	initializeLogger(config)

	flags, err := parseFlags(flag.CommandLine, os.Args[1:], config)
	if err != nil {
		slog.Error("Invalid command line", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping RegFlow", "state_dir", flags.stateDir, "chat_channel", flags.chatChannel, "api_addr", flags.apiAddr)
	if err := run(ctx, flags); err != nil {
		slog.Error("RegFlow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("RegFlow exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir      string
	DatabaseURL   string
	WhatsAppDSN   string
	APIAddr       string
	SubmissionURL string
	SchemaFile    string
	ChatChannel   string
	SessionTTL    time.Duration
	SweepCron     string
	ComposeDelay  time.Duration
	Debug         bool
	LogLevel      string
	LogFormat     string
}

// Flags holds resolved command line values
type Flags struct {
	stateDir      string
	dbDSN         string
	inMemory      bool
	whatsappDSN   string
	qrOutput      string
	numeric       bool
	apiAddr       string
	submissionURL string
	schemaFile    string
	chatChannel   string
	sessionTTL    time.Duration
	sweepCron     string
	composeDelay  time.Duration
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:      util.GetEnv("REGFLOW_STATE_DIR", DefaultStateDir),
		DatabaseURL:   util.GetEnv("DATABASE_URL", ""),
		WhatsAppDSN:   util.GetEnv("WHATSAPP_DB_DSN", ""),
		APIAddr:       util.GetEnv("API_ADDR", ""),
		SubmissionURL: util.GetEnv("SUBMISSION_URL", ""),
		SchemaFile:    util.GetEnv("SCHEMA_FILE", ""),
		ChatChannel:   strings.ToLower(util.GetEnv("CHAT_CHANNEL", ChatNone)),
		SessionTTL:    util.ParseDurationEnv("SESSION_TTL", DefaultSessionTTL),
		SweepCron:     util.GetEnv("SWEEP_CRON", scheduler.DefaultSweepSpec),
		ComposeDelay:  util.ParseDurationEnv("COMPOSE_DELAY", messaging.DefaultComposeDelay),
		Debug:         util.ParseBoolEnv("REGFLOW_DEBUG", false),
		LogLevel:      util.GetEnv("REGFLOW_LOG_LEVEL", ""),
		LogFormat:     strings.ToLower(util.GetEnv("REGFLOW_LOG_FORMAT", "text")),
	}

	slog.Debug("environment variables loaded",
		"REGFLOW_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"API_ADDR", config.APIAddr,
		"SUBMISSION_URL_SET", config.SubmissionURL != "",
		"SCHEMA_FILE", config.SchemaFile,
		"CHAT_CHANNEL", config.ChatChannel,
		"SESSION_TTL", config.SessionTTL,
		"SWEEP_CRON", config.SweepCron,
		"COMPOSE_DELAY", config.ComposeDelay)
	return config
}

// initializeLogger installs the default slog logger. REGFLOW_DEBUG forces debug level.
func initializeLogger(config Config) {
	slog.SetDefault(newLogger(config))
}

func newLogger(config Config) *slog.Logger {
	level := parseLogLevel(config.LogLevel)
	if config.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if config.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// parseLogLevel maps a level name to slog; unknown or empty names mean info.
func parseLogLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// parseFlags parses command line arguments with environment defaults and resolves the
// database locations against the state directory.
func parseFlags(fs *flag.FlagSet, args []string, config Config) (Flags, error) {
	var f Flags
	fs.StringVar(&f.stateDir, "state-dir", config.StateDir, "state directory for RegFlow data (overrides $REGFLOW_STATE_DIR)")
	fs.StringVar(&f.dbDSN, "db-dsn", config.DatabaseURL, "session store DSN, SQLite path or Postgres URL (overrides $DATABASE_URL)")
	fs.BoolVar(&f.inMemory, "in-memory", false, "keep sessions and backups in memory only")
	fs.StringVar(&f.whatsappDSN, "whatsapp-db-dsn", config.WhatsAppDSN, "whatsmeow device store DSN (overrides $WHATSAPP_DB_DSN)")
	fs.StringVar(&f.qrOutput, "qr-output", "", "path to write login QR code")
	fs.BoolVar(&f.numeric, "numeric-code", false, "use numeric login code instead of QR code")
	fs.StringVar(&f.apiAddr, "api-addr", config.APIAddr, "API server address (overrides $API_ADDR)")
	fs.StringVar(&f.submissionURL, "submission-url", config.SubmissionURL, "endpoint receiving completed registrations (overrides $SUBMISSION_URL)")
	fs.StringVar(&f.schemaFile, "schema", config.SchemaFile, "question schema JSON file; built-in questionnaire when empty (overrides $SCHEMA_FILE)")
	fs.StringVar(&f.chatChannel, "chat-channel", config.ChatChannel, "chat transport: none, whatsapp or twilio (overrides $CHAT_CHANNEL)")
	fs.DurationVar(&f.sessionTTL, "session-ttl", config.SessionTTL, "expire sessions idle longer than this; 0 disables the sweep (overrides $SESSION_TTL)")
	fs.StringVar(&f.sweepCron, "sweep-cron", config.SweepCron, "cron schedule of the stale-session sweep (overrides $SWEEP_CRON)")
	fs.DurationVar(&f.composeDelay, "compose-delay", config.ComposeDelay, "typing delay before chat prompts (overrides $COMPOSE_DELAY)")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	switch f.chatChannel {
	case ChatNone, ChatWhatsApp, ChatTwilio:
	default:
		return Flags{}, fmt.Errorf("%w %q (want none, whatsapp or twilio)", ErrUnknownChannel, f.chatChannel)
	}

	if f.inMemory {
		f.dbDSN = ""
	} else if f.dbDSN == "" {
		f.dbDSN = filepath.Join(f.stateDir, DefaultDBFileName)
	}
	if f.whatsappDSN == "" {
		f.whatsappDSN = "file:" + filepath.Join(f.stateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
	}

	slog.Debug("flags parsed",
		"stateDir", f.stateDir,
		"dbDSN_set", f.dbDSN != "",
		"inMemory", f.inMemory,
		"chatChannel", f.chatChannel,
		"apiAddr", f.apiAddr,
		"sessionTTL", f.sessionTTL)
	return f, nil
}
