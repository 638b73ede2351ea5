package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/italolelis/leechbot/internal/logctx"
	"github.com/kelseyhightower/envconfig"
)

// ChatIDs is a comma separated list of chat identifiers.
type ChatIDs []int64

// Decode implements envconfig.Decoder. Blank entries are skipped.
func (c *ChatIDs) Decode(value string) error {
	var ids ChatIDs

	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id %q: %w", part, err)
		}

		ids = append(ids, id)
	}

	*c = ids

	return nil
}

// Config struct for environment variables. It is read once at startup and never mutated.
type Config struct {
	BotToken       string `envconfig:"BOT_TOKEN" required:"true"`
	BotAPIEndpoint string `envconfig:"BOT_API_ENDPOINT"`
	APIID          int    `envconfig:"API_ID"`
	APIHash        string `envconfig:"API_HASH"`
	SessionString  string `envconfig:"SESSION_STRING"`
	UploadThreads  int    `envconfig:"UPLOAD_THREADS" default:"4"`

	AllowedChats ChatIDs `envconfig:"ALLOWED_CHATS"`
	MaxSizeMB    int64   `envconfig:"MAX_SIZE_MB" default:"5120"`
	DownloadDir  string  `envconfig:"DOWNLOAD_DIR" default:"/tmp/leech"`

	ConnectTimeout   time.Duration `envconfig:"CONNECT_TIMEOUT" default:"30s"`
	ReadTimeout      time.Duration `envconfig:"READ_TIMEOUT" default:"30m"`
	ProgressInterval time.Duration `envconfig:"PROGRESS_INTERVAL" default:"2s"`
	SweepStaleAfter  time.Duration `envconfig:"SWEEP_STALE_AFTER" default:"0s"`

	LogLevel          string `envconfig:"LOG_LEVEL" default:"INFO"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`

	Telemetry struct {
		Enabled      bool   `split_words:"true" default:"true"`
		ServiceName  string `split_words:"true" default:"leechbot"`
		OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`
	}

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:9090"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	cfg.SessionString = strings.TrimSpace(cfg.SessionString)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks combinations envconfig tags cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return errors.New("BOT_TOKEN must not be empty")
	}

	if c.MaxSizeMB <= 0 {
		return errors.New("MAX_SIZE_MB must be positive")
	}

	if c.SessionString != "" && (c.APIID == 0 || c.APIHash == "") {
		return errors.New("SESSION_STRING requires API_ID and API_HASH")
	}

	return nil
}

// MaxBytes is the transfer ceiling in bytes.
func (c *Config) MaxBytes() int64 {
	return c.MaxSizeMB * 1024 * 1024
}

// ElevatedConfigured reports whether a user session was supplied for large uploads.
func (c *Config) ElevatedConfigured() bool {
	return c.SessionString != ""
}

func (c *Config) SlogLevel() slog.Level {
	return logctx.ParseLevel(c.LogLevel)
}
