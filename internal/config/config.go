package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Telegram
	BotToken      string  `yaml:"bot_token"`
	AdminChatIDs  []int64 `yaml:"admin_chat_ids"`
	CommandPrefix string  `yaml:"command_prefix"`

	// Storage
	PoolPath   string `yaml:"pool_path"`
	LedgerPath string `yaml:"ledger_path"`
	DBPath     string `yaml:"db_path"`

	// HTTP
	HTTPAddr string `yaml:"http_addr"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func defaults() *Config {
	return &Config{
		CommandPrefix: ".",
		PoolPath:      "./data/licenseKeys.json",
		LedgerPath:    "./data/keyauth_licenses.json",
		DBPath:        "./data/licensebot.db",
		HTTPAddr:      "127.0.0.1:8080",
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order of precedence. A .env file in the working
// directory is loaded first if present. path falls back to LICENSEBOT_CONFIG.
// Callers apply their own overrides and then call Validate.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path == "" {
		path = os.Getenv("LICENSEBOT_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.BotToken = getEnv("BOT_TOKEN", cfg.BotToken)
	cfg.CommandPrefix = getEnv("COMMAND_PREFIX", cfg.CommandPrefix)
	cfg.PoolPath = getEnv("POOL_PATH", cfg.PoolPath)
	cfg.LedgerPath = getEnv("LEDGER_PATH", cfg.LedgerPath)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	if v := os.Getenv("ADMIN_CHAT_IDS"); v != "" {
		ids, err := parseIDs(v)
		if err != nil {
			return nil, err
		}
		cfg.AdminChatIDs = ids
	}

	return cfg, nil
}

// Validate checks settings every command needs. The bot token is checked
// separately by the commands that talk to Telegram.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.CommandPrefix) == "" {
		return errors.New("command prefix must not be empty")
	}
	if c.PoolPath == "" || c.LedgerPath == "" || c.DBPath == "" {
		return errors.New("pool, ledger and db paths are required")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// IsAdmin reports whether chatID may issue commands. An empty admin list
// opens the bot to every chat.
func (c *Config) IsAdmin(chatID int64) bool {
	if len(c.AdminChatIDs) == 0 {
		return true
	}
	for _, id := range c.AdminChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return lvl, nil
}

func (c *Config) NewLogger() *slog.Logger {
	lvl, err := c.SlogLevel()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseIDs(v string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin chat id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
