package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDir is the configuration directory under the user's home.
const DefaultDir = ".schedbot"

var defaultNames = []string{"config.json", "config.yaml", "config.yml"}

// Load loads config from the first of ~/.schedbot/config.{json,yaml,yml}
// that exists. Without a file, defaults and environment overrides apply.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	for _, name := range defaultNames {
		path := filepath.Join(home, DefaultDir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFromFile(path)
		}
	}
	cfg := DefaultConfig()
	return cfg, finish(cfg)
}

// LoadFromFile loads config from a specific file path. Files ending in
// .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAMLFromReader(f)
	default:
		return LoadFromReader(f)
	}
}

// LoadFromReader loads JSON config from an io.Reader, applying defaults and env overrides.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	if err := json.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, finish(cfg)
}

// LoadYAMLFromReader loads YAML config from an io.Reader, applying defaults and env overrides.
func LoadYAMLFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, finish(cfg)
}

func finish(cfg *Config) error {
	applyEnvOverrides(cfg)
	expandStorePath(cfg)
	return Validate(cfg)
}

// Validate reports settings that would fail at runtime.
func Validate(cfg *Config) error {
	var errs []error
	if tz := cfg.Scheduler.DefaultTimezone; tz != "" {
		if strings.EqualFold(tz, "local") {
			errs = append(errs, fmt.Errorf("scheduler.defaultTimezone must be an IANA name, not %q", tz))
		} else if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.defaultTimezone: %w", err))
		}
	}
	if cfg.Scheduler.StorePath == "" {
		errs = append(errs, errors.New("scheduler.storePath must not be empty"))
	}
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port %d out of range", cfg.Gateway.Port))
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", cfg.Log.Level))
	}
	switch normalizeFormat(cfg.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format))
	}
	return errors.Join(errs...)
}

type envOverride struct {
	name string
	ptr  *string
}

// applyEnvOverrides applies environment overrides. The bare DISCORD_BOT_*
// and WEB_APP_URL names are applied first so SCHEDBOT_-prefixed values win.
func applyEnvOverrides(cfg *Config) {
	overrides := []envOverride{
		{"DISCORD_BOT_TOKEN", &cfg.Channels.Discord.Token},
		{"DISCORD_BOT_CLIENT_ID", &cfg.Channels.Discord.ApplicationID},
		{"WEB_APP_URL", &cfg.Forms.WebAppURL},
		{"SCHEDBOT_CHANNELS_DISCORD_TOKEN", &cfg.Channels.Discord.Token},
		{"SCHEDBOT_CHANNELS_DISCORD_APPLICATIONID", &cfg.Channels.Discord.ApplicationID},
		{"SCHEDBOT_CHANNELS_DISCORD_GUILDID", &cfg.Channels.Discord.GuildID},
		{"SCHEDBOT_CHANNELS_SLACK_BOTTOKEN", &cfg.Channels.Slack.BotToken},
		{"SCHEDBOT_CHANNELS_SLACK_APPTOKEN", &cfg.Channels.Slack.AppToken},
		{"SCHEDBOT_CHANNELS_TELEGRAM_TOKEN", &cfg.Channels.Telegram.Token},
		{"SCHEDBOT_SCHEDULER_STOREPATH", &cfg.Scheduler.StorePath},
		{"SCHEDBOT_SCHEDULER_DEFAULTTIMEZONE", &cfg.Scheduler.DefaultTimezone},
		{"SCHEDBOT_FORMS_WEBAPPURL", &cfg.Forms.WebAppURL},
		{"SCHEDBOT_GATEWAY_HOST", &cfg.Gateway.Host},
		{"SCHEDBOT_LOG_LEVEL", &cfg.Log.Level},
		{"SCHEDBOT_LOG_FORMAT", &cfg.Log.Format},
	}
	for _, o := range overrides {
		if val := os.Getenv(o.name); val != "" {
			*o.ptr = val
		}
	}

	ints := map[string]*int{
		"SCHEDBOT_GATEWAY_PORT":         &cfg.Gateway.Port,
		"SCHEDBOT_FORMS_TIMEOUTSECONDS": &cfg.Forms.TimeoutSeconds,
	}
	for env, ptr := range ints {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			slog.Warn("ignoring non-numeric environment override", "env", env, "value", val)
			continue
		}
		*ptr = n
	}
}

// expandStorePath expands a leading ~ in the store path.
func expandStorePath(cfg *Config) {
	p := cfg.Scheduler.StorePath
	if len(p) >= 2 && p[0] == '~' && p[1] == '/' {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.Scheduler.StorePath = filepath.Join(home, p[2:])
		}
	}
}
