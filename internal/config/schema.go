package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Config is the top-level configuration
type Config struct {
	Channels  ChannelsConfig  `json:"channels" yaml:"channels"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Forms     FormsConfig     `json:"forms" yaml:"forms"`
	Gateway   GatewayConfig   `json:"gateway" yaml:"gateway"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

type ChannelsConfig struct {
	Discord  DiscordConfig  `json:"discord" yaml:"discord"`
	Slack    SlackConfig    `json:"slack" yaml:"slack"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
}

type DiscordConfig struct {
	Token         string   `json:"token" yaml:"token"`
	ApplicationID string   `json:"applicationId" yaml:"applicationId"`
	GuildID       string   `json:"guildId,omitempty" yaml:"guildId"` // empty registers commands globally
	AllowedUsers  []string `json:"allowedUsers" yaml:"allowedUsers"`
}

type SlackConfig struct {
	BotToken     string   `json:"botToken" yaml:"botToken"`
	AppToken     string   `json:"appToken" yaml:"appToken"`
	AllowedUsers []string `json:"allowedUsers" yaml:"allowedUsers"`
}

type TelegramConfig struct {
	Token        string   `json:"token" yaml:"token"`
	AllowedUsers []string `json:"allowedUsers" yaml:"allowedUsers"`
}

type SchedulerConfig struct {
	StorePath       string `json:"storePath" yaml:"storePath"`
	DefaultTimezone string `json:"defaultTimezone" yaml:"defaultTimezone"` // used when a command omits the timezone
}

type FormsConfig struct {
	WebAppURL      string `json:"webAppUrl" yaml:"webAppUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

// GatewayConfig configures the HTTP health endpoint. Port 0 disables it.
type GatewayConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text or json
}

// SlogLevel parses Level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Enabled returns the raw config of every channel with credentials, keyed
// by channel name.
func (c ChannelsConfig) Enabled() (map[string]json.RawMessage, error) {
	candidates := map[string]struct {
		on  bool
		cfg any
	}{
		"discord":  {c.Discord.Token != "", c.Discord},
		"slack":    {c.Slack.BotToken != "" && c.Slack.AppToken != "", c.Slack},
		"telegram": {c.Telegram.Token != "", c.Telegram},
	}
	out := make(map[string]json.RawMessage)
	for name, cand := range candidates {
		if !cand.on {
			continue
		}
		raw, err := json.Marshal(cand.cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s config: %w", name, err)
		}
		out[name] = raw
	}
	return out, nil
}

// DefaultConfig returns a Config with sensible defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			StorePath: "~/.schedbot/jobs.json",
		},
		Forms: FormsConfig{
			TimeoutSeconds: 15,
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func normalizeFormat(f string) string {
	return strings.ToLower(strings.TrimSpace(f))
}
