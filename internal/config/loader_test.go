package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"DISCORD_BOT_TOKEN", "DISCORD_BOT_CLIENT_ID", "WEB_APP_URL",
		"SCHEDBOT_CHANNELS_DISCORD_TOKEN", "SCHEDBOT_SCHEDULER_STOREPATH",
		"SCHEDBOT_SCHEDULER_DEFAULTTIMEZONE", "SCHEDBOT_GATEWAY_PORT",
		"SCHEDBOT_LOG_LEVEL", "SCHEDBOT_LOG_FORMAT", "SCHEDBOT_FORMS_TIMEOUTSECONDS",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadFromReader(t *testing.T) {
	clearEnv(t)
	jsonData := `{
		"channels": {
			"discord": {
				"token": "discord-token",
				"applicationId": "1234",
				"allowedUsers": ["42"]
			}
		},
		"scheduler": {
			"storePath": "/tmp/jobs.json",
			"defaultTimezone": "Europe/Berlin"
		},
		"gateway": {
			"host": "127.0.0.1",
			"port": 9090
		}
	}`

	cfg, err := LoadFromReader(strings.NewReader(jsonData))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}

	if cfg.Channels.Discord.Token != "discord-token" {
		t.Errorf("expected token discord-token, got %s", cfg.Channels.Discord.Token)
	}
	if cfg.Channels.Discord.ApplicationID != "1234" {
		t.Errorf("expected applicationId 1234, got %s", cfg.Channels.Discord.ApplicationID)
	}
	if cfg.Scheduler.DefaultTimezone != "Europe/Berlin" {
		t.Errorf("expected timezone Europe/Berlin, got %s", cfg.Scheduler.DefaultTimezone)
	}
	if cfg.Gateway.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Gateway.Port)
	}
	// Unset sections keep their defaults.
	if cfg.Log.Format != "text" {
		t.Errorf("expected default log format text, got %s", cfg.Log.Format)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scheduler.StorePath != "~/.schedbot/jobs.json" {
		t.Errorf("expected storePath ~/.schedbot/jobs.json, got %s", cfg.Scheduler.StorePath)
	}
	if cfg.Gateway.Addr() != "0.0.0.0:8080" {
		t.Errorf("expected gateway 0.0.0.0:8080, got %s", cfg.Gateway.Addr())
	}
	if cfg.Forms.TimeoutSeconds != 15 {
		t.Errorf("expected forms timeout 15, got %d", cfg.Forms.TimeoutSeconds)
	}
	if cfg.Log.SlogLevel() != slog.LevelInfo {
		t.Errorf("expected info level, got %v", cfg.Log.SlogLevel())
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_BOT_TOKEN", "legacy-token")
	t.Setenv("DISCORD_BOT_CLIENT_ID", "legacy-app")
	t.Setenv("WEB_APP_URL", "https://script.example.com/exec")
	t.Setenv("SCHEDBOT_CHANNELS_DISCORD_TOKEN", "prefixed-token")
	t.Setenv("SCHEDBOT_GATEWAY_PORT", "7070")
	t.Setenv("SCHEDBOT_LOG_LEVEL", "debug")

	cfg, err := LoadFromReader(strings.NewReader(`{"channels": {"discord": {"token": "file-token"}}}`))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}

	if cfg.Channels.Discord.Token != "prefixed-token" {
		t.Errorf("expected SCHEDBOT_ override to win, got %s", cfg.Channels.Discord.Token)
	}
	if cfg.Channels.Discord.ApplicationID != "legacy-app" {
		t.Errorf("expected legacy application id, got %s", cfg.Channels.Discord.ApplicationID)
	}
	if cfg.Forms.WebAppURL != "https://script.example.com/exec" {
		t.Errorf("expected web app url from env, got %s", cfg.Forms.WebAppURL)
	}
	if cfg.Gateway.Port != 7070 {
		t.Errorf("expected port 7070, got %d", cfg.Gateway.Port)
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.Log.SlogLevel())
	}
}

func TestEnvOverrideNonNumericPortIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCHEDBOT_GATEWAY_PORT", "eighty")

	cfg, err := LoadFromReader(strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if cfg.Gateway.Port != 8080 {
		t.Errorf("expected default port kept, got %d", cfg.Gateway.Port)
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
channels:
  slack:
    botToken: xoxb-1
    appToken: xapp-1
scheduler:
  storePath: /var/lib/schedbot/jobs.json
  defaultTimezone: Asia/Tokyo
log:
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Channels.Slack.BotToken != "xoxb-1" || cfg.Channels.Slack.AppToken != "xapp-1" {
		t.Errorf("unexpected slack config %+v", cfg.Channels.Slack)
	}
	if cfg.Scheduler.StorePath != "/var/lib/schedbot/jobs.json" {
		t.Errorf("unexpected store path %s", cfg.Scheduler.StorePath)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected json log format, got %s", cfg.Log.Format)
	}
}

func TestLoadFromFileEmptyYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Gateway.Port != 8080 {
		t.Errorf("expected defaults for empty file, got port %d", cfg.Gateway.Port)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`{"gateway": `))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStorePathTildeExpansion(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := LoadFromReader(strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	want := filepath.Join(home, ".schedbot", "jobs.json")
	if cfg.Scheduler.StorePath != want {
		t.Errorf("expected %s, got %s", want, cfg.Scheduler.StorePath)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Gateway.Port != 8080 {
		t.Errorf("expected default port, got %d", cfg.Gateway.Port)
	}
}

func TestLoadFindsHomeConfig(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, DefaultDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("gateway:\n  port: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Gateway.Port != 0 {
		t.Errorf("expected gateway disabled, got port %d", cfg.Gateway.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"iana timezone", func(c *Config) { c.Scheduler.DefaultTimezone = "America/New_York" }, ""},
		{"unknown timezone", func(c *Config) { c.Scheduler.DefaultTimezone = "Mars/Olympus" }, "defaultTimezone"},
		{"local timezone", func(c *Config) { c.Scheduler.DefaultTimezone = "Local" }, "IANA"},
		{"empty store", func(c *Config) { c.Scheduler.StorePath = "" }, "storePath"},
		{"bad port", func(c *Config) { c.Gateway.Port = 70000 }, "out of range"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"upper format", func(c *Config) { c.Log.Format = "JSON" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEnabledChannels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels.Discord.Token = "d"
	cfg.Channels.Slack.BotToken = "xoxb" // missing app token
	cfg.Channels.Telegram.Token = "t"

	enabled, err := cfg.Channels.Enabled()
	if err != nil {
		t.Fatalf("Enabled: %v", err)
	}
	if len(enabled) != 2 {
		t.Fatalf("expected discord and telegram, got %d entries", len(enabled))
	}
	if _, ok := enabled["slack"]; ok {
		t.Error("slack should need both tokens")
	}
	if !strings.Contains(string(enabled["discord"]), `"token":"d"`) {
		t.Errorf("unexpected discord payload %s", enabled["discord"])
	}
}
