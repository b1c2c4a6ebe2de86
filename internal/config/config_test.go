// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./test.db"

bot:
  id: "B024BE7LH"
  name: "replybot"
  team_id: "T024BE7LD"
  team_name: "example"

sessions:
  lock_ttl: "5s"
  retry_interval: "20ms"
  max_message_age: "60s"
  claim_ttl: "60s"

flows:
  typing_interval: "2500ms"
  timeout: "15s"

search:
  size: 26
  retries: 3
  initial_timeout: "500ms"
  retry_step: "1500ms"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}

	if cfg.Bot.ID != "B024BE7LH" {
		t.Errorf("Bot.ID = %q, want %q", cfg.Bot.ID, "B024BE7LH")
	}
	if cfg.Bot.Name != "replybot" {
		t.Errorf("Bot.Name = %q, want %q", cfg.Bot.Name, "replybot")
	}
	if cfg.Bot.TeamID != "T024BE7LD" {
		t.Errorf("Bot.TeamID = %q, want %q", cfg.Bot.TeamID, "T024BE7LD")
	}

	if cfg.Sessions.LockTTL != 5*time.Second {
		t.Errorf("Sessions.LockTTL = %v, want %v", cfg.Sessions.LockTTL, 5*time.Second)
	}
	if cfg.Sessions.RetryInterval != 20*time.Millisecond {
		t.Errorf("Sessions.RetryInterval = %v, want %v", cfg.Sessions.RetryInterval, 20*time.Millisecond)
	}
	if cfg.Sessions.MaxMessageAge != 60*time.Second {
		t.Errorf("Sessions.MaxMessageAge = %v, want %v", cfg.Sessions.MaxMessageAge, 60*time.Second)
	}
	if cfg.Sessions.ClaimTTL != 60*time.Second {
		t.Errorf("Sessions.ClaimTTL = %v, want %v", cfg.Sessions.ClaimTTL, 60*time.Second)
	}

	if cfg.Flows.TypingInterval != 2500*time.Millisecond {
		t.Errorf("Flows.TypingInterval = %v, want %v", cfg.Flows.TypingInterval, 2500*time.Millisecond)
	}
	if cfg.Flows.Timeout != 15*time.Second {
		t.Errorf("Flows.Timeout = %v, want %v", cfg.Flows.Timeout, 15*time.Second)
	}

	if cfg.Search.Size != 26 {
		t.Errorf("Search.Size = %d, want 26", cfg.Search.Size)
	}
	if cfg.Search.Retries != 3 {
		t.Errorf("Search.Retries = %d, want 3", cfg.Search.Retries)
	}
	if cfg.Search.InitialTimeout != 500*time.Millisecond {
		t.Errorf("Search.InitialTimeout = %v, want %v", cfg.Search.InitialTimeout, 500*time.Millisecond)
	}
	if cfg.Search.RetryStep != 1500*time.Millisecond {
		t.Errorf("Search.RetryStep = %v, want %v", cfg.Search.RetryStep, 1500*time.Millisecond)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("REPLYBOT_TEST_DB", "/tmp/expanded.db")
	t.Setenv("REPLYBOT_TEST_TEAM", "T99")

	configPath := writeConfig(t, `
database:
  path: "${REPLYBOT_TEST_DB}"

bot:
  id: "B1"
  name: "replybot"
  team_id: "${REPLYBOT_TEST_TEAM}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/expanded.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/expanded.db")
	}
	if cfg.Bot.TeamID != "T99" {
		t.Errorf("Bot.TeamID = %q, want %q", cfg.Bot.TeamID, "T99")
	}
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "${REPLYBOT_DEFINITELY_UNSET_VAR}"

bot:
  id: "B1"
  name: "replybot"
  team_id: "T1"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error for empty database path")
	}
	if !strings.Contains(err.Error(), "database.path") {
		t.Errorf("error = %v, want mention of database.path", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "database:\n  path: [unclosed")
	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./test.db"

bot:
  id: "B1"
  name: "replybot"
  team_id: "T1"

sessions:
  lock_ttl: "five seconds"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "lock_ttl") {
		t.Errorf("error = %v, want mention of lock_ttl", err)
	}
}

func TestLoad_MissingBotIdentity(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name: "missing id",
			content: `
database:
  path: "./test.db"
bot:
  name: "replybot"
  team_id: "T1"
`,
			want: "bot.id",
		},
		{
			name: "missing name",
			content: `
database:
  path: "./test.db"
bot:
  id: "B1"
  team_id: "T1"
`,
			want: "bot.name",
		},
		{
			name: "missing team",
			content: `
database:
  path: "./test.db"
bot:
  id: "B1"
  name: "replybot"
`,
			want: "bot.team_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.content)
			_, err := Load(configPath)
			if err == nil {
				t.Fatal("Load() expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoad_MinimalConfigGetsDefaults(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./test.db"
bot:
  id: "B1"
  name: "replybot"
  team_id: "T1"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sessions.LockTTL != 5*time.Second {
		t.Errorf("Sessions.LockTTL = %v, want %v", cfg.Sessions.LockTTL, 5*time.Second)
	}
	if cfg.Sessions.RetryInterval != 20*time.Millisecond {
		t.Errorf("Sessions.RetryInterval = %v, want %v", cfg.Sessions.RetryInterval, 20*time.Millisecond)
	}
	if cfg.Flows.Timeout != 15*time.Second {
		t.Errorf("Flows.Timeout = %v, want %v", cfg.Flows.Timeout, 15*time.Second)
	}
	if cfg.Search.Size != 26 {
		t.Errorf("Search.Size = %d, want 26", cfg.Search.Size)
	}
	if cfg.Search.InitialTimeout != 500*time.Millisecond {
		t.Errorf("Search.InitialTimeout = %v, want %v", cfg.Search.InitialTimeout, 500*time.Millisecond)
	}
}

func TestLoad_DefaultsDontOverrideExplicitValues(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./test.db"
bot:
  id: "B1"
  name: "replybot"
  team_id: "T1"
sessions:
  lock_ttl: "9s"
search:
  size: 5
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sessions.LockTTL != 9*time.Second {
		t.Errorf("Sessions.LockTTL = %v, want %v", cfg.Sessions.LockTTL, 9*time.Second)
	}
	if cfg.Search.Size != 5 {
		t.Errorf("Search.Size = %d, want 5", cfg.Search.Size)
	}
}
