package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
center: RxOne Care Center

database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  user: intake
  password: secret
  database: switchboard_prod

intake:
  max_call_duration: 4m
  max_retries: 2
  callback_window: 30m
  session_retention: 10m
  reference_prefix: RXO
  lead_types: [consultation_booking, lab_booking, other]

telegraph:
  platform: slack
  channel_id: C0123
  slack:
    bot_token: xoxb-test

supervisor:
  tick_schedule: "@every 5s"
  purge_schedule: "@every 30s"
  digest_schedule: "*/30 * * * *"

api:
  port: 9090
`

const minimalYAML = `
center: Clinic
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Center != "RxOne Care Center" {
		t.Errorf("Center = %q", cfg.Center)
	}
	if cfg.Database.Driver != "mysql" || cfg.Database.Host != "10.0.0.5" || cfg.Database.Port != 3307 {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Database.User != "intake" || cfg.Database.Database != "switchboard_prod" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Intake.MaxCallDuration != 4*time.Minute {
		t.Errorf("MaxCallDuration = %s", cfg.Intake.MaxCallDuration)
	}
	if *cfg.Intake.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d", *cfg.Intake.MaxRetries)
	}
	if cfg.Intake.CallbackWindow != 30*time.Minute {
		t.Errorf("CallbackWindow = %s", cfg.Intake.CallbackWindow)
	}
	if cfg.Intake.SessionRetention != 10*time.Minute {
		t.Errorf("SessionRetention = %s", cfg.Intake.SessionRetention)
	}
	if len(cfg.Intake.LeadTypes) != 3 {
		t.Errorf("LeadTypes = %v", cfg.Intake.LeadTypes)
	}
	if cfg.Telegraph.Platform != "slack" || cfg.Telegraph.Slack.BotToken != "xoxb-test" {
		t.Errorf("Telegraph = %+v", cfg.Telegraph)
	}
	if cfg.Supervisor.TickSchedule != "@every 5s" {
		t.Errorf("TickSchedule = %q", cfg.Supervisor.TickSchedule)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d", cfg.API.Port)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "switchboard.db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Intake.MaxCallDuration != 5*time.Minute {
		t.Errorf("MaxCallDuration = %s, want 5m", cfg.Intake.MaxCallDuration)
	}
	if *cfg.Intake.MaxRetries != 1 {
		t.Errorf("MaxRetries = %d, want 1", *cfg.Intake.MaxRetries)
	}
	if cfg.Intake.CallbackWindow != time.Hour {
		t.Errorf("CallbackWindow = %s, want 1h", cfg.Intake.CallbackWindow)
	}
	if cfg.Intake.ReferencePrefix != "RX" {
		t.Errorf("ReferencePrefix = %q", cfg.Intake.ReferencePrefix)
	}
	if cfg.Supervisor.TickSchedule == "" || cfg.Supervisor.PurgeSchedule == "" || cfg.Supervisor.DigestSchedule == "" {
		t.Errorf("Supervisor = %+v", cfg.Supervisor)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d", cfg.API.Port)
	}
}

func TestParse_EmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Center != "Care Center" {
		t.Errorf("Center = %q", cfg.Center)
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  driver: mysql\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "127.0.0.1" || cfg.Database.Port != 3306 || cfg.Database.User != "root" || cfg.Database.Database != "switchboard" {
		t.Errorf("Database = %+v", cfg.Database)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("SB_TEST_DISCORD_TOKEN", "tok-123")
	cfg, err := Parse([]byte(`
telegraph:
  platform: discord
  channel_id: "42"
  discord:
    bot_token: ${SB_TEST_DISCORD_TOKEN}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telegraph.Discord.BotToken != "tok-123" {
		t.Errorf("BotToken = %q", cfg.Telegraph.Discord.BotToken)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad driver", "database:\n  driver: postgres\n", "database.driver"},
		{"negative retries", "intake:\n  max_retries: -1\n", "max_retries"},
		{"negative duration", "intake:\n  max_call_duration: -5m\n", "max_call_duration"},
		{"dup lead type", "intake:\n  lead_types: [a, a]\n", "duplicated"},
		{"slack without token", "telegraph:\n  platform: slack\n  channel_id: C1\n", "slack.bot_token"},
		{"discord without channel", "telegraph:\n  platform: discord\n  discord:\n    bot_token: x\n", "channel_id"},
		{"unknown platform", "telegraph:\n  platform: teams\n", "telegraph.platform"},
		{"bad port", "api:\n  port: 70000\n", "api.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_MultipleErrorsJoined(t *testing.T) {
	_, err := Parse([]byte("database:\n  driver: x\napi:\n  port: -1\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("errors should be joined: %q", err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("center: [unclosed")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "switchboard.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Center != "RxOne Care Center" {
		t.Errorf("Center = %q", cfg.Center)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load("/nonexistent/switchboard.yaml")
	if err == nil || !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %v", err)
	}
}

func TestEngineConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatal(err)
	}
	ec := cfg.EngineConfig()
	if ec.MaxCallDuration != 4*time.Minute || *ec.MaxRetries != 2 || ec.CallbackWindow != 30*time.Minute {
		t.Errorf("EngineConfig = %+v", ec)
	}
	if ec.ReferencePrefix != "RXO" || len(ec.LeadTypes) != 3 {
		t.Errorf("EngineConfig = %+v", ec)
	}
}

func TestParse_ZeroRetriesHonoured(t *testing.T) {
	cfg, err := Parse([]byte("intake:\n  max_retries: 0\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Intake.MaxRetries == nil || *cfg.Intake.MaxRetries != 0 {
		t.Fatalf("MaxRetries = %v, want 0", cfg.Intake.MaxRetries)
	}
	if ec := cfg.EngineConfig(); *ec.MaxRetries != 0 {
		t.Errorf("EngineConfig MaxRetries = %d, want 0", *ec.MaxRetries)
	}
}
