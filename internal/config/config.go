// Package config provides YAML-based configuration loading for Switchboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zulandar/switchboard/internal/intake"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Switchboard configuration, loaded from switchboard.yaml.
type Config struct {
	Center     string           `yaml:"center"`
	Database   DatabaseConfig   `yaml:"database"`
	Intake     IntakeConfig     `yaml:"intake"`
	Telegraph  TelegraphConfig  `yaml:"telegraph"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	API        APIConfig        `yaml:"api"`
}

// DatabaseConfig selects and addresses the call-log database.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "mysql" or "sqlite"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Path     string `yaml:"path"` // sqlite file
}

// IntakeConfig tunes the intake engine.
type IntakeConfig struct {
	MaxCallDuration  time.Duration `yaml:"max_call_duration"`
	MaxRetries       *int          `yaml:"max_retries"` // nil means the default; 0 means no retries
	CallbackWindow   time.Duration `yaml:"callback_window"`
	SessionRetention time.Duration `yaml:"session_retention"`
	ReferencePrefix  string        `yaml:"reference_prefix"`
	LeadTypes        []string      `yaml:"lead_types"`
}

// TelegraphConfig routes transfer and callback alerts to a chat channel.
type TelegraphConfig struct {
	Platform  string        `yaml:"platform"` // "slack", "discord", or "" to log only
	ChannelID string        `yaml:"channel_id"`
	Slack     SlackConfig   `yaml:"slack"`
	Discord   DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack credentials.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
}

// DiscordConfig holds Discord credentials.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// SupervisorConfig holds cron schedules for background sweeps.
type SupervisorConfig struct {
	TickSchedule   string `yaml:"tick_schedule"`
	PurgeSchedule  string `yaml:"purge_schedule"`
	DigestSchedule string `yaml:"digest_schedule"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references from the environment, then unmarshals YAML
// bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Center == "" {
		c.Center = "Care Center"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Database == "" {
			c.Database.Database = "switchboard"
		}
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "switchboard.db"
		}
	}
	if c.Intake.MaxCallDuration == 0 {
		c.Intake.MaxCallDuration = intake.DefaultMaxCallDuration
	}
	if c.Intake.MaxRetries == nil {
		n := intake.DefaultMaxRetries
		c.Intake.MaxRetries = &n
	}
	if c.Intake.CallbackWindow == 0 {
		c.Intake.CallbackWindow = intake.DefaultCallbackWindow
	}
	if c.Intake.SessionRetention == 0 {
		c.Intake.SessionRetention = 15 * time.Minute
	}
	if c.Intake.ReferencePrefix == "" {
		c.Intake.ReferencePrefix = intake.DefaultReferencePrefix
	}
	if c.Supervisor.TickSchedule == "" {
		c.Supervisor.TickSchedule = "@every 15s"
	}
	if c.Supervisor.PurgeSchedule == "" {
		c.Supervisor.PurgeSchedule = "@every 1m"
	}
	if c.Supervisor.DigestSchedule == "" {
		c.Supervisor.DigestSchedule = "0 * * * *"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be mysql or sqlite", c.Database.Driver))
	}
	if c.Intake.MaxCallDuration < 0 {
		errs = append(errs, "intake.max_call_duration must be positive")
	}
	if *c.Intake.MaxRetries < 0 {
		errs = append(errs, "intake.max_retries must not be negative")
	}
	if c.Intake.CallbackWindow < 0 {
		errs = append(errs, "intake.callback_window must be positive")
	}
	seen := make(map[string]bool)
	for i, lt := range c.Intake.LeadTypes {
		if strings.TrimSpace(lt) == "" {
			errs = append(errs, fmt.Sprintf("intake.lead_types[%d] is empty", i))
		}
		if seen[lt] {
			errs = append(errs, fmt.Sprintf("intake.lead_types[%d] %q is duplicated", i, lt))
		}
		seen[lt] = true
	}
	switch c.Telegraph.Platform {
	case "":
	case "slack":
		if c.Telegraph.Slack.BotToken == "" {
			errs = append(errs, "telegraph.slack.bot_token is required for platform slack")
		}
		if c.Telegraph.ChannelID == "" {
			errs = append(errs, "telegraph.channel_id is required")
		}
	case "discord":
		if c.Telegraph.Discord.BotToken == "" {
			errs = append(errs, "telegraph.discord.bot_token is required for platform discord")
		}
		if c.Telegraph.ChannelID == "" {
			errs = append(errs, "telegraph.channel_id is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("telegraph.platform %q must be slack, discord, or empty", c.Telegraph.Platform))
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port %d out of range", c.API.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// EngineConfig converts the intake section into the engine's typed config.
func (c *Config) EngineConfig() intake.Config {
	return intake.Config{
		MaxCallDuration: c.Intake.MaxCallDuration,
		CallbackWindow:  c.Intake.CallbackWindow,
		MaxRetries:      c.Intake.MaxRetries,
		LeadTypes:       c.Intake.LeadTypes,
		ReferencePrefix: c.Intake.ReferencePrefix,
	}
}
