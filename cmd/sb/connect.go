package main

import (
	"fmt"

	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"gorm.io/gorm"
)

// connectFromConfig loads the config and opens the call-log database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", describeDB(cfg.Database), err)
	}

	return cfg, gormDB, nil
}

// describeDB names the database for progress output.
func describeDB(d config.DatabaseConfig) string {
	if d.Driver == "sqlite" {
		return "sqlite " + d.Path
	}
	return fmt.Sprintf("mysql %s:%d/%s", d.Host, d.Port, d.Database)
}
