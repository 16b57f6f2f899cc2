package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/intake"
)

func TestDBCmd_Help(t *testing.T) {
	out, err := runCmd(t, "", "db", "--help")
	if err != nil {
		t.Fatalf("db --help failed: %v", err)
	}
	if !strings.Contains(out, "Database management") {
		t.Errorf("expected help to mention 'Database management', got: %s", out)
	}
	if !strings.Contains(out, "init") || !strings.Contains(out, "reset") || !strings.Contains(out, "status") {
		t.Errorf("expected help to list init, reset and status, got: %s", out)
	}
}

func TestDBInitCmd_MissingConfig(t *testing.T) {
	_, err := runCmd(t, "", "db", "init", "--config", "/nonexistent/switchboard.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

func TestDBInitCmd_InvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "switchboard.yaml")
	if err := writeTestFile(cfgPath, "database:\n  driver: postgres\n"); err != nil {
		t.Fatal(err)
	}
	_, err := runCmd(t, "", "db", "init", "--config", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "database.driver") {
		t.Errorf("err = %v, want driver validation error", err)
	}
}

func TestDBInitCmd_SQLite(t *testing.T) {
	cfgPath := sqliteConfig(t)
	out, err := runCmd(t, "", "db", "init", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db init: %v\n%s", err, out)
	}
	for _, want := range []string{
		`Loaded config for "Test Clinic"`,
		"Migrated 5 tables",
		"Seeded 2 lead types: lab_booking consultation_booking",
		"initialized successfully",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestDBInitCmd_SeedsDefaultLeadTypes(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "switchboard.yaml")
	body := "center: Bare Clinic\ndatabase:\n  driver: sqlite\n  path: " + filepath.Join(dir, "calls.db") + "\n"
	if err := writeTestFile(cfgPath, body); err != nil {
		t.Fatal(err)
	}
	out, err := runCmd(t, "", "db", "init", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db init: %v\n%s", err, out)
	}
	want := fmt.Sprintf("Seeded %d lead types", len(intake.DefaultLeadTypes))
	if !strings.Contains(out, want) {
		t.Errorf("expected %q, got: %s", want, out)
	}
}

func TestDBStatusCmd(t *testing.T) {
	cfgPath := sqliteConfig(t)
	if _, err := runCmd(t, "", "db", "status", "--config", cfgPath); err == nil || !strings.Contains(err.Error(), "sb db init") {
		t.Errorf("status before init: err = %v", err)
	}
	if _, err := runCmd(t, "", "db", "init", "--config", cfgPath); err != nil {
		t.Fatal(err)
	}
	out, err := runCmd(t, "", "db", "status", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db status: %v\n%s", err, out)
	}
	for _, want := range []string{
		"Center:           Test Clinic",
		"Reference prefix: TC",
		"Max call:         5m0s",
		`"max_retries":1`,
		"Lead types:       consultation_booking lab_booking",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestDBResetCmd_Aborted(t *testing.T) {
	cfgPath := sqliteConfig(t)
	out, err := runCmd(t, "no\n", "db", "reset", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db reset: %v", err)
	}
	if !strings.Contains(out, "WARNING") || !strings.Contains(out, "Aborted.") {
		t.Errorf("expected prompt and abort, got: %s", out)
	}
}

func TestDBResetCmd_Confirmed(t *testing.T) {
	cfgPath := sqliteConfig(t)
	if _, err := runCmd(t, "", "db", "init", "--config", cfgPath); err != nil {
		t.Fatal(err)
	}
	out, err := runCmd(t, "yes\n", "db", "reset", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db reset: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Dropped all tables") || !strings.Contains(out, "reset and re-initialized") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestDescribeDB(t *testing.T) {
	tests := []struct {
		cfg  config.DatabaseConfig
		want string
	}{
		{config.DatabaseConfig{Driver: "sqlite", Path: "calls.db"}, "sqlite calls.db"},
		{config.DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, Database: "switchboard"}, "mysql db:3306/switchboard"},
	}
	for _, tt := range tests {
		if got := describeDB(tt.cfg); got != tt.want {
			t.Errorf("describeDB(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}
