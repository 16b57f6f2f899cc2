package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/intake"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	cmd.AddCommand(newDBStatusCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the call-log database",
		Long:  "Creates the call-log database, migrates all tables, seeds lead types and configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config for %q from %s\n", cfg.Center, configPath)

	if cfg.Database.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Connected to MySQL at %s:%d\n", cfg.Database.Host, cfg.Database.Port)
		if err := db.CreateDatabase(adminDB, cfg.Database.Database); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Database.Database)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", describeDB(cfg.Database), err)
	}
	if err := migrateAndSeed(cmd, gormDB, cfg); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nSwitchboard database initialized successfully.")
	return nil
}

// migrateAndSeed creates all tables and writes lead types and configuration.
func migrateAndSeed(cmd *cobra.Command, gormDB *gorm.DB, cfg *config.Config) error {
	out := cmd.OutOrStdout()

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	leadTypes := cfg.Intake.LeadTypes
	if len(leadTypes) == 0 {
		leadTypes = intake.DefaultLeadTypes
	}
	if err := db.SeedLeadTypes(gormDB, leadTypes); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d lead types: %s\n", len(leadTypes), strings.Join(leadTypes, " "))

	if err := db.SeedConfig(gormDB, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Configuration written for %q\n", cfg.Center)
	return nil
}

func newDBStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored configuration and lead types",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBStatus(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}

func runDBStatus(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if !gormDB.Migrator().HasTable(&models.SwitchboardConfig{}) {
		return fmt.Errorf("%s is not initialized (run \"sb db init\" first)", describeDB(cfg.Database))
	}
	sc, err := db.LoadConfig(gormDB, cfg.Center)
	if err != nil {
		if errors.Is(err, db.ErrConfigNotFound) {
			return fmt.Errorf("%w (run \"sb db init\" first)", err)
		}
		return err
	}
	leadTypes, err := db.ActiveLeadTypes(gormDB)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Center:           %s\n", sc.Center)
	fmt.Fprintf(out, "Database:         %s\n", describeDB(cfg.Database))
	fmt.Fprintf(out, "Reference prefix: %s\n", sc.ReferencePrefix)
	fmt.Fprintf(out, "Max call:         %s\n", time.Duration(sc.MaxCallSeconds)*time.Second)
	if sc.Settings != "" {
		fmt.Fprintf(out, "Settings:         %s\n", sc.Settings)
	}
	fmt.Fprintf(out, "Lead types:       %s\n", strings.Join(leadTypes, " "))
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the call-log database",
		Long: `Drops every call-log table (or the whole MySQL database) and re-creates
it from config. All logged calls and escalations are lost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config for %q from %s\n", cfg.Center, configPath)

	target := describeDB(cfg.Database)
	if !skipConfirm && !confirmReset(cmd, target) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	var gormDB *gorm.DB
	switch cfg.Database.Driver {
	case "mysql":
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return err
		}
		if err := db.DropDatabase(adminDB, cfg.Database.Database); err != nil {
			return err
		}
		fmt.Fprintf(out, "Dropped database %s\n", cfg.Database.Database)
		if err := db.CreateDatabase(adminDB, cfg.Database.Database); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s re-created\n", cfg.Database.Database)
		if gormDB, err = db.Connect(cfg.Database); err != nil {
			return err
		}
	default:
		if gormDB, err = db.Open(cfg.Database); err != nil {
			return fmt.Errorf("connect to %s: %w", target, err)
		}
		if err := db.DropAll(gormDB); err != nil {
			return err
		}
		fmt.Fprintf(out, "Dropped all tables in %s\n", target)
	}

	if err := migrateAndSeed(cmd, gormDB, cfg); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nSwitchboard database reset and re-initialized successfully.")
	return nil
}

func confirmReset(cmd *cobra.Command, target string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintf(out, "WARNING: This will permanently delete all call records in %s.\n", target)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
