package db

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model of the call log for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.CallRecord{},
		&models.CallTransition{},
		&models.CallEscalation{},
		&models.LeadType{},
		&models.SwitchboardConfig{},
	}
}

// AutoMigrate creates or updates all call-log tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DropAll drops every call-log table. Used by "sb db reset" on SQLite where
// there is no server-level database to drop.
func DropAll(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return nil
}

// SeedLeadTypes upserts the configured lead types as active and marks the
// rest inactive.
func SeedLeadTypes(db *gorm.DB, names []string) error {
	if len(names) == 0 {
		return nil
	}
	for _, name := range names {
		lt := models.LeadType{Name: name, Active: true}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"active"}),
		}).Create(&lt)
		if result.Error != nil {
			return fmt.Errorf("db: seed lead type %q: %w", name, result.Error)
		}
	}
	if err := db.Model(&models.LeadType{}).
		Where("name NOT IN ?", names).
		Update("active", false).Error; err != nil {
		return fmt.Errorf("db: deactivate lead types: %w", err)
	}
	return nil
}

// SeedConfig writes or updates the SwitchboardConfig row for this center.
func SeedConfig(db *gorm.DB, cfg *config.Config) error {
	settings, err := marshalJSON(map[string]interface{}{
		"callback_window": cfg.Intake.CallbackWindow.String(),
		"max_retries":     cfg.Intake.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("db: marshal settings for %q: %w", cfg.Center, err)
	}

	sc := models.SwitchboardConfig{
		Center:          cfg.Center,
		ReferencePrefix: cfg.Intake.ReferencePrefix,
		MaxCallSeconds:  int(cfg.Intake.MaxCallDuration.Seconds()),
		Settings:        settings,
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "center"}},
		DoUpdates: clause.AssignmentColumns([]string{"reference_prefix", "max_call_seconds", "settings"}),
	}).Create(&sc)
	if result.Error != nil {
		return fmt.Errorf("db: seed config for %q: %w", cfg.Center, result.Error)
	}
	return nil
}

// ErrConfigNotFound is returned when no SwitchboardConfig row exists for a center.
var ErrConfigNotFound = errors.New("switchboard config not found")

// ActiveLeadTypes returns the names of the active lead types, sorted.
func ActiveLeadTypes(db *gorm.DB) ([]string, error) {
	var names []string
	if err := db.Model(&models.LeadType{}).Where("active = ?", true).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("db: active lead types: %w", err)
	}
	return names, nil
}

// LoadConfig reads the SwitchboardConfig row written for center.
func LoadConfig(db *gorm.DB, center string) (*models.SwitchboardConfig, error) {
	var sc models.SwitchboardConfig
	err := db.Where("center = ?", center).First(&sc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("db: load config for %q: %w", center, ErrConfigNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("db: load config for %q: %w", center, err)
	}
	return &sc, nil
}

// marshalJSON marshals a value to a JSON string, returning empty string for nil.
func marshalJSON(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
