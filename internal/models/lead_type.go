package models

// LeadType is a lead classification seeded from configuration, kept in the
// database so reports can join against it.
type LeadType struct {
	Name   string `gorm:"primaryKey;size:32"`
	Active bool   `gorm:"default:true"`
}

// SwitchboardConfig stores instance-level configuration.
type SwitchboardConfig struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	Center          string `gorm:"size:128;uniqueIndex"`
	ReferencePrefix string `gorm:"size:8"`
	MaxCallSeconds  int
	Settings        string `gorm:"type:json"`
}
