package models

import "time"

// CallEscalation tracks a transfer or callback handed to staff. Status moves
// pending -> notified (alert delivered) or failed; callbacks are marked done
// once a human has called the patient back.
type CallEscalation struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	ReferenceID   string `gorm:"size:32;not null;index"`
	SessionID     string `gorm:"size:64;index"`
	Action        string `gorm:"size:16;not null;index"` // transfer, callback
	Reason        string `gorm:"size:32;not null"`
	Urgency       string `gorm:"size:8"`
	TargetWindow  string `gorm:"size:32"`
	PatientName   string `gorm:"size:128"`
	Phone         string `gorm:"size:16"`
	LeadType      string `gorm:"size:32"`
	PreferredTime string `gorm:"size:128"`
	Status        string `gorm:"size:16;default:pending;index"`
	Error         string `gorm:"type:text"`
	CreatedAt     time.Time
	NotifiedAt    *time.Time
}
