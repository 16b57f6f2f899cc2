package models

import "time"

// CallRecord is the sealed intake record of one call. Rows are insert-only:
// a correction is a new row whose Supersedes points at the old reference id.
type CallRecord struct {
	ID               uint      `gorm:"primaryKey;autoIncrement"`
	ReferenceID      string    `gorm:"size:32;not null;uniqueIndex"`
	SessionID        string    `gorm:"size:64;index"`
	Status           string    `gorm:"size:16;not null;index"` // completed, escalated, abandoned
	FinalState       string    `gorm:"size:32"`
	PatientName      string    `gorm:"size:128"`
	Origin           string    `gorm:"size:128"`
	Language         string    `gorm:"size:32"`
	Phone            string    `gorm:"size:16;index"`
	LeadType         string    `gorm:"size:32;index"`
	Urgency          string    `gorm:"size:8;index"`
	CallbackTime     string    `gorm:"size:128"`
	CallbackDeclined bool      `gorm:"default:false"`
	Notes            string    `gorm:"type:text"`
	DurationSec      int
	Transcript       string    `gorm:"type:mediumtext"`
	EscalationAction string    `gorm:"size:16"`
	EscalationReason string    `gorm:"size:32"`
	Supersedes       *string   `gorm:"size:32;index"`
	StartedAt        time.Time
	LoggedAt         time.Time `gorm:"index"`
	CreatedAt        time.Time

	Transitions []CallTransition `gorm:"foreignKey:CallID"`
}

// CallTransition stores one state change of a logged call, in order.
type CallTransition struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	CallID    uint      `gorm:"not null;index"`
	Sequence  int       `gorm:"not null"`
	FromState string    `gorm:"size:32;not null"`
	ToState   string    `gorm:"size:32;not null"`
	Trigger   string    `gorm:"size:64"`
	At        time.Time
}
