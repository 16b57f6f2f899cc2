package intake

import (
	"fmt"
	"time"
)

// Snapshot is a read-only copy of an intake record. The logger and the
// persistence sink only ever see snapshots.
type Snapshot struct {
	ReferenceID      string        `json:"reference_id"`
	PatientName      string        `json:"patient_name,omitempty"`
	Origin           string        `json:"origin,omitempty"`
	Language         string        `json:"language,omitempty"`
	Phone            string        `json:"patient_phone,omitempty"`
	LeadType         string        `json:"lead_type,omitempty"`
	Urgency          Urgency       `json:"urgency_level,omitempty"`
	CallbackTime     string        `json:"preferred_callback_time,omitempty"`
	CallbackDeclined bool          `json:"callback_declined"`
	Notes            string        `json:"additional_notes,omitempty"`
	Duration         time.Duration `json:"duration_ns"`
	Transcript       string        `json:"transcript,omitempty"`
	Finalized        bool          `json:"finalized"`
}

// Complete reports whether the snapshot carries both required fields.
func (s Snapshot) Complete() bool {
	return s.Phone != "" && s.LeadType != ""
}

// Record is the mutable intake record owned by exactly one session.
type Record struct {
	data      Snapshot
	leadTypes []string
}

// NewRecord creates a record with its reference id fixed for life.
// A nil leadTypes uses DefaultLeadTypes.
func NewRecord(referenceID string, leadTypes []string) *Record {
	if len(leadTypes) == 0 {
		leadTypes = DefaultLeadTypes
	}
	return &Record{
		data:      Snapshot{ReferenceID: referenceID},
		leadTypes: leadTypes,
	}
}

// RestoreRecord reopens a logged snapshot under a new reference id so
// corrections go through the same validation as live intake.
func RestoreRecord(snap Snapshot, referenceID string, leadTypes []string) *Record {
	r := NewRecord(referenceID, leadTypes)
	r.data = snap
	r.data.ReferenceID = referenceID
	r.data.Finalized = false
	return r
}

// ReferenceID returns the id assigned at creation.
func (r *Record) ReferenceID() string { return r.data.ReferenceID }

// SetField validates raw and stores it. On any error the record is unchanged.
func (r *Record) SetField(field Field, raw string) (string, error) {
	if r.data.Finalized {
		return "", fmt.Errorf("intake: set %s on %s: %w", field, r.data.ReferenceID, ErrAlreadyFinalized)
	}

	next := r.data
	var (
		value string
		err   error
	)
	switch field {
	case FieldPatientName:
		value, err = validateText(field, raw)
		next.PatientName = value
	case FieldOrigin:
		value, err = validateText(field, raw)
		next.Origin = value
	case FieldLanguage:
		value, err = validateText(field, raw)
		next.Language = value
	case FieldPhone:
		value, err = ValidatePhone(raw)
		next.Phone = value
	case FieldLeadType:
		value, err = validateEnum(field, raw, r.leadTypes)
		next.LeadType = value
	case FieldUrgency:
		value, err = validateEnum(field, raw, UrgencyLevels)
		next.Urgency = Urgency(value)
	case FieldCallbackTime:
		value, err = validateText(field, raw)
		next.CallbackTime = value
	case FieldCallbackDeclined:
		value, err = validateEnum(field, raw, declineValues)
		next.CallbackDeclined = value == "true" || value == "yes"
	case FieldNotes:
		value, err = validateText(field, raw)
		next.Notes = value
	default:
		return "", &ValidationError{Field: field, Value: raw, Err: ErrUnknownEnum}
	}
	if err != nil {
		return "", err
	}
	r.data = next
	return value, nil
}

// IsComplete is true iff phone and lead type are both set.
func (r *Record) IsComplete() bool { return r.data.Complete() }

// Snapshot returns a copy of the current record.
func (r *Record) Snapshot() Snapshot { return r.data }

// Finalize seals the record with the call duration and transcript. It fails
// with ErrAlreadyFinalized on a second call, leaving the first result intact.
func (r *Record) Finalize(duration time.Duration, transcript string) (Snapshot, error) {
	if r.data.Finalized {
		return Snapshot{}, fmt.Errorf("intake: finalize %s: %w", r.data.ReferenceID, ErrAlreadyFinalized)
	}
	if duration < 0 {
		return Snapshot{}, fmt.Errorf("intake: finalize %s: negative duration %s: %w", r.data.ReferenceID, duration, ErrInvalidFormat)
	}
	r.data.Duration = duration
	r.data.Transcript = transcript
	r.data.Finalized = true
	return r.data, nil
}
