// Package calllog persists sealed intake calls and the escalations raised
// during them. Call records are insert-only; corrections add a new record
// that supersedes the old one.
package calllog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/zulandar/switchboard/internal/intake"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrCallNotFound is returned when no call carries the reference id.
	ErrCallNotFound = errors.New("call not found")
	// ErrDuplicateReference is returned when a reference id is already logged.
	ErrDuplicateReference = errors.New("reference id already logged")
	// ErrSuperseded is returned when correcting a call that already has a correction.
	ErrSuperseded = errors.New("call already superseded")
	// ErrNoChanges is returned when a correction carries no field changes.
	ErrNoChanges = errors.New("no changes")
)

// Store is the gorm-backed call log. It implements intake.Persister.
type Store struct {
	db        *gorm.DB
	leadTypes []string
	clock     func() time.Time
}

// NewStore wraps an open, migrated database. Corrections and lead type
// filters are checked against the lead_types table; leadTypes is the
// fallback while that table is empty, and nil means intake.DefaultLeadTypes.
func NewStore(db *gorm.DB, leadTypes []string) *Store {
	return &Store{db: db, leadTypes: leadTypes, clock: time.Now}
}

// Persist writes the call and its transitions in one transaction.
func (s *Store) Persist(ctx context.Context, call intake.LoggedCall) error {
	rec := toRecord(call)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insert(tx, &rec)
	})
	if err != nil {
		return fmt.Errorf("calllog: persist %s: %w", call.ReferenceID, err)
	}
	return nil
}

func insert(tx *gorm.DB, rec *models.CallRecord) error {
	var n int64
	if err := tx.Model(&models.CallRecord{}).Where("reference_id = ?", rec.ReferenceID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrDuplicateReference
	}
	return tx.Create(rec).Error
}

func toRecord(call intake.LoggedCall) models.CallRecord {
	r := call.Record
	rec := models.CallRecord{
		ReferenceID:      call.ReferenceID,
		SessionID:        call.SessionID,
		Status:           string(call.Status),
		FinalState:       string(call.FinalState),
		PatientName:      r.PatientName,
		Origin:           r.Origin,
		Language:         r.Language,
		Phone:            r.Phone,
		LeadType:         r.LeadType,
		Urgency:          string(r.Urgency),
		CallbackTime:     r.CallbackTime,
		CallbackDeclined: r.CallbackDeclined,
		Notes:            r.Notes,
		DurationSec:      int(r.Duration.Seconds()),
		Transcript:       r.Transcript,
		StartedAt:        call.StartedAt,
		LoggedAt:         call.LoggedAt,
	}
	if call.Escalation != nil {
		rec.EscalationAction = string(call.Escalation.Action)
		rec.EscalationReason = string(call.Escalation.Reason)
	}
	if call.Supersedes != "" {
		sup := call.Supersedes
		rec.Supersedes = &sup
	}
	for i, t := range call.Transitions {
		rec.Transitions = append(rec.Transitions, models.CallTransition{
			Sequence:  i + 1,
			FromState: string(t.From),
			ToState:   string(t.To),
			Trigger:   t.Trigger,
			At:        t.At,
		})
	}
	return rec
}

// snapshotOf rebuilds the intake view of a stored call.
func snapshotOf(rec *models.CallRecord) intake.Snapshot {
	return intake.Snapshot{
		ReferenceID:      rec.ReferenceID,
		PatientName:      rec.PatientName,
		Origin:           rec.Origin,
		Language:         rec.Language,
		Phone:            rec.Phone,
		LeadType:         rec.LeadType,
		Urgency:          intake.Urgency(rec.Urgency),
		CallbackTime:     rec.CallbackTime,
		CallbackDeclined: rec.CallbackDeclined,
		Notes:            rec.Notes,
		Duration:         time.Duration(rec.DurationSec) * time.Second,
		Transcript:       rec.Transcript,
		Finalized:        true,
	}
}

// Get loads one call with its transitions in order.
func (s *Store) Get(ctx context.Context, ref string) (*models.CallRecord, error) {
	var rec models.CallRecord
	err := s.db.WithContext(ctx).
		Preload("Transitions", func(db *gorm.DB) *gorm.DB { return db.Order("sequence") }).
		Where("reference_id = ?", ref).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("calllog: get %s: %w", ref, ErrCallNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("calllog: get %s: %w", ref, err)
	}
	return &rec, nil
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Status   string
	LeadType string
	Urgency  string
	Phone    string
	Since    time.Time
	Limit    int
}

// knownLeadTypes returns the seeded lead types, only the active ones when
// activeOnly is set. An empty table yields the configured list.
func (s *Store) knownLeadTypes(ctx context.Context, activeOnly bool) ([]string, error) {
	q := s.db.WithContext(ctx).Model(&models.LeadType{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var names []string
	if err := q.Order("name").Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	if len(names) > 0 {
		return names, nil
	}
	if len(s.leadTypes) > 0 {
		return s.leadTypes, nil
	}
	return intake.DefaultLeadTypes, nil
}

// List returns calls newest first. A lead type filter must name a seeded
// lead type, active or not, so retired types can still be searched.
func (s *Store) List(ctx context.Context, f Filter) ([]models.CallRecord, error) {
	q := s.db.WithContext(ctx).Model(&models.CallRecord{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.LeadType != "" {
		known, err := s.knownLeadTypes(ctx, false)
		if err != nil {
			return nil, fmt.Errorf("calllog: list: lead types: %w", err)
		}
		if !slices.Contains(known, f.LeadType) {
			return nil, fmt.Errorf("calllog: list: %w", &intake.ValidationError{Field: intake.FieldLeadType, Value: f.LeadType, Err: intake.ErrUnknownEnum})
		}
		q = q.Where("lead_type = ?", f.LeadType)
	}
	if f.Urgency != "" {
		q = q.Where("urgency = ?", f.Urgency)
	}
	if f.Phone != "" {
		q = q.Where("phone = ?", f.Phone)
	}
	if !f.Since.IsZero() {
		q = q.Where("logged_at >= ?", f.Since)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	var out []models.CallRecord
	if err := q.Order("logged_at DESC").Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("calllog: list: %w", err)
	}
	return out, nil
}

// Correct stores a corrected copy of a logged call. Each change is validated
// like live intake; the original row is never modified. Only the latest
// version of a call can be corrected.
func (s *Store) Correct(ctx context.Context, ref string, changes map[intake.Field]string) (*models.CallRecord, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("calllog: correct %s: %w", ref, ErrNoChanges)
	}
	orig, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	active, err := s.knownLeadTypes(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("calllog: correct %s: lead types: %w", ref, err)
	}

	rec := intake.RestoreRecord(snapshotOf(orig), intake.NewReferenceID(prefixOf(ref)), active)
	for field, raw := range changes {
		if _, err := rec.SetField(field, raw); err != nil {
			return nil, fmt.Errorf("calllog: correct %s: %w", ref, err)
		}
	}
	snap := rec.Snapshot()

	call := intake.LoggedCall{
		ReferenceID: snap.ReferenceID,
		SessionID:   orig.SessionID,
		Status:      intake.CallStatus(orig.Status),
		FinalState:  intake.State(orig.FinalState),
		Record:      snap,
		Supersedes:  ref,
		StartedAt:   orig.StartedAt,
		LoggedAt:    s.clock(),
	}
	if orig.EscalationAction != "" {
		call.Escalation = &intake.Decision{
			Action:  intake.Action(orig.EscalationAction),
			Reason:  intake.Reason(orig.EscalationReason),
			Urgency: snap.Urgency,
		}
	}
	corrected := toRecord(call)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.CallRecord{}).Where("supersedes = ?", ref).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrSuperseded
		}
		return insert(tx, &corrected)
	})
	if err != nil {
		return nil, fmt.Errorf("calllog: correct %s: %w", ref, err)
	}
	return &corrected, nil
}

// prefixOf returns the reference prefix, "RX" for "RX-4F1C9A02B7".
func prefixOf(ref string) string {
	if i := strings.Index(ref, "-"); i > 0 {
		return ref[:i]
	}
	return intake.DefaultReferencePrefix
}
