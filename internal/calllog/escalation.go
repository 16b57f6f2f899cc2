package calllog

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// Escalation statuses.
const (
	EscalationPending  = "pending"
	EscalationNotified = "notified"
	EscalationFailed   = "failed"
	EscalationDone     = "done"
)

// ErrEscalationNotFound is returned when no escalation has the given id.
var ErrEscalationNotFound = errors.New("escalation not found")

// RecordEscalation stores a new escalation as pending and sets its ID.
func (s *Store) RecordEscalation(ctx context.Context, e *models.CallEscalation) error {
	if e.Status == "" {
		e.Status = EscalationPending
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("calllog: record escalation %s: %w", e.ReferenceID, err)
	}
	return nil
}

// MarkEscalation moves an escalation to status. A non-nil cause is stored
// as the failure reason.
func (s *Store) MarkEscalation(ctx context.Context, id uint, status string, cause error) error {
	updates := map[string]interface{}{"status": status}
	if status == EscalationNotified {
		updates["notified_at"] = s.clock()
	}
	if cause != nil {
		updates["error"] = cause.Error()
	}
	result := s.db.WithContext(ctx).Model(&models.CallEscalation{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("calllog: mark escalation %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("calllog: mark escalation %d: %w", id, ErrEscalationNotFound)
	}
	return nil
}

// CompleteCallback marks a callback as done once staff have called back.
func (s *Store) CompleteCallback(ctx context.Context, id uint) error {
	var e models.CallEscalation
	err := s.db.WithContext(ctx).Where("id = ? AND action = ?", id, "callback").First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("calllog: complete callback %d: %w", id, ErrEscalationNotFound)
	}
	if err != nil {
		return fmt.Errorf("calllog: complete callback %d: %w", id, err)
	}
	return s.MarkEscalation(ctx, id, EscalationDone, nil)
}

// PendingCallbacks lists callbacks not yet done, oldest first.
func (s *Store) PendingCallbacks(ctx context.Context) ([]models.CallEscalation, error) {
	var out []models.CallEscalation
	err := s.db.WithContext(ctx).
		Where("action = ? AND status <> ?", "callback", EscalationDone).
		Order("created_at").Order("id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("calllog: pending callbacks: %w", err)
	}
	return out, nil
}

// Escalations lists the escalations raised for one call.
func (s *Store) Escalations(ctx context.Context, ref string) ([]models.CallEscalation, error) {
	var out []models.CallEscalation
	if err := s.db.WithContext(ctx).Where("reference_id = ?", ref).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("calllog: escalations for %s: %w", ref, err)
	}
	return out, nil
}
