package calllog

import (
	"context"
	"errors"
	"testing"

	"github.com/zulandar/switchboard/internal/models"
)

func TestEscalationLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	cb := &models.CallEscalation{ReferenceID: "RX-1", Action: "callback", Reason: "timeout", TargetWindow: "within 1 hour"}
	tr := &models.CallEscalation{ReferenceID: "RX-2", Action: "transfer", Reason: "emergency", Urgency: "critical"}
	for _, e := range []*models.CallEscalation{cb, tr} {
		if err := s.RecordEscalation(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
		if e.ID == 0 || e.Status != EscalationPending {
			t.Errorf("escalation = %+v", e)
		}
	}

	if err := s.MarkEscalation(ctx, cb.ID, EscalationNotified, nil); err != nil {
		t.Fatal(err)
	}
	pending, err := s.PendingCallbacks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ReferenceID != "RX-1" {
		t.Fatalf("pending = %+v", pending)
	}
	if pending[0].NotifiedAt == nil || pending[0].Status != EscalationNotified {
		t.Errorf("notified = %+v", pending[0])
	}

	if err := s.CompleteCallback(ctx, cb.ID); err != nil {
		t.Fatal(err)
	}
	pending, _ = s.PendingCallbacks(ctx)
	if len(pending) != 0 {
		t.Errorf("pending after done = %+v", pending)
	}
}

func TestMarkEscalation_Failure(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	e := &models.CallEscalation{ReferenceID: "RX-F", Action: "transfer", Reason: "patient_request"}
	if err := s.RecordEscalation(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkEscalation(ctx, e.ID, EscalationFailed, errors.New("slack: channel_not_found")); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Escalations(ctx, "RX-F")
	if len(got) != 1 || got[0].Status != EscalationFailed || got[0].Error != "slack: channel_not_found" {
		t.Errorf("escalations = %+v", got)
	}
}

func TestMarkEscalation_NotFound(t *testing.T) {
	s := testStore(t)
	if err := s.MarkEscalation(context.Background(), 999, EscalationNotified, nil); !errors.Is(err, ErrEscalationNotFound) {
		t.Errorf("error = %v", err)
	}
}

func TestCompleteCallback_RejectsTransfer(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	e := &models.CallEscalation{ReferenceID: "RX-T", Action: "transfer", Reason: "emergency"}
	if err := s.RecordEscalation(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteCallback(ctx, e.ID); !errors.Is(err, ErrEscalationNotFound) {
		t.Errorf("error = %v", err)
	}
}
