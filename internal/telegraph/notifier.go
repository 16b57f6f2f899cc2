package telegraph

import (
	"context"
	"fmt"
	"log"

	"github.com/zulandar/switchboard/internal/calllog"
	"github.com/zulandar/switchboard/internal/intake"
	"github.com/zulandar/switchboard/internal/models"
)

// EscalationStore records escalations and their delivery status.
type EscalationStore interface {
	RecordEscalation(ctx context.Context, e *models.CallEscalation) error
	MarkEscalation(ctx context.Context, id uint, status string, cause error) error
	PendingCallbacks(ctx context.Context) ([]models.CallEscalation, error)
}

// Notifier implements intake.Transferer by recording each escalation and
// posting it to the staff channel. Without an adapter alerts are only logged
// and recorded, and stay pending for the digest.
type Notifier struct {
	adapter   Adapter
	store     EscalationStore
	channelID string
}

// NotifierOpts holds parameters for creating a Notifier.
type NotifierOpts struct {
	Adapter   Adapter // optional; nil logs alerts only
	Store     EscalationStore
	ChannelID string
}

// NewNotifier creates a Notifier. The adapter must already be connected.
func NewNotifier(opts NotifierOpts) (*Notifier, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("telegraph: escalation store is required")
	}
	return &Notifier{
		adapter:   opts.Adapter,
		store:     opts.Store,
		channelID: opts.ChannelID,
	}, nil
}

var _ intake.Transferer = (*Notifier)(nil)

// Transfer records and announces a live transfer.
func (n *Notifier) Transfer(ctx context.Context, req intake.TransferRequest) error {
	esc := &models.CallEscalation{
		ReferenceID: req.ReferenceID,
		SessionID:   req.SessionID,
		Action:      string(intake.ActionTransfer),
		Reason:      string(req.Reason),
		Urgency:     string(req.Urgency),
		PatientName: req.PatientName,
		Phone:       req.Phone,
		LeadType:    req.LeadType,
	}
	return n.notify(ctx, esc, FormatTransfer(req))
}

// ScheduleCallback records and announces a callback.
func (n *Notifier) ScheduleCallback(ctx context.Context, req intake.CallbackRequest) error {
	esc := &models.CallEscalation{
		ReferenceID:   req.ReferenceID,
		SessionID:     req.SessionID,
		Action:        string(intake.ActionCallback),
		Reason:        string(req.Reason),
		Urgency:       string(req.Urgency),
		TargetWindow:  req.Window,
		PatientName:   req.PatientName,
		Phone:         req.Phone,
		LeadType:      req.LeadType,
		PreferredTime: req.PreferredTime,
	}
	return n.notify(ctx, esc, FormatCallback(req))
}

func (n *Notifier) notify(ctx context.Context, esc *models.CallEscalation, evt FormattedEvent) error {
	// The alert goes out even when the escalation row cannot be written.
	recordErr := n.store.RecordEscalation(ctx, esc)
	if recordErr != nil {
		log.Printf("telegraph: record %s %s: %v", esc.Action, esc.ReferenceID, recordErr)
	}
	if n.adapter == nil {
		log.Printf("telegraph: %s [ref=%s] (no chat platform configured)", evt.Title, esc.ReferenceID)
		return wrapRecordErr(esc, recordErr)
	}

	sendErr := n.adapter.Send(ctx, OutboundMessage{
		ChannelID: n.channelID,
		Text:      evt.Title,
		Events:    []FormattedEvent{evt},
	})
	if recordErr == nil {
		status := calllog.EscalationNotified
		if sendErr != nil {
			status = calllog.EscalationFailed
		}
		if err := n.store.MarkEscalation(ctx, esc.ID, status, sendErr); err != nil {
			log.Printf("telegraph: mark escalation %d: %v", esc.ID, err)
		}
	}
	if sendErr != nil {
		return fmt.Errorf("telegraph: %s %s: %w", esc.Action, esc.ReferenceID, sendErr)
	}
	return wrapRecordErr(esc, recordErr)
}

func wrapRecordErr(esc *models.CallEscalation, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("telegraph: %s %s: record: %w", esc.Action, esc.ReferenceID, err)
}

// Digest posts a summary of callbacks still waiting for staff and returns
// how many there were. Nothing is posted when none are pending.
func (n *Notifier) Digest(ctx context.Context) (int, error) {
	pending, err := n.store.PendingCallbacks(ctx)
	if err != nil {
		return 0, fmt.Errorf("telegraph: digest: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	evt := FormatDigest(pending)
	if n.adapter == nil {
		log.Printf("telegraph: %d pending callbacks (no chat platform configured)", len(pending))
		return len(pending), nil
	}
	if err := n.adapter.Send(ctx, OutboundMessage{
		ChannelID: n.channelID,
		Text:      evt.Title,
		Events:    []FormattedEvent{evt},
	}); err != nil {
		return len(pending), fmt.Errorf("telegraph: digest: %w", err)
	}
	return len(pending), nil
}
