package intake

import (
	"fmt"
	"time"
)

// Action is what the session must do with a call after a policy evaluation.
type Action string

const (
	ActionContinue Action = "continue"
	ActionCallback Action = "callback"
	ActionTransfer Action = "transfer"
)

// Reason is the escalation reason code handed to the transfer collaborator.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonEmergency      Reason = "emergency"
	ReasonPatientRequest Reason = "patient_request"
	ReasonComplexQuery   Reason = "complex_query"
	ReasonTimeout        Reason = "timeout"
)

// Decision is produced fresh on every evaluation and never persisted by the
// policy itself.
type Decision struct {
	Action       Action  `json:"action"`
	Reason       Reason  `json:"reason,omitempty"`
	Urgency      Urgency `json:"urgency,omitempty"`
	TargetWindow string  `json:"target_window,omitempty"`
}

// Escalates reports whether the decision routes the call away from automation.
func (d Decision) Escalates() bool { return d.Action != ActionContinue }

// PolicyInput is everything the policy looks at.
type PolicyInput struct {
	Urgency         Urgency
	Elapsed         time.Duration
	ExplicitRequest bool
	Unresolved      bool
}

// Policy decides between continuing, a callback, and a human transfer.
type Policy struct {
	MaxCallDuration time.Duration
	CallbackWindow  time.Duration
}

// Evaluate applies the escalation rules in priority order. It is pure: the
// same input always yields the same decision.
func (p Policy) Evaluate(in PolicyInput) Decision {
	switch {
	case in.Urgency == UrgencyCritical:
		return Decision{Action: ActionTransfer, Reason: ReasonEmergency, Urgency: in.Urgency}
	case in.ExplicitRequest:
		return Decision{Action: ActionTransfer, Reason: ReasonPatientRequest, Urgency: in.Urgency}
	case in.Unresolved:
		return Decision{
			Action:       ActionCallback,
			Reason:       ReasonComplexQuery,
			Urgency:      in.Urgency,
			TargetWindow: formatWindow(p.callbackWindow()),
		}
	case in.Elapsed >= p.maxCallDuration():
		return Decision{
			Action:       ActionCallback,
			Reason:       ReasonTimeout,
			Urgency:      in.Urgency,
			TargetWindow: formatWindow(p.callbackWindow()),
		}
	}
	return Decision{Action: ActionContinue, Urgency: in.Urgency}
}

func (p Policy) maxCallDuration() time.Duration {
	if p.MaxCallDuration <= 0 {
		return DefaultMaxCallDuration
	}
	return p.MaxCallDuration
}

func (p Policy) callbackWindow() time.Duration {
	if p.CallbackWindow <= 0 {
		return DefaultCallbackWindow
	}
	return p.CallbackWindow
}

// formatWindow renders a callback window the way an agent says it aloud.
func formatWindow(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return pluralize("within %d hour", int(d/time.Hour))
	case d%time.Minute == 0:
		return pluralize("within %d minute", int(d/time.Minute))
	}
	return "within " + d.String()
}

func pluralize(format string, n int) string {
	s := fmt.Sprintf(format, n)
	if n != 1 {
		s += "s"
	}
	return s
}
