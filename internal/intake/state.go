package intake

import (
	"fmt"
	"time"
)

// State is a step in the intake conversation.
type State string

const (
	StateGreeting                   State = "greeting"
	StateCollectingIdentity         State = "collecting_identity"
	StateOfferingServices           State = "offering_services"
	StateCollectingLeadDetails      State = "collecting_lead_details"
	StateAwaitingCallbackPreference State = "awaiting_callback_preference"
	StateClosing                    State = "closing"
	StateClosed                     State = "closed"
	StateEscalated                  State = "escalated"
)

// Terminal reports whether no further transitions leave s.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateEscalated
}

// Event is an input the conversation driver feeds to Advance.
type Event string

const (
	EventUserIntent        Event = "user_intent_detected"
	EventRetryExhausted    Event = "retry_exhausted"
	EventEscalationRequest Event = "explicit_escalation_request"
	EventElapsedTick       Event = "elapsed_tick"
)

// ParseEvent maps a wire name to an Event.
func ParseEvent(s string) (Event, error) {
	switch e := Event(s); e {
	case EventUserIntent, EventRetryExhausted, EventEscalationRequest, EventElapsedTick:
		return e, nil
	}
	return "", fmt.Errorf("intake: event %q: %w", s, ErrUnknownEnum)
}

// Transition is one recorded state change. Trigger is the event name, a
// "field:<name>" update, or "end_session"/"cancel".
type Transition struct {
	From    State     `json:"from"`
	To      State     `json:"to"`
	Trigger string    `json:"trigger"`
	At      time.Time `json:"at"`
}

// forward returns the state user_intent_detected moves s to, or s itself
// when the guard for leaving s does not hold yet.
func forward(s State, rec Snapshot) State {
	switch s {
	case StateGreeting:
		return StateCollectingIdentity
	case StateCollectingIdentity:
		// Name and origin are best-effort; neither blocks.
		return StateOfferingServices
	case StateOfferingServices:
		if rec.LeadType != "" {
			return StateCollectingLeadDetails
		}
	case StateCollectingLeadDetails:
		if rec.Urgency == UrgencyCritical {
			return StateEscalated
		}
		if rec.Phone != "" && rec.Urgency != UrgencyUnset {
			return StateAwaitingCallbackPreference
		}
	case StateAwaitingCallbackPreference:
		if rec.CallbackTime != "" || rec.CallbackDeclined {
			return StateClosing
		}
	}
	return s
}
