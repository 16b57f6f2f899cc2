package intake

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// FieldResult reports the outcome of a field submission. It is filled in even
// when the submission fails validation, so the driver can see retry counts
// and whether the failure pushed the call into escalation.
type FieldResult struct {
	Field      Field     `json:"field"`
	Value      string    `json:"value,omitempty"`
	ReadBack   string    `json:"read_back,omitempty"`
	State      State     `json:"state"`
	Complete   bool      `json:"complete"`
	Failures   int       `json:"failures"`
	Escalation *Decision `json:"escalation,omitempty"`
}

// session owns one record and one state. All methods expect mu to be held by
// the caller (the engine), which keeps transitions for a call sequential.
type session struct {
	mu sync.Mutex

	id         string
	record     *Record
	state      State
	policy     Policy
	maxRetries int
	clock      func() time.Time

	startedAt    time.Time
	lastActivity time.Time
	finalizedAt  time.Time

	failures    map[Field]int
	unresolved  bool
	explicit    bool
	decision    *Decision
	transitions []Transition
}

func newSession(id, referenceID string, cfg Config, clock func() time.Time) *session {
	now := clock()
	return &session{
		id:           id,
		record:       NewRecord(referenceID, cfg.LeadTypes),
		state:        StateGreeting,
		policy:       cfg.policy(),
		maxRetries:   *cfg.MaxRetries,
		clock:        clock,
		startedAt:    now,
		lastActivity: now,
		failures:     make(map[Field]int),
	}
}

func (s *session) finalized() bool { return s.record.data.Finalized }

func (s *session) elapsed() time.Duration { return s.clock().Sub(s.startedAt) }

func (s *session) input() PolicyInput {
	return PolicyInput{
		Urgency:         s.record.data.Urgency,
		Elapsed:         s.elapsed(),
		ExplicitRequest: s.explicit,
		Unresolved:      s.unresolved,
	}
}

func (s *session) transition(to State, trigger string) {
	if to == s.state {
		return
	}
	s.transitions = append(s.transitions, Transition{
		From:    s.state,
		To:      to,
		Trigger: trigger,
		At:      s.clock(),
	})
	s.state = to
}

// reconcile consults the policy and escalates a live session on any decision
// other than continue. It returns the decision only when it caused the
// escalation, so the caller dispatches each escalation once.
func (s *session) reconcile(trigger string) *Decision {
	if s.state.Terminal() {
		return nil
	}
	d := s.policy.Evaluate(s.input())
	if !d.Escalates() {
		return nil
	}
	s.decision = &d
	s.transition(StateEscalated, trigger)
	return &d
}

func (s *session) submit(field Field, raw string) (FieldResult, error) {
	if s.finalized() {
		return FieldResult{Field: field, State: s.state}, fmt.Errorf("intake: session %s: submit %s: %w", s.id, field, ErrAlreadyFinalized)
	}
	s.lastActivity = s.clock()

	if field == FieldUrgency && s.state == StateEscalated {
		if v, err := ValidateEnum(raw, UrgencyLevels); err == nil && Urgency(v).Rank() < s.record.data.Urgency.Rank() {
			return FieldResult{Field: field, State: s.state, Complete: s.record.IsComplete(), Escalation: s.decision},
				fmt.Errorf("intake: session %s: submit %s %q: %w", s.id, field, raw, ErrUrgencyDowngrade)
		}
	}

	value, err := s.record.SetField(field, raw)
	known := slices.Contains(Fields, field)
	switch {
	case err != nil && known:
		s.failures[field]++
		if s.failures[field] > s.maxRetries {
			s.unresolved = true
		}
	case err == nil:
		s.failures[field] = 0
	}

	res := FieldResult{
		Field:      field,
		Value:      value,
		Failures:   s.failures[field],
		Escalation: s.reconcile("field:" + string(field)),
	}
	if err == nil && field == FieldPhone {
		res.ReadBack = ReadBack(value)
	}
	res.State = s.state
	res.Complete = s.record.IsComplete()
	return res, err
}

func (s *session) advance(ev Event) (State, *Decision, error) {
	if s.finalized() {
		return s.state, nil, fmt.Errorf("intake: session %s: advance %s: %w", s.id, ev, ErrAlreadyFinalized)
	}
	s.lastActivity = s.clock()

	switch ev {
	case EventUserIntent:
		if next := forward(s.state, s.record.data); next != StateEscalated && !s.state.Terminal() {
			s.transition(next, string(ev))
		}
	case EventRetryExhausted:
		s.unresolved = true
	case EventEscalationRequest:
		s.explicit = true
	case EventElapsedTick:
	default:
		return s.state, nil, fmt.Errorf("intake: session %s: event %q: %w", s.id, ev, ErrUnknownEnum)
	}

	d := s.reconcile(string(ev))
	return s.state, d, nil
}

// status evaluates the policy fresh against the current record. Once the
// session is terminal the answer is frozen: the recorded escalation, or
// continue for a call that closed normally.
func (s *session) status() Decision {
	if s.decision != nil {
		return *s.decision
	}
	if s.state.Terminal() || s.finalized() {
		return Decision{Action: ActionContinue, Urgency: s.record.data.Urgency}
	}
	return s.policy.Evaluate(s.input())
}

// seal finalizes the record and moves the session to its terminal state.
// Escalated sessions stay escalated; everything else closes.
func (s *session) seal(duration time.Duration, transcript, trigger string) (Snapshot, error) {
	snap, err := s.record.Finalize(duration, transcript)
	if err != nil {
		return Snapshot{}, err
	}
	if s.state != StateEscalated {
		s.transition(StateClosed, trigger)
	}
	s.finalizedAt = s.clock()
	return snap, nil
}

// sealMark is what seal changes, kept so a failed hand-off to the logger
// can be undone and the call retried.
type sealMark struct {
	data        Snapshot
	state       State
	transitions int
}

func (s *session) mark() sealMark {
	return sealMark{data: s.record.data, state: s.state, transitions: len(s.transitions)}
}

func (s *session) restore(m sealMark) {
	s.record.data = m.data
	s.state = m.state
	s.transitions = s.transitions[:m.transitions]
	s.finalizedAt = time.Time{}
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		SessionID:   s.id,
		ReferenceID: s.record.ReferenceID(),
		State:       s.state,
		StartedAt:   s.startedAt,
		Elapsed:     s.elapsed(),
		Complete:    s.record.IsComplete(),
		Finalized:   s.finalized(),
		Escalation:  s.decision,
	}
}

// loggedCall assembles the immutable call for the logger.
func (s *session) loggedCall(snap Snapshot, status CallStatus) LoggedCall {
	transitions := make([]Transition, len(s.transitions))
	copy(transitions, s.transitions)
	var esc *Decision
	if s.decision != nil {
		d := *s.decision
		esc = &d
	}
	return LoggedCall{
		ReferenceID: snap.ReferenceID,
		SessionID:   s.id,
		Status:      status,
		FinalState:  s.state,
		Record:      snap,
		Escalation:  esc,
		Transitions: transitions,
		StartedAt:   s.startedAt,
	}
}
