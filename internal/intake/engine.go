package intake

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transferer hands a call to people: a live transfer to a human agent or a
// scheduled callback. Both are best-effort external operations.
type Transferer interface {
	Transfer(ctx context.Context, req TransferRequest) error
	ScheduleCallback(ctx context.Context, req CallbackRequest) error
}

// TransferRequest asks for an immediate human handoff.
type TransferRequest struct {
	SessionID   string
	ReferenceID string
	Reason      Reason
	Urgency     Urgency
	PatientName string
	Phone       string
	LeadType    string
}

// CallbackRequest asks for a scheduled call back to the patient.
type CallbackRequest struct {
	SessionID     string
	ReferenceID   string
	Reason        Reason
	Urgency       Urgency
	Window        string
	PatientName   string
	Phone         string
	LeadType      string
	PreferredTime string
}

// Handle is returned by StartSession.
type Handle struct {
	SessionID   string    `json:"session_id"`
	ReferenceID string    `json:"reference_id"`
	State       State     `json:"state"`
	StartedAt   time.Time `json:"started_at"`
}

// SessionInfo summarizes a live or recently finalized session.
type SessionInfo struct {
	SessionID   string        `json:"session_id"`
	ReferenceID string        `json:"reference_id"`
	State       State         `json:"state"`
	StartedAt   time.Time     `json:"started_at"`
	Elapsed     time.Duration `json:"elapsed"`
	Complete    bool          `json:"complete"`
	Finalized   bool          `json:"finalized"`
	Escalation  *Decision     `json:"escalation,omitempty"`
}

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	Config     Config
	Persister  Persister
	Transferer Transferer
	Clock      func() time.Time // defaults to time.Now
	NewID      func() string    // session ids; defaults to uuid.NewString
}

// Engine runs intake sessions. Sessions share no mutable state; each has its
// own lock so one call's transitions are sequential while calls run in
// parallel.
type Engine struct {
	cfg        Config
	logger     *Logger
	transferer Transferer
	clock      func() time.Time
	newID      func() string

	mu       sync.RWMutex
	sessions map[string]*session
	refs     map[string]bool

	wg sync.WaitGroup
}

// NewEngine checks that every collaborator is present and starts the call
// logger.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.Persister == nil {
		return nil, fmt.Errorf("intake: engine: persister is required")
	}
	if opts.Transferer == nil {
		return nil, fmt.Errorf("intake: engine: transferer is required")
	}
	cfg := opts.Config.withDefaults()

	logger, err := NewLogger(opts.Persister, cfg.LogBuffer)
	if err != nil {
		return nil, fmt.Errorf("intake: engine: %w", err)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger.clock = clock
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Engine{
		cfg:        cfg,
		logger:     logger,
		transferer: opts.Transferer,
		clock:      clock,
		newID:      newID,
		sessions:   make(map[string]*session),
		refs:       make(map[string]bool),
	}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// StartSession creates a session in the greeting state and assigns its
// reference id.
func (e *Engine) StartSession() Handle {
	e.mu.Lock()
	defer e.mu.Unlock()

	ref := e.newReference()
	s := newSession(e.newID(), ref, e.cfg, e.clock)
	e.sessions[s.id] = s
	e.refs[ref] = true

	log.Printf("intake: session %s started [ref=%s]", s.id, ref)
	return Handle{SessionID: s.id, ReferenceID: ref, State: s.state, StartedAt: s.startedAt}
}

// NewReferenceID builds a short reference the agent can read aloud, e.g.
// "RX-4F1C9A02B7".
func NewReferenceID(prefix string) string {
	u := uuid.New()
	return fmt.Sprintf("%s-%X", prefix, u[:5])
}

// newReference returns a reference id not held by any session. Caller
// holds e.mu.
func (e *Engine) newReference() string {
	for {
		ref := NewReferenceID(e.cfg.ReferencePrefix)
		if !e.refs[ref] {
			return ref
		}
	}
}

func (e *Engine) lookup(id string) (*session, error) {
	e.mu.RLock()
	s, ok := e.sessions[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("intake: session %s: %w", id, ErrSessionNotFound)
	}
	return s, nil
}

// SubmitField validates and stores one field. Validation errors come back as
// *ValidationError with the state unchanged.
func (e *Engine) SubmitField(id string, field Field, raw string) (FieldResult, error) {
	s, err := e.lookup(id)
	if err != nil {
		return FieldResult{}, err
	}

	s.mu.Lock()
	res, err := s.submit(field, raw)
	snap := s.record.Snapshot()
	s.mu.Unlock()

	e.dispatch(s.id, snap, res.Escalation)
	return res, err
}

// Advance feeds one conversation event to the session and returns its new state.
func (e *Engine) Advance(id string, ev Event) (State, error) {
	s, err := e.lookup(id)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	state, d, err := s.advance(ev)
	snap := s.record.Snapshot()
	s.mu.Unlock()

	e.dispatch(s.id, snap, d)
	return state, err
}

// EscalationStatus evaluates the policy against the session as it is now.
func (e *Engine) EscalationStatus(id string) (Decision, error) {
	s, err := e.lookup(id)
	if err != nil {
		return Decision{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status(), nil
}

// Info returns a summary of one session.
func (e *Engine) Info(id string) (SessionInfo, error) {
	s, err := e.lookup(id)
	if err != nil {
		return SessionInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info(), nil
}

// EndSession seals the record, closes the session (escalated sessions stay
// escalated) and hands the call to the logger. Missing required fields fail
// with ErrMissingRequiredField and leave the session untouched.
func (e *Engine) EndSession(id string, duration time.Duration, transcript string) (LoggedCall, error) {
	s, err := e.lookup(id)
	if err != nil {
		return LoggedCall{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized() {
		return LoggedCall{}, fmt.Errorf("intake: session %s: end: %w", id, ErrAlreadyFinalized)
	}
	rec := s.record.Snapshot()
	if !rec.Complete() {
		return LoggedCall{}, fmt.Errorf("intake: session %s: end: %w", id, missingFields(rec))
	}

	m := s.mark()
	snap, err := s.seal(duration, transcript, "end_session")
	if err != nil {
		return LoggedCall{}, err
	}
	call, err := e.logger.Finalize(s.loggedCall(snap, ""))
	if err != nil {
		s.restore(m)
		return LoggedCall{}, err
	}
	log.Printf("intake: session %s ended [ref=%s state=%s status=%s]", id, call.ReferenceID, call.FinalState, call.Status)
	return call, nil
}

// Cancel handles a caller hanging up mid-call. The session is forced to a
// terminal state with whatever fields are populated; a record missing its
// required fields is logged as abandoned rather than discarded.
func (e *Engine) Cancel(id string, duration time.Duration, transcript string) (LoggedCall, error) {
	s, err := e.lookup(id)
	if err != nil {
		return LoggedCall{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return e.cancelLocked(s, duration, transcript)
}

func (e *Engine) cancelLocked(s *session, duration time.Duration, transcript string) (LoggedCall, error) {
	if s.finalized() {
		return LoggedCall{}, fmt.Errorf("intake: session %s: cancel: %w", s.id, ErrAlreadyFinalized)
	}
	m := s.mark()
	snap, err := s.seal(duration, transcript, "cancel")
	if err != nil {
		return LoggedCall{}, err
	}

	var call LoggedCall
	if snap.Complete() {
		call, err = e.logger.Finalize(s.loggedCall(snap, ""))
	} else {
		call, err = e.logger.Abandon(s.loggedCall(snap, CallAbandoned))
	}
	if err != nil {
		s.restore(m)
		return LoggedCall{}, err
	}
	log.Printf("intake: session %s cancelled [ref=%s state=%s status=%s]", s.id, call.ReferenceID, call.FinalState, call.Status)
	return call, nil
}

// Tick delivers elapsed_tick to every live session and returns how many were
// escalated by it.
func (e *Engine) Tick() int {
	escalated := 0
	for _, s := range e.snapshot() {
		s.mu.Lock()
		if s.finalized() || s.state.Terminal() {
			s.mu.Unlock()
			continue
		}
		_, d, _ := s.advance(EventElapsedTick)
		snap := s.record.Snapshot()
		s.mu.Unlock()

		if d != nil {
			escalated++
			e.dispatch(s.id, snap, d)
		}
	}
	return escalated
}

// Purge drops finalized sessions older than retention and cancels sessions
// idle for longer than retention, so a driver that disappears still gets
// its call logged. It returns the number of sessions removed.
func (e *Engine) Purge(retention time.Duration) int {
	now := e.clock()
	var stale []*session
	for _, s := range e.snapshot() {
		s.mu.Lock()
		if !s.finalized() && now.Sub(s.lastActivity) > retention {
			if _, err := e.cancelLocked(s, s.elapsed(), ""); err != nil {
				log.Printf("intake: reap idle session %s: %v", s.id, err)
			}
		}
		if s.finalized() && now.Sub(s.finalizedAt) > retention {
			stale = append(stale, s)
		}
		s.mu.Unlock()
	}

	if len(stale) == 0 {
		return 0
	}
	e.mu.Lock()
	for _, s := range stale {
		delete(e.sessions, s.id)
		delete(e.refs, s.record.ReferenceID())
	}
	e.mu.Unlock()
	return len(stale)
}

// Active lists sessions that have not been finalized, oldest first.
func (e *Engine) Active() []SessionInfo {
	var out []SessionInfo
	for _, s := range e.snapshot() {
		s.mu.Lock()
		if !s.finalized() {
			out = append(out, s.info())
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (e *Engine) snapshot() []*session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s)
	}
	return out
}

// dispatch runs the transfer collaborator for an escalation outside any
// session lock.
func (e *Engine) dispatch(sessionID string, snap Snapshot, d *Decision) {
	if d == nil {
		return
	}
	log.Printf("intake: session %s escalated [ref=%s action=%s reason=%s urgency=%s]",
		sessionID, snap.ReferenceID, d.Action, d.Reason, d.Urgency)

	e.wg.Add(1)
	go func(d Decision) {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.CollaboratorTimeout)
		defer cancel()

		var err error
		switch d.Action {
		case ActionTransfer:
			err = e.transferer.Transfer(ctx, TransferRequest{
				SessionID:   sessionID,
				ReferenceID: snap.ReferenceID,
				Reason:      d.Reason,
				Urgency:     d.Urgency,
				PatientName: snap.PatientName,
				Phone:       snap.Phone,
				LeadType:    snap.LeadType,
			})
		case ActionCallback:
			err = e.transferer.ScheduleCallback(ctx, CallbackRequest{
				SessionID:     sessionID,
				ReferenceID:   snap.ReferenceID,
				Reason:        d.Reason,
				Urgency:       d.Urgency,
				Window:        d.TargetWindow,
				PatientName:   snap.PatientName,
				Phone:         snap.Phone,
				LeadType:      snap.LeadType,
				PreferredTime: snap.CallbackTime,
			})
		}
		if err != nil {
			log.Printf("intake: session %s: %s (%s) failed: %v", sessionID, d.Action, d.Reason, err)
		}
	}(*d)
}

// Close waits for in-flight collaborator calls and drains the logger.
func (e *Engine) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("intake: engine close: %w", ctx.Err())
	}
	return e.logger.Close(ctx)
}

func missingFields(rec Snapshot) error {
	var missing []string
	if rec.Phone == "" {
		missing = append(missing, string(FieldPhone))
	}
	if rec.LeadType == "" {
		missing = append(missing, string(FieldLeadType))
	}
	return fmt.Errorf("%s: %w", strings.Join(missing, ", "), ErrMissingRequiredField)
}

// IsStructural reports whether err is fatal to the current operation rather
// than a field-level re-prompt.
func IsStructural(err error) bool {
	return errors.Is(err, ErrAlreadyFinalized) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrUrgencyDowngrade) ||
		errors.Is(err, ErrMissingRequiredField)
}
