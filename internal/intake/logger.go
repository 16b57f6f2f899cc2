package intake

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// persistTimeout bounds a single sink write.
const persistTimeout = 30 * time.Second

// CallStatus is how a logged call ended.
type CallStatus string

const (
	CallCompleted CallStatus = "completed"
	CallEscalated CallStatus = "escalated"
	CallAbandoned CallStatus = "abandoned"
)

// LoggedCall is the sealed, immutable record of one call.
type LoggedCall struct {
	ReferenceID string       `json:"reference_id"`
	SessionID   string       `json:"session_id"`
	Status      CallStatus   `json:"status"`
	FinalState  State        `json:"final_state"`
	Record      Snapshot     `json:"record"`
	Escalation  *Decision    `json:"escalation,omitempty"`
	Transitions []Transition `json:"transitions"`
	Supersedes  string       `json:"supersedes,omitempty"` // reference id this call corrects, if any
	StartedAt   time.Time    `json:"started_at"`
	LoggedAt    time.Time    `json:"logged_at"`
}

// Persister is the external persistence sink. Implementations own their
// retry semantics.
type Persister interface {
	Persist(ctx context.Context, call LoggedCall) error
}

// Logger validates finished calls and emits each one to the sink exactly
// once, in the order Finalize was called.
type Logger struct {
	sink  Persister
	queue chan LoggedCall
	done  chan struct{}
	clock func() time.Time

	mu      sync.Mutex
	emitted map[string]bool
	closed  bool
}

// NewLogger starts the background writer. Close drains it.
func NewLogger(sink Persister, buffer int) (*Logger, error) {
	if sink == nil {
		return nil, fmt.Errorf("intake: logger: persister is required")
	}
	if buffer <= 0 {
		buffer = defaultLogBuffer
	}
	l := &Logger{
		sink:    sink,
		queue:   make(chan LoggedCall, buffer),
		done:    make(chan struct{}),
		clock:   time.Now,
		emitted: make(map[string]bool),
	}
	go l.run()
	return l, nil
}

// Finalize re-validates the required fields and queues the call. It fails
// with ErrMissingRequiredField when phone or lead type is absent and with
// ErrAlreadyFinalized when the reference id was already emitted.
func (l *Logger) Finalize(call LoggedCall) (LoggedCall, error) {
	if call.Record.Phone == "" {
		return LoggedCall{}, fmt.Errorf("intake: log %s: patient_phone: %w", call.ReferenceID, ErrMissingRequiredField)
	}
	if call.Record.LeadType == "" {
		return LoggedCall{}, fmt.Errorf("intake: log %s: lead_type: %w", call.ReferenceID, ErrMissingRequiredField)
	}
	if call.Status == "" {
		call.Status = CallCompleted
		if call.FinalState == StateEscalated {
			call.Status = CallEscalated
		}
	}
	return l.emit(call)
}

// Abandon queues a partial call for a caller who hung up before the
// required fields were captured. The record is kept, flagged abandoned.
func (l *Logger) Abandon(call LoggedCall) (LoggedCall, error) {
	call.Status = CallAbandoned
	return l.emit(call)
}

func (l *Logger) emit(call LoggedCall) (LoggedCall, error) {
	if call.ReferenceID == "" {
		return LoggedCall{}, fmt.Errorf("intake: log: reference id: %w", ErrMissingRequiredField)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return LoggedCall{}, errors.New("intake: logger closed")
	}
	if l.emitted[call.ReferenceID] {
		return LoggedCall{}, fmt.Errorf("intake: log %s: %w", call.ReferenceID, ErrAlreadyFinalized)
	}
	l.emitted[call.ReferenceID] = true
	call.LoggedAt = l.clock()

	// Enqueue under the lock so queue order matches finalize order.
	l.queue <- call
	return call, nil
}

func (l *Logger) run() {
	defer close(l.done)
	for call := range l.queue {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := l.sink.Persist(ctx, call); err != nil {
			log.Printf("intake: persist call %s: %v", call.ReferenceID, err)
		}
		cancel()
	}
}

// Close stops accepting calls and waits for queued calls to reach the sink.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("intake: logger drain: %w", ctx.Err())
	}
}
