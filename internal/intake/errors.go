// Package intake implements the patient-intake state machine: field
// validation, the per-call intake record, the escalation policy, and the
// call logger that seals a finished call exactly once.
package intake

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat reports a value whose shape is wrong (phone, empty string).
	ErrInvalidFormat = errors.New("invalid format")
	// ErrUnknownEnum reports a value outside its allowed set.
	ErrUnknownEnum = errors.New("unknown enum value")
	// ErrMissingRequiredField reports a finalize attempt before phone and lead type are set.
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrAlreadyFinalized reports a double finalize or a mutation after finalize.
	ErrAlreadyFinalized = errors.New("already finalized")
	// ErrSessionNotFound reports an operation on an unknown or purged session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUrgencyDowngrade reports an attempt to lower the urgency of an escalated call.
	ErrUrgencyDowngrade = errors.New("urgency cannot be lowered after escalation")
)

// ValidationError is a field-level rejection. The conversation driver relays
// it as a re-prompt; it never advances state.
type ValidationError struct {
	Field Field
	Value string
	Err   error // ErrInvalidFormat or ErrUnknownEnum
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("intake: %q: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("intake: %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidationError reports whether err is a recoverable field-level error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
