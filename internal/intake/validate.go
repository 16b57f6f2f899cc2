package intake

import (
	"regexp"
	"slices"
	"strings"
)

// Field names a value captured during intake. The names match the keys the
// conversation driver's tool calls use.
type Field string

const (
	FieldPatientName      Field = "patient_name"
	FieldOrigin           Field = "origin"
	FieldLanguage         Field = "language"
	FieldPhone            Field = "patient_phone"
	FieldLeadType         Field = "lead_type"
	FieldUrgency          Field = "urgency_level"
	FieldCallbackTime     Field = "preferred_callback_time"
	FieldCallbackDeclined Field = "callback_declined"
	FieldNotes            Field = "additional_notes"
)

// Fields lists every field SetField accepts, in collection order.
var Fields = []Field{
	FieldLanguage,
	FieldPatientName,
	FieldOrigin,
	FieldLeadType,
	FieldPhone,
	FieldUrgency,
	FieldCallbackTime,
	FieldCallbackDeclined,
	FieldNotes,
}

// Urgency is the severity classification that drives escalation priority.
type Urgency string

const (
	UrgencyUnset    Urgency = ""
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// UrgencyLevels is the allowed urgency set, lowest first.
var UrgencyLevels = []string{"low", "medium", "high", "critical"}

// Rank orders urgency levels; unset ranks below low.
func (u Urgency) Rank() int {
	return slices.Index(UrgencyLevels, string(u)) + 1
}

// DefaultLeadTypes is the lead classification used when configuration does
// not override it.
var DefaultLeadTypes = []string{
	"consultation_booking",
	"lab_booking",
	"medicine_inquiry",
	"general_inquiry",
	"emergency_consultation",
	"specialist_referral",
	"prescription_refill",
	"test_results_inquiry",
	"appointment_reschedule",
	"insurance_inquiry",
	"billing_inquiry",
	"feedback_complaint",
	"other",
}

var declineValues = []string{"true", "false", "yes", "no"}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// ValidatePhone accepts an optional leading "+" followed by 10 to 15 digits
// and returns the normalized number. Separators and whitespace are rejected,
// so the accepted input is already normalized.
func ValidatePhone(raw string) (string, error) {
	if !phonePattern.MatchString(raw) {
		return "", &ValidationError{Field: FieldPhone, Value: raw, Err: ErrInvalidFormat}
	}
	return raw, nil
}

// ValidateEnum returns value if it is a member of allowed. An empty value is
// ErrInvalidFormat, never "not provided".
func ValidateEnum(value string, allowed []string) (string, error) {
	return validateEnum("", value, allowed)
}

func validateEnum(field Field, value string, allowed []string) (string, error) {
	if value == "" {
		return "", &ValidationError{Field: field, Value: value, Err: ErrInvalidFormat}
	}
	if !slices.Contains(allowed, value) {
		return "", &ValidationError{Field: field, Value: value, Err: ErrUnknownEnum}
	}
	return value, nil
}

// validateText accepts any non-blank free text.
func validateText(field Field, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", &ValidationError{Field: field, Value: value, Err: ErrInvalidFormat}
	}
	return value, nil
}

// ReadBack spells a phone number digit by digit for the caller to confirm,
// e.g. "+919876543210" -> "+ 9 1 9 8 7 6 5 4 3 2 1 0".
func ReadBack(phone string) string {
	parts := make([]string, 0, len(phone))
	for _, r := range phone {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, " ")
}
