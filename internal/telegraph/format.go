package telegraph

import (
	"fmt"
	"strings"

	"github.com/zulandar/switchboard/internal/intake"
	"github.com/zulandar/switchboard/internal/models"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "info":
		return ColorInfo
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// urgencySeverity returns the severity for a patient's urgency level.
func urgencySeverity(u intake.Urgency) string {
	switch u {
	case intake.UrgencyCritical, intake.UrgencyHigh:
		return "error"
	case intake.UrgencyMedium:
		return "warning"
	default:
		return "info"
	}
}

// reasonText returns a human-friendly description of an escalation reason.
func reasonText(r intake.Reason) string {
	switch r {
	case intake.ReasonEmergency:
		return "emergency"
	case intake.ReasonPatientRequest:
		return "patient asked for a person"
	case intake.ReasonComplexQuery:
		return "query could not be resolved"
	case intake.ReasonTimeout:
		return "call ran over time"
	default:
		return string(r)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func patientFields(ref, name, phone, leadType string) []Field {
	return []Field{
		{Name: "Reference", Value: ref, Short: true},
		{Name: "Patient", Value: orDash(name), Short: true},
		{Name: "Phone", Value: orDash(phone), Short: true},
		{Name: "Lead type", Value: orDash(leadType), Short: true},
	}
}

// FormatTransfer formats a live transfer request.
func FormatTransfer(req intake.TransferRequest) FormattedEvent {
	severity := urgencySeverity(req.Urgency)
	if req.Reason == intake.ReasonEmergency {
		severity = "error"
	}
	fields := patientFields(req.ReferenceID, req.PatientName, req.Phone, req.LeadType)
	if req.Urgency != intake.UrgencyUnset {
		fields = append(fields, Field{Name: "Urgency", Value: string(req.Urgency), Short: true})
	}
	return FormattedEvent{
		Title:    fmt.Sprintf("Transfer needed: %s", reasonText(req.Reason)),
		Body:     fmt.Sprintf("Caller on %s needs a human agent now.", req.ReferenceID),
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}
}

// FormatCallback formats a scheduled callback request.
func FormatCallback(req intake.CallbackRequest) FormattedEvent {
	severity := urgencySeverity(req.Urgency)
	if severity == "info" {
		severity = "warning"
	}

	var body []string
	body = append(body, fmt.Sprintf("Call back %s (%s).", orDash(req.Phone), reasonText(req.Reason)))
	if req.PreferredTime != "" {
		body = append(body, fmt.Sprintf("Patient prefers: %s", req.PreferredTime))
	}

	fields := patientFields(req.ReferenceID, req.PatientName, req.Phone, req.LeadType)
	if req.Window != "" {
		fields = append(fields, Field{Name: "Window", Value: req.Window, Short: true})
	}
	return FormattedEvent{
		Title:    fmt.Sprintf("Callback %s", orDash(req.Window)),
		Body:     strings.Join(body, "\n"),
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}
}

// FormatDigest summarizes callbacks still waiting for staff.
func FormatDigest(pending []models.CallEscalation) FormattedEvent {
	var lines []string
	failed := 0
	for _, e := range pending {
		line := fmt.Sprintf("• %s %s (%s) %s", e.ReferenceID, orDash(e.Phone), e.Reason, e.TargetWindow)
		if e.PreferredTime != "" {
			line += fmt.Sprintf(", prefers %s", e.PreferredTime)
		}
		if e.Status == "failed" {
			failed++
			line += " [alert failed]"
		}
		lines = append(lines, line)
	}

	severity := "info"
	if failed > 0 {
		severity = "warning"
	}
	fields := []Field{
		{Name: "Pending", Value: fmt.Sprintf("%d", len(pending)), Short: true},
	}
	if failed > 0 {
		fields = append(fields, Field{Name: "Alert failed", Value: fmt.Sprintf("%d", failed), Short: true})
	}
	return FormattedEvent{
		Title:    "Pending callbacks",
		Body:     strings.Join(lines, "\n"),
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}
}
