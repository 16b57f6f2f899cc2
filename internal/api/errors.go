package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchboard/internal/calllog"
	"github.com/zulandar/switchboard/internal/intake"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string       `json:"error"`
	Code  string       `json:"code"`
	Field intake.Field `json:"field,omitempty"`
	// Result carries the field outcome on a rejected submission.
	Result *intake.FieldResult `json:"result,omitempty"`
}

// classify maps an error to an HTTP status and a stable code.
func classify(err error) (int, string) {
	var ve *intake.ValidationError
	switch {
	case errors.As(err, &ve):
		if errors.Is(err, intake.ErrUnknownEnum) {
			return http.StatusUnprocessableEntity, "unknown_enum"
		}
		return http.StatusUnprocessableEntity, "invalid_format"
	case errors.Is(err, intake.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, calllog.ErrCallNotFound):
		return http.StatusNotFound, "call_not_found"
	case errors.Is(err, calllog.ErrEscalationNotFound):
		return http.StatusNotFound, "escalation_not_found"
	case errors.Is(err, intake.ErrAlreadyFinalized):
		return http.StatusConflict, "already_finalized"
	case errors.Is(err, intake.ErrMissingRequiredField):
		return http.StatusConflict, "missing_required_field"
	case errors.Is(err, intake.ErrUrgencyDowngrade):
		return http.StatusConflict, "urgency_downgrade"
	case errors.Is(err, calllog.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, calllog.ErrDuplicateReference):
		return http.StatusConflict, "duplicate_reference"
	case errors.Is(err, calllog.ErrNoChanges),
		errors.Is(err, intake.ErrUnknownEnum), errors.Is(err, intake.ErrInvalidFormat):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	body := errorBody{Error: err.Error(), Code: code}
	var ve *intake.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "bad_request"})
}
