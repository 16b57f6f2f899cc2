package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchboard/internal/calllog"
	"github.com/zulandar/switchboard/internal/intake"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, eng Engine, calls CallLog) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "active_sessions": len(eng.Active())})
	})

	s := router.Group("/api/sessions")
	s.POST("", handleStartSession(eng))
	s.GET("", handleListSessions(eng))
	s.GET("/:id", handleSessionInfo(eng))
	s.POST("/:id/fields", handleSubmitField(eng))
	s.POST("/:id/events", handleAdvance(eng))
	s.GET("/:id/escalation", handleEscalationStatus(eng))
	s.POST("/:id/end", handleEndSession(eng))
	s.POST("/:id/cancel", handleCancel(eng))

	router.GET("/api/calls", handleListCalls(calls))
	router.GET("/api/calls/:ref", handleGetCall(calls))
	router.POST("/api/calls/:ref/corrections", handleCorrectCall(calls))

	router.GET("/api/callbacks", handlePendingCallbacks(calls))
	router.POST("/api/callbacks/:id/complete", handleCompleteCallback(calls))
}

type fieldRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

type eventRequest struct {
	Event string `json:"event" binding:"required"`
}

type endRequest struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Transcript      string  `json:"transcript"`
}

type correctionRequest struct {
	Changes map[string]string `json:"changes" binding:"required"`
}

func handleStartSession(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusCreated, eng.StartSession())
	}
}

func handleListSessions(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions := eng.Active()
		if sessions == nil {
			sessions = []intake.SessionInfo{}
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	}
}

func handleSessionInfo(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := eng.Info(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func handleSubmitField(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req fieldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := eng.SubmitField(c.Param("id"), intake.Field(req.Field), req.Value)
		if err != nil {
			if intake.IsValidationError(err) {
				status, code := classify(err)
				var ve *intake.ValidationError
				errors.As(err, &ve)
				c.JSON(status, errorBody{Error: err.Error(), Code: code, Field: ve.Field, Result: &res})
				return
			}
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleAdvance(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req eventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		ev, err := intake.ParseEvent(req.Event)
		if err != nil {
			badRequest(c, err)
			return
		}
		state, err := eng.Advance(c.Param("id"), ev)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": state})
	}
}

func handleEscalationStatus(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := eng.EscalationStatus(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

// bindEnd reads the optional end/cancel body.
func bindEnd(c *gin.Context) (endRequest, bool) {
	var req endRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return req, false
	}
	if req.DurationSeconds < 0 {
		badRequest(c, errors.New("duration_seconds must not be negative"))
		return req, false
	}
	return req, true
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func handleEndSession(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindEnd(c)
		if !ok {
			return
		}
		call, err := eng.EndSession(c.Param("id"), seconds(req.DurationSeconds), req.Transcript)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, call)
	}
}

func handleCancel(eng Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindEnd(c)
		if !ok {
			return
		}
		call, err := eng.Cancel(c.Param("id"), seconds(req.DurationSeconds), req.Transcript)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, call)
	}
}

func handleListCalls(calls CallLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := calllog.Filter{
			Status:   c.Query("status"),
			LeadType: c.Query("lead_type"),
			Urgency:  c.Query("urgency"),
			Phone:    c.Query("phone"),
		}
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				badRequest(c, errors.New("limit must be a non-negative integer"))
				return
			}
			f.Limit = n
		}
		if v := c.Query("since"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				badRequest(c, errors.New("since must be RFC 3339"))
				return
			}
			f.Since = t
		}
		out, err := calls.List(c.Request.Context(), f)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"calls": out})
	}
}

func handleGetCall(calls CallLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := calls.Get(c.Request.Context(), c.Param("ref"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

func handleCorrectCall(calls CallLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req correctionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		changes := make(map[intake.Field]string, len(req.Changes))
		for k, v := range req.Changes {
			changes[intake.Field(k)] = v
		}
		rec, err := calls.Correct(c.Request.Context(), c.Param("ref"), changes)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, rec)
	}
}

func handlePendingCallbacks(calls CallLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := calls.PendingCallbacks(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"callbacks": out})
	}
}

func handleCompleteCallback(calls CallLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			badRequest(c, errors.New("callback id must be numeric"))
			return
		}
		if err := calls.CompleteCallback(c.Request.Context(), uint(id)); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
