// Package api exposes the intake engine and the call log over HTTP for the
// voice agent that drives each conversation.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchboard/internal/calllog"
	"github.com/zulandar/switchboard/internal/intake"
	"github.com/zulandar/switchboard/internal/models"
)

// Engine is the intake engine surface the API drives.
type Engine interface {
	StartSession() intake.Handle
	SubmitField(id string, field intake.Field, raw string) (intake.FieldResult, error)
	Advance(id string, ev intake.Event) (intake.State, error)
	EscalationStatus(id string) (intake.Decision, error)
	EndSession(id string, duration time.Duration, transcript string) (intake.LoggedCall, error)
	Cancel(id string, duration time.Duration, transcript string) (intake.LoggedCall, error)
	Info(id string) (intake.SessionInfo, error)
	Active() []intake.SessionInfo
}

// CallLog is the call-log surface the API reads and corrects.
type CallLog interface {
	List(ctx context.Context, f calllog.Filter) ([]models.CallRecord, error)
	Get(ctx context.Context, ref string) (*models.CallRecord, error)
	Correct(ctx context.Context, ref string, changes map[intake.Field]string) (*models.CallRecord, error)
	PendingCallbacks(ctx context.Context) ([]models.CallEscalation, error)
	CompleteCallback(ctx context.Context, id uint) error
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Engine  Engine
	CallLog CallLog
	Port    int
	Out     io.Writer
}

// NewRouter builds the gin router with every route registered.
func NewRouter(eng Engine, calls CallLog) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, eng, calls)
	return router
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Engine == nil {
		return fmt.Errorf("api: engine is required")
	}
	if opts.CallLog == nil {
		return fmt.Errorf("api: call log is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           NewRouter(opts.Engine, opts.CallLog),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
