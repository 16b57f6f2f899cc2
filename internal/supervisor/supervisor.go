// Package supervisor runs the periodic sweeps that keep the intake engine
// honest when no conversation event arrives: elapsed-time ticks, purging of
// finished or abandoned sessions, and the pending-callback digest.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/switchboard/internal/config"
)

// cronParser accepts standard 5-field expressions and descriptors such as
// "@every 15s" or "@hourly".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Engine is the part of the intake engine the supervisor drives.
type Engine interface {
	Tick() int
	Purge(retention time.Duration) int
}

// Digester posts the pending-callback digest.
type Digester interface {
	Digest(ctx context.Context) (int, error)
}

// Opts holds parameters for creating a Supervisor.
type Opts struct {
	Engine    Engine
	Digester  Digester // optional
	Schedules config.SupervisorConfig
	Retention time.Duration
	Out       io.Writer // defaults to io.Discard
}

// Supervisor schedules the background sweeps.
type Supervisor struct {
	engine    Engine
	digester  Digester
	schedules config.SupervisorConfig
	retention time.Duration
	out       io.Writer
}

// New validates the schedules and returns a Supervisor.
func New(opts Opts) (*Supervisor, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("supervisor: engine is required")
	}
	if opts.Retention <= 0 {
		return nil, fmt.Errorf("supervisor: retention must be positive")
	}
	for name, spec := range map[string]string{
		"tick":   opts.Schedules.TickSchedule,
		"purge":  opts.Schedules.PurgeSchedule,
		"digest": opts.Schedules.DigestSchedule,
	} {
		if name == "digest" && opts.Digester == nil {
			continue
		}
		if _, err := cronParser.Parse(spec); err != nil {
			return nil, fmt.Errorf("supervisor: %s schedule %q: %w", name, spec, err)
		}
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Supervisor{
		engine:    opts.Engine,
		digester:  opts.Digester,
		schedules: opts.Schedules,
		retention: opts.Retention,
		out:       out,
	}, nil
}

// Run starts the scheduler and blocks until ctx is cancelled. Running jobs
// finish before Run returns; a job still running when its next slot comes
// is skipped.
func (s *Supervisor) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	if _, err := c.AddFunc(s.schedules.TickSchedule, s.tick); err != nil {
		return fmt.Errorf("supervisor: schedule tick: %w", err)
	}
	if _, err := c.AddFunc(s.schedules.PurgeSchedule, s.purge); err != nil {
		return fmt.Errorf("supervisor: schedule purge: %w", err)
	}
	if s.digester != nil {
		if _, err := c.AddFunc(s.schedules.DigestSchedule, func() { s.digest(ctx) }); err != nil {
			return fmt.Errorf("supervisor: schedule digest: %w", err)
		}
	}

	fmt.Fprintf(s.out, "Supervisor starting (tick %s, purge %s)...\n",
		s.schedules.TickSchedule, s.schedules.PurgeSchedule)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	fmt.Fprintf(s.out, "Supervisor stopped.\n")
	return nil
}

func (s *Supervisor) tick() {
	if n := s.engine.Tick(); n > 0 {
		log.Printf("supervisor: tick escalated %d session(s)", n)
	}
}

func (s *Supervisor) purge() {
	if n := s.engine.Purge(s.retention); n > 0 {
		log.Printf("supervisor: purged %d session(s)", n)
	}
}

func (s *Supervisor) digest(ctx context.Context) {
	n, err := s.digester.Digest(ctx)
	if err != nil {
		log.Printf("supervisor: digest: %v", err)
		return
	}
	if n > 0 {
		log.Printf("supervisor: digest posted %d pending callback(s)", n)
	}
}
