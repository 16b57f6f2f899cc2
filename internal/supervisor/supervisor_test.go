package supervisor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/switchboard/internal/config"
)

type fakeEngine struct {
	mu        sync.Mutex
	ticks     int
	purges    int
	retention time.Duration
	escalate  int
}

func (f *fakeEngine) Tick() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks++
	return f.escalate
}

func (f *fakeEngine) Purge(retention time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purges++
	f.retention = retention
	return 0
}

func (f *fakeEngine) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticks, f.purges
}

type fakeDigester struct {
	calls int
	err   error
}

func (f *fakeDigester) Digest(ctx context.Context) (int, error) {
	f.calls++
	return 2, f.err
}

var everySecond = config.SupervisorConfig{
	TickSchedule:   "@every 1s",
	PurgeSchedule:  "@every 1s",
	DigestSchedule: "0 * * * *",
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts Opts
		want string
	}{
		{"no engine", Opts{Retention: time.Minute, Schedules: everySecond}, "engine is required"},
		{"no retention", Opts{Engine: &fakeEngine{}, Schedules: everySecond}, "retention"},
		{"bad tick", Opts{Engine: &fakeEngine{}, Retention: time.Minute, Schedules: config.SupervisorConfig{
			TickSchedule: "every now and then", PurgeSchedule: "@every 1m",
		}}, "tick schedule"},
		{"bad digest", Opts{Engine: &fakeEngine{}, Digester: &fakeDigester{}, Retention: time.Minute, Schedules: config.SupervisorConfig{
			TickSchedule: "@every 1s", PurgeSchedule: "@every 1m", DigestSchedule: "61 * * * *",
		}}, "digest schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want to contain %q", err, tt.want)
			}
		})
	}
}

func TestNew_DigestScheduleIgnoredWithoutDigester(t *testing.T) {
	_, err := New(Opts{Engine: &fakeEngine{}, Retention: time.Minute, Schedules: config.SupervisorConfig{
		TickSchedule: "@every 1s", PurgeSchedule: "@every 1m", DigestSchedule: "bogus",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCronParser_AcceptsDescriptorsAndFields(t *testing.T) {
	for _, spec := range []string{"@every 15s", "@hourly", "0 * * * *", "*/30 9-17 * * 1-5"} {
		if _, err := cronParser.Parse(spec); err != nil {
			t.Errorf("Parse(%q): %v", spec, err)
		}
	}
	// Seconds field is not accepted.
	if _, err := cronParser.Parse("0 0 * * * *"); err == nil {
		t.Error("6-field spec should be rejected")
	}
}

func TestJobs(t *testing.T) {
	eng := &fakeEngine{escalate: 1}
	dig := &fakeDigester{err: errors.New("slack down")}
	s, err := New(Opts{Engine: eng, Digester: dig, Retention: 10 * time.Minute, Schedules: everySecond})
	if err != nil {
		t.Fatal(err)
	}

	s.tick()
	s.purge()
	s.digest(context.Background())

	ticks, purges := eng.counts()
	if ticks != 1 || purges != 1 {
		t.Errorf("ticks=%d purges=%d", ticks, purges)
	}
	if eng.retention != 10*time.Minute {
		t.Errorf("retention = %s", eng.retention)
	}
	if dig.calls != 1 {
		t.Errorf("digest calls = %d", dig.calls)
	}
}

func TestRun_SchedulesAndStops(t *testing.T) {
	eng := &fakeEngine{}
	var out bytes.Buffer
	s, err := New(Opts{Engine: eng, Retention: time.Minute, Schedules: everySecond, Out: &out})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		ticks, purges := eng.counts()
		if ticks > 0 && purges > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("jobs never ran")
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !strings.Contains(out.String(), "Supervisor stopped.") {
		t.Errorf("output = %q", out.String())
	}
}
