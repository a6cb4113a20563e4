package sync

import (
	"context"
	"errors"
	"io"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/RipKord42/Hawk-TUI/internal/imap"
	"github.com/RipKord42/Hawk-TUI/internal/model"
)

// fakeIdleSession scripts one idle connection. Each IdleWait call
// returns the next burst; once bursts run out it blocks until the
// context is cancelled, or until Close when block is set.
type fakeIdleSession struct {
	connectErr error
	supports   bool
	bursts     [][]imap.Event
	calls      int

	// block makes IdleWait ignore cancellation, simulating a stuck
	// server. waiting is closed once the session enters that state.
	block   chan struct{}
	waiting chan struct{}

	closeOnce   gosync.Once
	waitingOnce gosync.Once
}

func newFakeIdleSession(bursts ...[]imap.Event) *fakeIdleSession {
	return &fakeIdleSession{supports: true, bursts: bursts}
}

func (s *fakeIdleSession) Connect(ctx context.Context) error { return s.connectErr }

func (s *fakeIdleSession) SupportsIdle() bool { return s.supports }

func (s *fakeIdleSession) IdleStart(ctx context.Context, folder string) error { return nil }

func (s *fakeIdleSession) IdleWait(ctx context.Context, timeout time.Duration) ([]imap.Event, error) {
	if s.calls < len(s.bursts) {
		burst := s.bursts[s.calls]
		s.calls++
		return burst, nil
	}
	if s.block != nil {
		s.waitingOnce.Do(func() { close(s.waiting) })
		<-s.block
		return nil, errors.New("connection closed")
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *fakeIdleSession) IdleDone() error { return nil }

func (s *fakeIdleSession) Close() error {
	if s.block != nil {
		s.closeOnce.Do(func() { close(s.block) })
	}
	return nil
}

func newTestMonitor(session IdleSession) (*Monitor, *atomic.Int32) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	monitor := NewMonitor(logger)
	dials := &atomic.Int32{}
	monitor.dial = func(model.Account, *logrus.Logger) IdleSession {
		dials.Add(1)
		return session
	}
	return monitor, dials
}

func TestMonitorPublishesEvents(t *testing.T) {
	session := newFakeIdleSession([]imap.Event{
		{Kind: imap.EventNewMail, Count: 42},
		{Kind: imap.EventExpunge},
	})
	monitor, _ := newTestMonitor(session)

	if err := monitor.Start([]model.Account{{Name: "work"}}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer monitor.Stop()

	if !monitor.Running() {
		t.Error("Running() = false after Start")
	}

	want := []MonitorEvent{
		{Account: "work", Folder: "INBOX", Kind: imap.EventNewMail, Count: 42},
		{Account: "work", Folder: "INBOX", Kind: imap.EventExpunge},
	}
	for i, wantEv := range want {
		select {
		case ev := <-monitor.Events():
			if ev != wantEv {
				t.Errorf("event %d = %+v, want %+v", i, ev, wantEv)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no event %d before timeout", i)
		}
	}
}

func TestMonitorStartTwice(t *testing.T) {
	session := newFakeIdleSession()
	monitor, _ := newTestMonitor(session)

	if err := monitor.Start(nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer monitor.Stop()

	if err := monitor.Start(nil); err == nil {
		t.Error("second Start() error = nil, want error")
	}
}

func TestMonitorExitsWithoutIdleSupport(t *testing.T) {
	session := newFakeIdleSession()
	session.supports = false
	monitor, dials := newTestMonitor(session)

	if err := monitor.Start([]model.Account{{Name: "work"}}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// The watcher gives up on its own rather than reconnecting.
	monitor.wg.Wait()
	if got := dials.Load(); got != 1 {
		t.Errorf("dial count = %d, want 1", got)
	}
	monitor.Stop()
}

func TestMonitorExitsOnAuthError(t *testing.T) {
	session := newFakeIdleSession()
	session.connectErr = &imap.AuthError{Account: "work", Message: "rejected"}
	monitor, dials := newTestMonitor(session)

	if err := monitor.Start([]model.Account{{Name: "work"}}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	monitor.wg.Wait()
	if got := dials.Load(); got != 1 {
		t.Errorf("dial count = %d, want 1 (auth failure is not retried)", got)
	}
	monitor.Stop()
}

func TestMonitorRetriesOnConnError(t *testing.T) {
	session := newFakeIdleSession()
	session.connectErr = &imap.ConnError{Account: "work", Err: errors.New("dial tcp: refused")}
	monitor, dials := newTestMonitor(session)

	if err := monitor.Start([]model.Account{{Name: "work"}}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// The watcher must still be alive, sitting in its reconnect delay.
	exited := make(chan struct{})
	go func() {
		monitor.wg.Wait()
		close(exited)
	}()
	select {
	case <-exited:
		t.Fatal("watcher exited after connection error, want reconnect")
	case <-time.After(100 * time.Millisecond):
	}
	if got := dials.Load(); got != 1 {
		t.Errorf("dial count = %d, want 1 before the delay elapses", got)
	}

	monitor.Stop()
	if monitor.Running() {
		t.Error("Running() = true after Stop")
	}
}

func TestMonitorStopIsClean(t *testing.T) {
	session := newFakeIdleSession()
	monitor, _ := newTestMonitor(session)

	if err := monitor.Start([]model.Account{{Name: "work"}}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	start := time.Now()
	monitor.Stop()
	if elapsed := time.Since(start); elapsed >= stopGrace {
		t.Errorf("Stop() took %v, want a clean shutdown before the grace period", elapsed)
	}

	// Stopping again is a no-op.
	monitor.Stop()
}

func TestMonitorStopForceClosesStuckSession(t *testing.T) {
	session := newFakeIdleSession()
	session.block = make(chan struct{})
	session.waiting = make(chan struct{})
	monitor, _ := newTestMonitor(session)

	if err := monitor.Start([]model.Account{{Name: "work"}}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-session.waiting

	// The session ignores cancellation, so Stop must force the close
	// after the grace period instead of hanging.
	start := time.Now()
	monitor.Stop()
	elapsed := time.Since(start)
	if elapsed < stopGrace {
		t.Errorf("Stop() took %v, want at least the %v grace period", elapsed, stopGrace)
	}
	if elapsed > stopGrace+2*time.Second {
		t.Errorf("Stop() took %v, want bounded shutdown", elapsed)
	}
}
