package connectivity

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type states struct {
	mu  sync.Mutex
	got []State
}

func (s *states) add(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, st)
}

func (s *states) values() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]State(nil), s.got...)
}

func TestMonitor_StartsOffline(t *testing.T) {
	m := New()
	defer m.Stop()
	if m.State() != Offline || m.Online() {
		t.Errorf("State() = %v, want offline", m.State())
	}
}

func TestMonitor_ReportNotifiesOncePerTransition(t *testing.T) {
	m := New()
	defer m.Stop()

	var rec states
	m.Subscribe(rec.add)

	for _, online := range []bool{false, true, true, true, false, false} {
		m.Report(online)
	}
	m.Drain()

	got := rec.values()
	if len(got) != 2 || got[0] != Online || got[1] != Offline {
		t.Errorf("notifications = %v, want [online offline]", got)
	}
}

func TestMonitor_ProbeFailureIsOffline(t *testing.T) {
	var fail atomic.Bool
	m := New(WithProber(ProberFunc(func(context.Context) error {
		if fail.Load() {
			return errors.New("network unreachable")
		}
		return nil
	})))
	defer m.Stop()

	ctx := context.Background()
	if got := m.Probe(ctx); got != Online {
		t.Errorf("Probe() = %v, want online", got)
	}
	fail.Store(true)
	if got := m.Probe(ctx); got != Offline {
		t.Errorf("Probe() after failure = %v, want offline", got)
	}
}

func TestMonitor_StartPolls(t *testing.T) {
	var calls atomic.Int32
	m := New(
		WithInterval(5*time.Millisecond),
		WithProber(ProberFunc(func(context.Context) error {
			calls.Add(1)
			return nil
		})),
	)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Start(context.Background()); !errors.Is(err, ErrStarted) {
		t.Errorf("second Start() error = %v, want ErrStarted", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	m.Stop()

	if calls.Load() < 3 {
		t.Errorf("prober called %d times, want at least 3", calls.Load())
	}
	if !m.Online() {
		t.Error("State() = offline after successful probes")
	}

	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != after {
		t.Error("prober still called after Stop()")
	}
}

func TestMonitor_StartWithoutProber(t *testing.T) {
	m := New()
	defer m.Stop()
	if err := m.Start(context.Background()); !errors.Is(err, ErrNoProber) {
		t.Errorf("Start() error = %v, want ErrNoProber", err)
	}
}

func TestMonitor_StopIgnoresReports(t *testing.T) {
	m := New()
	m.Stop()
	m.Report(true)
	if m.Online() {
		t.Error("Report() after Stop() changed state")
	}
}

func TestDialProber(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	p := NewDialProber(addr, time.Second)
	if err := p.Probe(context.Background()); err != nil {
		t.Errorf("Probe() with listener error = %v", err)
	}

	ln.Close()
	if err := p.Probe(context.Background()); err == nil {
		t.Error("Probe() after listener closed should return error")
	}
}

func TestState_String(t *testing.T) {
	if Online.String() != "online" || Offline.String() != "offline" {
		t.Errorf("String() = %q/%q", Online, Offline)
	}
	if StateOf(true) != Online || StateOf(false) != Offline {
		t.Error("StateOf() mismatch")
	}
}
