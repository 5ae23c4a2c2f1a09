// Package connectivity tracks whether the network is reachable.
//
// A Monitor starts Offline and only reports Online after a successful probe
// or an explicit report. Probe failures of any kind count as Offline.
package connectivity

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tartil-app/offlinecache/internal/notify"
)

// DefaultInterval is the polling interval used when none is configured.
const DefaultInterval = 10 * time.Second

// ErrNoProber is returned by Start when the monitor has no prober.
var ErrNoProber = errors.New("connectivity: no prober configured")

// ErrStarted is returned by Start when polling is already running.
var ErrStarted = errors.New("connectivity: monitor already started")

// State is the reachability of the network.
type State int

const (
	Offline State = iota
	Online
)

func (s State) String() string {
	if s == Online {
		return "online"
	}
	return "offline"
}

// StateOf converts a flag to a State.
func StateOf(online bool) State {
	if online {
		return Online
	}
	return Offline
}

// Prober checks reachability. A nil error means online.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// DialProber reports online when a TCP connection to Address succeeds.
type DialProber struct {
	Address string
	Timeout time.Duration
}

// NewDialProber returns a prober for address ("host:port").
func NewDialProber(address string, timeout time.Duration) *DialProber {
	return &DialProber{Address: address, Timeout: timeout}
}

func (p *DialProber) Probe(ctx context.Context) error {
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithProber sets the prober used by Start and Probe.
func WithProber(p Prober) Option {
	return func(m *Monitor) { m.prober = p }
}

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// Monitor holds the process-wide connectivity state.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   *zap.Logger
	state    *notify.Broadcaster[State]

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

// New creates a monitor in the Offline state.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		interval: DefaultInterval,
		logger:   zap.NewNop(),
		state:    notify.New(Offline),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Monitor) State() State {
	return m.state.Value()
}

// Online reports whether the current state is Online.
func (m *Monitor) Online() bool {
	return m.State() == Online
}

// Report sets the state from an external signal.
// Repeating the current state notifies nobody.
func (m *Monitor) Report(online bool) {
	s := StateOf(online)
	if m.state.Publish(s) {
		m.logger.Info("connectivity changed", zap.Stringer("state", s))
	}
}

// Subscribe registers fn for state transitions. Delivery is asynchronous.
func (m *Monitor) Subscribe(fn func(State)) (unsubscribe func()) {
	return m.state.Subscribe(fn)
}

// Probe runs the prober once and records the result.
func (m *Monitor) Probe(ctx context.Context) State {
	if m.prober == nil {
		return m.State()
	}
	ctx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	err := m.prober.Probe(ctx)
	if err != nil {
		m.logger.Debug("probe failed", zap.Error(err))
	}
	m.Report(err == nil)
	return m.State()
}

// Start probes immediately and then every interval until ctx is done or
// Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	if m.prober == nil {
		return ErrNoProber
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil || m.stopped {
		return ErrStarted
	}
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.Probe(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Probe(ctx)
			}
		}
	}()
	return nil
}

// Drain waits until queued notifications have been delivered.
func (m *Monitor) Drain() {
	m.state.Drain()
}

// Stop ends polling and notification delivery. Further reports are ignored.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.stopped = true
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.state.Close()
}
