package motion

import (
	"sync"
	"time"

	"backend-trailtrace/internal/track"
)

type State int

const (
	StateIdle State = iota
	StateArmed
	StateBelow
)

type SignalKind string

const (
	SignalPause  SignalKind = "pause"
	SignalResume SignalKind = "resume"
)

// Signal is a one-shot pause/resume notification. The gate never holds a
// paused state itself; the consuming session owns pause bookkeeping so it
// can tell manual and automatic pauses apart.
type Signal struct {
	Kind     SignalKind    `json:"kind"`
	Auto     bool          `json:"auto"`
	SpeedMps float64       `json:"speed_mps"`
	BelowFor time.Duration `json:"below_for"`
	At       time.Time     `json:"at"`
}

type Listener func(Signal)

type Config struct {
	SpeedThresholdMps float64
	TimeThreshold     time.Duration
	TickInterval      time.Duration
	Enabled           bool
}

func DefaultConfig() Config {
	return Config{
		SpeedThresholdMps: 0.5,
		TimeThreshold:     20 * time.Second,
		TickInterval:      time.Second,
		Enabled:           true,
	}
}

// Gate watches the fix stream for sustained sub-threshold speed and emits
// auto-pause signals.
type Gate struct {
	mu        sync.Mutex
	cfg       Config
	state     State
	since     time.Time
	samples   int
	lastSpeed float64
	listeners []Listener
	done      chan struct{}
	now       func() time.Time
}

func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg, now: time.Now}
}

func (g *Gate) Subscribe(l Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, l)
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Start arms the gate and begins the background tick. Calling Start on a
// running gate restarts its timers.
func (g *Gate) Start() {
	g.mu.Lock()
	if g.done != nil {
		close(g.done)
	}
	g.state = StateArmed
	g.since = time.Time{}
	g.samples = 0
	g.done = make(chan struct{})
	done := g.done
	g.mu.Unlock()

	go g.run(done)
}

// Stop idles the gate and cancels the ticker goroutine. Leaving the ticker
// running across session boundaries is a resource leak.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done != nil {
		close(g.done)
		g.done = nil
	}
	g.state = StateIdle
	g.since = time.Time{}
	g.samples = 0
}

func (g *Gate) run(done <-chan struct{}) {
	ticker := time.NewTicker(g.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			g.tick(g.now())
		}
	}
}

// Observe feeds one fix through the state machine. A missing speed reading
// counts as stationary.
func (g *Gate) Observe(fix track.Fix) {
	speed := 0.0
	if fix.SpeedMps != nil {
		speed = *fix.SpeedMps
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateIdle || !g.cfg.Enabled {
		return
	}

	g.lastSpeed = speed
	if speed < g.cfg.SpeedThresholdMps {
		if g.state != StateBelow {
			g.state = StateBelow
			g.since = fix.RecordedAt
			g.samples = 0
		}
		g.samples++
		return
	}
	g.state = StateArmed
	g.since = time.Time{}
	g.samples = 0
}

func (g *Gate) tick(now time.Time) {
	g.mu.Lock()
	if g.state != StateBelow || now.Sub(g.since) < g.cfg.TimeThreshold {
		g.mu.Unlock()
		return
	}

	sig := Signal{
		Kind:     SignalPause,
		Auto:     true,
		SpeedMps: g.lastSpeed,
		BelowFor: now.Sub(g.since),
		At:       now,
	}
	// Re-arm so the pause fires exactly once per below-threshold episode.
	g.state = StateArmed
	g.since = time.Time{}
	g.samples = 0
	listeners := append([]Listener(nil), g.listeners...)
	g.mu.Unlock()

	for _, l := range listeners {
		l(sig)
	}
}

// TriggerPause emits a manual pause signal regardless of the speed and
// timing conditions.
func (g *Gate) TriggerPause() {
	g.emitManual(SignalPause)
}

func (g *Gate) TriggerResume() {
	g.emitManual(SignalResume)
}

func (g *Gate) emitManual(kind SignalKind) {
	g.mu.Lock()
	sig := Signal{Kind: kind, SpeedMps: g.lastSpeed, At: g.now()}
	listeners := append([]Listener(nil), g.listeners...)
	g.mu.Unlock()

	for _, l := range listeners {
		l(sig)
	}
}
