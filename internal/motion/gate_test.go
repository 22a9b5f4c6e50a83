package motion

import (
	"testing"
	"time"

	"backend-trailtrace/internal/track"
)

var base = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func slowFix(offset time.Duration, speed float64) track.Fix {
	return track.Fix{
		Lat:        37.7749,
		Lng:        -122.4194,
		AccuracyM:  5,
		SpeedMps:   &speed,
		RecordedAt: base.Add(offset),
		Source:     track.SourceGPS,
	}
}

func startedGate(t *testing.T, cfg Config) (*Gate, *[]Signal) {
	t.Helper()
	// Ticks are driven by hand in these tests.
	cfg.TickInterval = time.Hour
	g := NewGate(cfg)
	var signals []Signal
	g.Subscribe(func(s Signal) { signals = append(signals, s) })
	g.Start()
	t.Cleanup(g.Stop)
	return g, &signals
}

func TestGateAutoPauseFiresOnce(t *testing.T) {
	g, signals := startedGate(t, DefaultConfig())

	for i := 0; i <= 25; i++ {
		g.Observe(slowFix(time.Duration(i)*time.Second, 0.1))
	}
	g.tick(base.Add(25 * time.Second))

	if len(*signals) != 1 {
		t.Fatalf("expected exactly one signal, got %d", len(*signals))
	}
	sig := (*signals)[0]
	if sig.Kind != SignalPause || !sig.Auto {
		t.Fatalf("unexpected signal: %+v", sig)
	}
	if sig.BelowFor < 20*time.Second {
		t.Fatalf("below duration too short: %v", sig.BelowFor)
	}
	if sig.SpeedMps != 0.1 {
		t.Fatalf("expected last known speed, got %v", sig.SpeedMps)
	}

	// Re-armed: an immediate second tick must not fire again.
	g.tick(base.Add(26 * time.Second))
	if len(*signals) != 1 {
		t.Fatalf("pause signal repeated")
	}
	if g.State() != StateArmed {
		t.Fatalf("expected re-armed state, got %v", g.State())
	}
}

func TestGateAboveThresholdResetsTimer(t *testing.T) {
	g, signals := startedGate(t, DefaultConfig())

	g.Observe(slowFix(0, 0.1))
	g.Observe(slowFix(10*time.Second, 0.1))
	g.Observe(slowFix(15*time.Second, 2.0)) // motion regained before threshold
	g.tick(base.Add(21 * time.Second))

	if len(*signals) != 0 {
		t.Fatalf("signal emitted despite reset: %+v", *signals)
	}

	// Motion lost again: counting restarts from the new first slow fix.
	g.Observe(slowFix(30*time.Second, 0.1))
	g.tick(base.Add(45 * time.Second))
	g.tick(base.Add(51 * time.Second))
	if len(*signals) != 1 {
		t.Fatalf("expected one signal after second episode, got %d", len(*signals))
	}
	if got := (*signals)[0].BelowFor; got < 20*time.Second || got > 22*time.Second {
		t.Fatalf("below duration should restart from regain: %v", got)
	}
}

func TestGateMissingSpeedCountsAsStationary(t *testing.T) {
	g, signals := startedGate(t, DefaultConfig())

	fix := slowFix(0, 0)
	fix.SpeedMps = nil
	g.Observe(fix)
	if g.State() != StateBelow {
		t.Fatalf("expected below-threshold state, got %v", g.State())
	}
	g.tick(base.Add(30 * time.Second))
	if len(*signals) != 1 {
		t.Fatalf("expected signal, got %d", len(*signals))
	}
}

func TestGateDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	g, signals := startedGate(t, cfg)

	g.Observe(slowFix(0, 0.1))
	g.tick(base.Add(time.Minute))
	if len(*signals) != 0 {
		t.Fatalf("disabled gate emitted a signal")
	}
	if g.State() != StateArmed {
		t.Fatalf("disabled gate should stay armed, got %v", g.State())
	}
}

func TestGateIdleIgnoresFixes(t *testing.T) {
	g := NewGate(DefaultConfig())
	var signals []Signal
	g.Subscribe(func(s Signal) { signals = append(signals, s) })

	g.Observe(slowFix(0, 0.1))
	g.tick(base.Add(time.Minute))
	if g.State() != StateIdle || len(signals) != 0 {
		t.Fatalf("idle gate reacted to fixes")
	}
}

func TestGateStopCancelsTicker(t *testing.T) {
	g := NewGate(DefaultConfig())
	g.Start()
	g.Observe(slowFix(0, 0.1))
	g.Stop()

	if g.done != nil {
		t.Fatalf("stop left the ticker channel open")
	}
	if g.State() != StateIdle {
		t.Fatalf("expected idle after stop, got %v", g.State())
	}
	// Stop is idempotent.
	g.Stop()

	var signals []Signal
	g.Subscribe(func(s Signal) { signals = append(signals, s) })
	g.tick(base.Add(time.Minute))
	if len(signals) != 0 {
		t.Fatalf("stopped gate emitted a signal")
	}
}

func TestGateManualTriggers(t *testing.T) {
	g, signals := startedGate(t, DefaultConfig())

	g.TriggerPause()
	g.TriggerResume()

	if len(*signals) != 2 {
		t.Fatalf("expected two signals, got %d", len(*signals))
	}
	if (*signals)[0].Kind != SignalPause || (*signals)[0].Auto {
		t.Fatalf("manual pause mislabeled: %+v", (*signals)[0])
	}
	if (*signals)[1].Kind != SignalResume {
		t.Fatalf("expected resume: %+v", (*signals)[1])
	}
}

func TestGateBackgroundTick(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeThreshold = 30 * time.Millisecond
	cfg.TickInterval = 10 * time.Millisecond
	g := NewGate(cfg)

	signals := make(chan Signal, 1)
	g.Subscribe(func(s Signal) {
		select {
		case signals <- s:
		default:
		}
	})
	g.Start()
	defer g.Stop()

	g.Observe(track.Fix{SpeedMps: nil, RecordedAt: time.Now()})

	select {
	case sig := <-signals:
		if sig.Kind != SignalPause || !sig.Auto {
			t.Fatalf("unexpected signal: %+v", sig)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("background tick never fired")
	}
}
