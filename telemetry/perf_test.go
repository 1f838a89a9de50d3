package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartStep()
		pc.StartPhase(PhaseThink)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhaseIntegrate)
		time.Sleep(200 * time.Microsecond)
		pc.EndStep()
	}

	stats := pc.Stats()

	if stats.AvgStepDuration <= 0 {
		t.Error("expected positive average step duration")
	}
	if stats.Steps != 5 {
		t.Errorf("Steps = %d, want 5", stats.Steps)
	}
	if _, ok := stats.PhaseAvg[PhaseThink]; !ok {
		t.Error("expected think phase to be tracked")
	}
	if _, ok := stats.PhaseAvg[PhaseIntegrate]; !ok {
		t.Error("expected integrate phase to be tracked")
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)

	for i := 0; i < 10; i++ {
		pc.StartStep()
		pc.StartPhase(PhaseCollide)
		pc.EndStep()
	}

	stats := pc.Stats()
	if stats.Steps != 10 {
		t.Errorf("Steps = %d, want 10", stats.Steps)
	}
	if stats.AvgStepDuration < 0 {
		t.Error("negative average step duration")
	}

	pc.Reset()
	if s := pc.Stats(); s.Steps != 0 || s.AvgStepDuration != 0 {
		t.Errorf("stats after Reset = %+v", s)
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartStep()
		pc.StartPhase("fast")
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase("slow")
		time.Sleep(2 * time.Millisecond)
		pc.EndStep()
	}

	stats := pc.Stats()
	fastPct := stats.PhasePct["fast"]
	slowPct := stats.PhasePct["slow"]

	if slowPct <= fastPct {
		t.Errorf("slow phase (%.1f%%) should exceed fast phase (%.1f%%)", slowPct, fastPct)
	}
	if total := fastPct + slowPct; total < 90 || total > 110 {
		t.Errorf("phase percentages sum to %.1f%%, want about 100%%", total)
	}
}

func TestPerfCollector_Empty(t *testing.T) {
	stats := NewPerfCollector(0).Stats()
	if stats.PhaseAvg == nil || stats.PhasePct == nil {
		t.Error("empty stats should have non-nil maps")
	}
	if stats.StepsPerSecond != 0 {
		t.Errorf("StepsPerSecond = %f", stats.StepsPerSecond)
	}
}
