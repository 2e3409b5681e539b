package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestPressureLevelString(t *testing.T) {
	cases := map[PressureLevel]string{
		PressureNormal:   "normal",
		PressureElevated: "elevated",
		PressureCritical: "critical",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("PressureLevel(%d).String() = %q, want %q", level, got, want)
		}
	}
}

func TestStrategyForEscalates(t *testing.T) {
	cases := map[PressureLevel]Strategy{
		PressureNormal:   StrategyContinueWithWarning,
		PressureElevated: StrategyChunkedProcessing,
		PressureCritical: StrategyTempFileSpill,
	}
	for level, want := range cases {
		if got := StrategyFor(level); got != want {
			t.Errorf("StrategyFor(%s) = %v, want %v", level, got, want)
		}
	}
}

func TestAssessReturnsAPlausibleReading(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, err := Assess(ctx)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if a.CPUPercent < 0 || a.CPUPercent > 100 {
		t.Fatalf("expected CPUPercent in [0,100], got %f", a.CPUPercent)
	}
	if a.MemPercent < 0 || a.MemPercent > 100 {
		t.Fatalf("expected MemPercent in [0,100], got %f", a.MemPercent)
	}
	switch a.Level {
	case PressureNormal, PressureElevated, PressureCritical:
	default:
		t.Fatalf("unexpected pressure level %v", a.Level)
	}
}
