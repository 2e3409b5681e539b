package pipeline

import (
	"context"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// PressureLevel classifies how constrained the host is, driving which
// accumulation/processing strategy the orchestrator picks for the next
// chunk of work.
type PressureLevel int

const (
	PressureNormal PressureLevel = iota
	PressureElevated
	PressureCritical
)

func (l PressureLevel) String() string {
	switch l {
	case PressureElevated:
		return "elevated"
	case PressureCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Strategy is the action the orchestrator takes in response to a
// PressureAssessment, in increasing order of how aggressively it shields
// the host from further load.
type Strategy int

const (
	StrategyContinueWithWarning Strategy = iota
	StrategyStopEarly
	StrategyChunkedProcessing
	StrategyTempFileSpill
)

// Assessment captures one point-in-time read of host resource pressure.
type Assessment struct {
	CPUPercent    float64
	MemPercent    float64
	LoadPerCore   float64
	Level         PressureLevel
}

// Assess samples CPU, memory, and load average and classifies the current
// pressure level. Thresholds: elevated above 75% CPU or memory or a
// per-core load above 1.5; critical above 90% or a per-core load above 3.0.
func Assess(ctx context.Context) (Assessment, error) {
	var a Assessment

	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err == nil && len(cpuPercents) > 0 {
		a.CPUPercent = cpuPercents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err == nil {
		a.MemPercent = vm.UsedPercent
	}

	avg, err := load.AvgWithContext(ctx)
	numCPU, cerr := cpu.CountsWithContext(ctx, true)
	if err == nil && cerr == nil && numCPU > 0 {
		a.LoadPerCore = avg.Load1 / float64(numCPU)
	}

	switch {
	case a.CPUPercent >= 90 || a.MemPercent >= 90 || a.LoadPerCore >= 3.0:
		a.Level = PressureCritical
	case a.CPUPercent >= 75 || a.MemPercent >= 75 || a.LoadPerCore >= 1.5:
		a.Level = PressureElevated
	default:
		a.Level = PressureNormal
	}

	return a, nil
}

// StrategyFor maps a pressure level to the orchestrator action, escalating
// from a logged warning to bounding memory (chunking), and finally to
// spilling intermediate state to disk rather than risking an OOM.
func StrategyFor(level PressureLevel) Strategy {
	switch level {
	case PressureCritical:
		return StrategyTempFileSpill
	case PressureElevated:
		return StrategyChunkedProcessing
	default:
		return StrategyContinueWithWarning
	}
}
