package metrics

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostSampler reads real host CPU/memory utilization, the way
// beemesh-beemesh's main loop samples gopsutil's cpu.Percent and
// mem.VirtualMemory to populate its HostMetrics before scheduling.
//
// A kernel wired with a HostSampler overwrites the cpu_usage/memory_usage
// fields of its PerformanceMetrics from real host state on UpdateMetrics;
// without one, those fields are caller-supplied (useful for deterministic
// tests).
type HostSampler interface {
	Sample() (cpuUsage, memUsage float64, err error)
}

// GopsutilSampler is the default HostSampler implementation.
type GopsutilSampler struct{}

// NewGopsutilSampler constructs a GopsutilSampler.
func NewGopsutilSampler() *GopsutilSampler { return &GopsutilSampler{} }

// Sample returns cpu usage and memory usage as fractions in [0, 1].
func (GopsutilSampler) Sample() (float64, float64, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, 0, err
	}
	cpuUsage := 0.0
	if len(percents) > 0 {
		cpuUsage = percents[0] / 100.0
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	memUsage := 0.0
	if vm != nil && vm.Total > 0 {
		memUsage = float64(vm.Used) / float64(vm.Total)
	}

	return clamp01(cpuUsage), clamp01(memUsage), nil
}
