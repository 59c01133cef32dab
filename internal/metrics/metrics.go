// Package metrics defines the per-kernel observation types (spec.md §3)
// and the projections derived from them, plus an optional host sampler
// and Prometheus exposition surface.
package metrics

import (
	"sync"
	"time"

	"kernelforge/internal/types"
)

// PerformanceMetrics is a per-kernel observation, overwritten wholesale
// by UpdateMetrics and read only via a snapshot copy.
type PerformanceMetrics struct {
	CPUUsage             float64
	MemoryUsage          float64
	PowerConsumption     float64
	Temperature          float64
	InstructionsPerSecond float64
	EfficiencyScore      float64
	Timestamp            time.Time
}

// Store owns one kernel's PerformanceMetrics under a read-copy lock, as
// required by spec.md §5's shared-resource policy.
type Store struct {
	mu sync.RWMutex
	pm PerformanceMetrics
}

// NewStore creates a Store with a zero-valued, timestamped snapshot.
func NewStore() *Store {
	return &Store{pm: PerformanceMetrics{Timestamp: time.Now()}}
}

// Snapshot returns a copy of the current PerformanceMetrics.
func (s *Store) Snapshot() PerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pm
}

// Update overwrites the stored PerformanceMetrics under an exclusive lock.
func (s *Store) Update(pm PerformanceMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pm = pm
}

// KernelMetrics is the nine-field resource-and-efficiency view the load
// balancer scores kernels on. It is produced fresh from a kernel's
// PerformanceMetrics and KernelType; it is never shared mutably across
// kernels (each call to Project returns an independent value).
type KernelMetrics struct {
	CPUUsage              float64
	MemoryUsage           float64
	NetworkBandwidth      float64
	DiskIO                float64
	EnergyConsumption     float64
	CPUTaskEfficiency     float64
	IOTaskEfficiency      float64
	MemoryTaskEfficiency  float64
	NetworkTaskEfficiency float64
}

// efficiencyMultiplier returns the per-type bias applied to the base
// efficiency score when projecting extended/kernel metrics, per
// spec.md §4.4 "Extended metrics".
func efficiencyMultiplier(kt types.KernelType, field string) float64 {
	switch kt {
	case types.KernelComputational:
		if field == "cpu" {
			return 1.2
		}
	case types.KernelMicro:
		if field == "io" {
			return 1.1
		}
	case types.KernelArchitectural:
		if field == "memory" {
			return 1.15
		}
	case types.KernelOrchestration:
		if field == "network" {
			return 1.25
		}
	}
	return 1.0
}

// clamp01 clamps v into [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Project derives KernelMetrics from a PerformanceMetrics snapshot plus
// ambient resource readings (network bandwidth, disk IOPS, energy) and
// the kernel's type, applying the four efficiency-field multipliers.
func Project(kt types.KernelType, pm PerformanceMetrics, networkBandwidth, diskIO, energy float64) KernelMetrics {
	base := clamp01(pm.EfficiencyScore)
	return KernelMetrics{
		CPUUsage:              clamp01(pm.CPUUsage),
		MemoryUsage:           clamp01(pm.MemoryUsage),
		NetworkBandwidth:      networkBandwidth,
		DiskIO:                diskIO,
		EnergyConsumption:     energy,
		CPUTaskEfficiency:     clamp01(base * efficiencyMultiplier(kt, "cpu")),
		IOTaskEfficiency:      clamp01(base * efficiencyMultiplier(kt, "io")),
		MemoryTaskEfficiency:  clamp01(base * efficiencyMultiplier(kt, "memory")),
		NetworkTaskEfficiency: clamp01(base * efficiencyMultiplier(kt, "network")),
	}
}

// ExtendedMetrics is the full derived view a kernel exposes, combining
// load/latency/cache bookkeeping with the projected KernelMetrics.
type ExtendedMetrics struct {
	Load              float64
	Latency           float64
	CacheEfficiency   float64
	TunnelBandwidth   float64
	ActiveTasks       int64
	KernelMetrics
}
