package balancer

import "kernelforge/internal/types"
import "kernelforge/internal/metrics"

// Weights are the ResourceAware scoring weights, normalized to sum to
// 1.0 (spec.md §4.6 P7).
type Weights struct {
	CPU     float64
	Memory  float64
	Network float64
	Energy  float64
}

// DefaultWeights returns spec.md's documented defaults.
func DefaultWeights() Weights {
	return Weights{CPU: 0.30, Memory: 0.25, Network: 0.25, Energy: 0.20}
}

// Normalize rescales the weights in place so they sum to 1.0.
func (w *Weights) Normalize() {
	sum := w.CPU + w.Memory + w.Network + w.Energy
	if sum <= 0 {
		*w = DefaultWeights()
		return
	}
	w.CPU /= sum
	w.Memory /= sum
	w.Network /= sum
	w.Energy /= sum
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// resourceScore implements the ResourceAware formula. Every usage term
// enters as (1 - usage), so an idle kernel scores higher than a loaded
// one; ResourceAware and HybridAdaptive both select the argmin of this
// score (see selectLocked and selectHybridLocked).
func resourceScore(km metrics.KernelMetrics, task types.TaskDescriptor, w Weights) float64 {
	memTerm := w.Memory * (1 - km.MemoryUsage)
	memTerm *= 1 - float64(task.EstMemoryBytes)/float64(1<<30)

	return w.CPU*(1-km.CPUUsage) +
		memTerm +
		w.Network*(km.NetworkBandwidth/1000) +
		w.Energy*(1-km.EnergyConsumption/100)
}

// workloadBaseScore picks the per-task-type efficiency field and
// modulates it per spec.md §4.6, before clamping to [0,1]. This is the
// raw (higher-is-better) efficiency reading, pre-inversion.
func workloadBaseScore(tt types.TaskType, km metrics.KernelMetrics) float64 {
	var field float64
	switch tt {
	case types.CpuIntensive:
		field = km.CPUTaskEfficiency
	case types.IoIntensive:
		field = km.IOTaskEfficiency
	case types.MemoryIntensive:
		field = km.MemoryTaskEfficiency
	case types.NetworkIntensive:
		field = km.NetworkTaskEfficiency
	default: // Mixed
		field = (km.CPUTaskEfficiency + km.IOTaskEfficiency + km.MemoryTaskEfficiency + km.NetworkTaskEfficiency) / 4
	}

	switch tt {
	case types.CpuIntensive:
		field *= 1 - 0.3*km.CPUUsage
	case types.IoIntensive:
		field *= 1 + 0.1*km.DiskIO/1000
	case types.MemoryIntensive:
		field *= 1 - 0.3*km.MemoryUsage
	case types.NetworkIntensive:
		field *= 1 + 0.1*km.NetworkBandwidth/1000
	}

	return clamp01(field)
}

// invertedWorkloadScore is workloadBaseScore inverted to a
// lower-is-better scale, as spec.md §4.6's WorkloadSpecific bullet
// specifies ("invert (1 - score), select argmin").
func invertedWorkloadScore(tt types.TaskType, km metrics.KernelMetrics) float64 {
	return 1 - workloadBaseScore(tt, km)
}

// argmin returns the index of the smallest value in scores.
func argmin(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] < scores[best] {
			best = i
		}
	}
	return best
}

// argmax returns the index of the largest value in scores.
func argmax(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}

// allWithinTolerance reports whether every value in scores is within
// tol of every other (spec.md P8's tie-break trigger).
func allWithinTolerance(scores []float64, tol float64) bool {
	if len(scores) == 0 {
		return true
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	return hi-lo <= tol
}

const tieTolerance = 0.001

// selectIndex picks the best-scoring kernel, falling back to a shared
// round-robin cursor when all scores are within tieTolerance of each
// other (spec.md P8 "tie-break fairness").
func selectIndex(scores []float64, argminOrder bool, cursor *int) int {
	n := len(scores)
	if allWithinTolerance(scores, tieTolerance) {
		idx := *cursor % n
		*cursor = (*cursor + 1) % n
		return idx
	}
	if argminOrder {
		return argmin(scores)
	}
	return argmax(scores)
}
