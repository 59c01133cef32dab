package balancer

import (
	"sync"

	"go.uber.org/zap"

	"kernelforge/internal/logging"
	"kernelforge/internal/metrics"
	"kernelforge/internal/types"
)

// Target is the capability a kernel must expose to be selectable by
// the Load Balancer. Any *kernel.Kernel satisfies this structurally, so
// this package never imports internal/kernel — it would otherwise
// create an import cycle (kernel.ParentKernel owns a Balancer).
type Target interface {
	ScheduleTask(fn func(), priority int) error
	ProcessTask(t types.TaskDescriptor) bool
}

// HybridWeights is the (resource_w, workload_w) pair HybridAdaptive and
// PriorityAdaptive mix resourceScore and invertedWorkloadScore with.
type HybridWeights struct {
	Resource float64
	Workload float64
}

// Config parameterizes a Balancer.
type Config struct {
	Strategy          Strategy
	ResourceWeights   Weights
	HybridWeights     HybridWeights
	HybridTaskWeights HybridWeights // used when task type != Mixed
	ResourceThreshold float64
	WorkloadThreshold float64
}

// DefaultConfig returns spec.md §4.6's documented defaults.
func DefaultConfig(strategy Strategy) Config {
	return Config{
		Strategy:          strategy,
		ResourceWeights:   DefaultWeights(),
		HybridWeights:     HybridWeights{Resource: 0.6, Workload: 0.4},
		HybridTaskWeights: HybridWeights{Resource: 0.3, Workload: 0.7},
		ResourceThreshold: 0.8,
		WorkloadThreshold: 0.7,
	}
}

// Balancer selects, for each pending task, the kernel that should
// process it. It holds no locks on the kernels it selects (spec.md §5
// "Shared-resource policy") — only its own counters and cursors.
type Balancer struct {
	mu sync.Mutex

	cfg Config

	rrCursor  int
	tieCursor int

	decisions map[Strategy]int64

	logger *zap.Logger
}

// New constructs a Balancer with the given default strategy.
func New(cfg Config) *Balancer {
	return &Balancer{
		cfg:       cfg,
		decisions: make(map[Strategy]int64),
		logger:    logging.Named("balancer"),
	}
}

// SetResourceWeights installs new ResourceAware weights, normalized to
// sum to 1.0 (spec.md P7).
func (b *Balancer) SetResourceWeights(cpu, memory, network, energy float64) {
	w := Weights{CPU: cpu, Memory: memory, Network: network, Energy: energy}
	w.Normalize()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg.ResourceWeights = w
}

// SetAdaptiveThresholds installs the resource/workload thresholds used
// by HybridAdaptive's per-kernel weight switch.
func (b *Balancer) SetAdaptiveThresholds(resourceThreshold, workloadThreshold float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg.ResourceThreshold = resourceThreshold
	b.cfg.WorkloadThreshold = workloadThreshold
}

// DecisionCounts returns a snapshot of the per-strategy decision
// counters (used by the fuzz property "sum of per-strategy counters
// equals the number of tasks").
func (b *Balancer) DecisionCounts() map[Strategy]int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[Strategy]int64, len(b.decisions))
	for k, v := range b.decisions {
		out[k] = v
	}
	return out
}

func meanOf(vals func(metrics.KernelMetrics) float64, ms []metrics.KernelMetrics) float64 {
	if len(ms) == 0 {
		return 0
	}
	var sum float64
	for _, m := range ms {
		sum += vals(m)
	}
	return sum / float64(len(ms))
}

// effectiveStrategy applies spec.md §4.6's adaptive switching rule: if
// mean cpu_usage or mean memory_usage across metrics exceeds 0.9,
// ResourceAware and WorkloadSpecific swap for this call only; no other
// strategy is auto-switched.
func (b *Balancer) effectiveStrategy(ms []metrics.KernelMetrics) Strategy {
	meanCPU := meanOf(func(m metrics.KernelMetrics) float64 { return m.CPUUsage }, ms)
	meanMem := meanOf(func(m metrics.KernelMetrics) float64 { return m.MemoryUsage }, ms)
	saturated := meanCPU > 0.9 || meanMem > 0.9

	switch b.cfg.Strategy {
	case ResourceAware:
		if saturated {
			return WorkloadSpecific
		}
	case WorkloadSpecific:
		if saturated {
			return ResourceAware
		}
	}
	return b.cfg.Strategy
}

// Balance implements spec.md §4.6's contract: len(metrics) must equal
// len(kernels), and kernels must be non-empty, or the call is a no-op.
func (b *Balancer) Balance(kernels []Target, tasks []types.TaskDescriptor, ms []metrics.KernelMetrics) {
	if len(kernels) == 0 || len(ms) != len(kernels) {
		return
	}

	b.mu.Lock()
	strategy := b.effectiveStrategy(ms)
	b.mu.Unlock()

	high, low := partition(tasks)
	for _, t := range high {
		b.dispatchOne(strategy, kernels, ms, t)
	}
	for _, t := range low {
		b.dispatchOne(strategy, kernels, ms, t)
	}
}

// partition splits tasks into high/low priority classes, preserving
// relative order within each (spec.md §4.6 "Partitioning", P6).
func partition(tasks []types.TaskDescriptor) (high, low []types.TaskDescriptor) {
	for _, t := range tasks {
		if t.IsHighPriority() {
			high = append(high, t)
		} else {
			low = append(low, t)
		}
	}
	return high, low
}

func (b *Balancer) dispatchOne(strategy Strategy, kernels []Target, ms []metrics.KernelMetrics, task types.TaskDescriptor) {
	b.mu.Lock()
	idx := b.selectLocked(strategy, ms, task)
	b.decisions[strategy]++
	b.mu.Unlock()

	target := kernels[idx]
	b.logger.Info("dispatch decision",
		zap.String("strategy", string(strategy)),
		zap.Int("selected_index", idx),
		zap.Int("priority", task.Priority),
	)

	taskCopy := task
	_ = target.ScheduleTask(func() { target.ProcessTask(taskCopy) }, task.Priority)
}

// selectLocked must be called with b.mu held; it computes per-kernel
// scores for strategy and returns the selected index, advancing the
// shared round-robin/tie-break cursor as needed.
func (b *Balancer) selectLocked(strategy Strategy, ms []metrics.KernelMetrics, task types.TaskDescriptor) int {
	switch strategy {
	case RoundRobin:
		idx := b.rrCursor % len(ms)
		b.rrCursor = (b.rrCursor + 1) % len(ms)
		return idx

	case LeastLoaded:
		scores := make([]float64, len(ms))
		for i, m := range ms {
			scores[i] = m.CPUUsage
		}
		return argmin(scores)

	case WorkloadSpecific:
		scores := make([]float64, len(ms))
		for i, m := range ms {
			scores[i] = invertedWorkloadScore(task.Type, m)
		}
		return selectIndex(scores, true, &b.tieCursor)

	case HybridAdaptive, PriorityAdaptive:
		return b.selectHybridLocked(ms, task)

	default: // ResourceAware
		scores := make([]float64, len(ms))
		for i, m := range ms {
			scores[i] = resourceScore(m, task, b.cfg.ResourceWeights)
		}
		return selectIndex(scores, true, &b.tieCursor)
	}
}

func (b *Balancer) selectHybridLocked(ms []metrics.KernelMetrics, task types.TaskDescriptor) int {
	hw := b.cfg.HybridWeights
	if task.Type != types.Mixed {
		hw = b.cfg.HybridTaskWeights
	}

	combined := make([]float64, len(ms))
	for i, m := range ms {
		r := resourceScore(m, task, b.cfg.ResourceWeights)
		w := invertedWorkloadScore(task.Type, m)

		perKernel := hw
		if r > b.cfg.ResourceThreshold {
			perKernel = HybridWeights{Resource: 0.8, Workload: 0.2}
		}
		combined[i] = perKernel.Resource*r + perKernel.Workload*w
	}
	return selectIndex(combined, true, &b.tieCursor)
}
