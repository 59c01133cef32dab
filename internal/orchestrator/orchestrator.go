// Package orchestrator implements the Orchestration Kernel (spec.md
// §4.7, C7): a pending task FIFO, a tracking cache of the bytes it has
// queued, and a single orchestrate() pass that collects kernel metrics,
// runs the Load Balancer once, and checkpoints via the Recovery
// Manager. Grounded in the teacher's internal/core.Runner.Run, whose
// "resolve -> hash -> cache-or-execute -> persist" chain is the
// template for "collect inputs, make one decision, then checkpoint."
package orchestrator

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"kernelforge/internal/balancer"
	"kernelforge/internal/cache"
	"kernelforge/internal/kernel"
	"kernelforge/internal/logging"
	"kernelforge/internal/metrics"
	"kernelforge/internal/recovery"
	"kernelforge/internal/types"
)

// memoryIntensiveThreshold and ioIntensiveThreshold are spec.md §4.7's
// byte-length boundaries for inferring a TaskDescriptor's Type when the
// caller does not specify one.
const (
	memoryIntensiveThreshold = 1 << 20
	ioIntensiveThreshold     = 1024
)

// Kernel is the Orchestration Kernel. It embeds *kernel.Kernel tagged
// types.KernelOrchestration so it structurally satisfies both
// balancer.Target and kernel.Orchestrator without either of those
// packages importing this one.
type Kernel struct {
	*kernel.Kernel

	mu        sync.Mutex
	pending   []types.TaskDescriptor
	nextIndex int

	taskCache *cache.DynamicCache[string, []byte]
	lb        *balancer.Balancer
	recovery  *recovery.Manager

	logger *zap.Logger
}

// New constructs an Orchestration Kernel wrapping a base Kernel already
// tagged types.KernelOrchestration, with its own Load Balancer and
// Recovery Manager.
func New(base *kernel.Kernel, lb *balancer.Balancer, recoveryMgr *recovery.Manager) *Kernel {
	return &Kernel{
		Kernel:    base,
		taskCache: cache.New[string, []byte](256, 0),
		lb:        lb,
		recovery:  recoveryMgr,
		logger:    logging.Named("orchestrator").With(zap.String("kernel_id", string(base.GetID()))),
	}
}

// inferType returns the TaskType spec.md §4.7 assigns from len(data)
// when the caller leaves Type unset.
func inferType(data []byte) types.TaskType {
	switch n := len(data); {
	case n > memoryIntensiveThreshold:
		return types.MemoryIntensive
	case n < ioIntensiveThreshold:
		return types.IoIntensive
	default:
		return types.CpuIntensive
	}
}

// EnqueueTask builds a TaskDescriptor from bytes and priority, infers
// its Type from length when typ is the empty string, appends it to the
// pending queue, and caches the bytes under task_{index} for tracking.
func (k *Kernel) EnqueueTask(data []byte, priority int, typ types.TaskType) types.TaskDescriptor {
	if typ == "" {
		typ = inferType(data)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	t := types.TaskDescriptor{
		Data:     data,
		Priority: priority,
		Type:     typ,
	}
	index := k.nextIndex
	k.nextIndex++
	k.pending = append(k.pending, t)
	k.taskCache.Put(fmt.Sprintf("task_%d", index), data)
	return t
}

// Pending returns a snapshot copy of the queued-but-not-yet-balanced
// tasks.
func (k *Kernel) Pending() []types.TaskDescriptor {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]types.TaskDescriptor, len(k.pending))
	copy(out, k.pending)
	return out
}

// drain empties and returns the pending queue.
func (k *Kernel) drain() []types.TaskDescriptor {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := k.pending
	k.pending = nil
	return out
}

// Orchestrate implements kernel.Orchestrator: collect KernelMetrics
// from each target, invoke the Load Balancer once against the drained
// pending queue, then checkpoint via the Recovery Manager. Satisfies
// ParentKernel.OrchestrateTasks' contract of receiving the parent's
// children as targets.
func (k *Kernel) Orchestrate(targets []balancer.Target) {
	tasks := k.drain()
	if len(tasks) == 0 {
		return
	}
	if k.lb == nil || len(targets) == 0 {
		k.logger.Warn("orchestrate called without a balancer or targets", zap.Int("pending_tasks", len(tasks)))
		return
	}

	ms := make([]metrics.KernelMetrics, len(targets))
	for i, target := range targets {
		if sampler, ok := target.(metricsProvider); ok {
			sampler.UpdateMetrics()
			ms[i] = sampler.GetExtendedMetrics().KernelMetrics
		}
	}

	k.lb.Balance(targets, tasks, ms)

	if k.recovery != nil {
		k.recovery.CreateRecoveryPoint()
	}
}

// metricsProvider is the subset of *kernel.Kernel's API Orchestrate
// needs to project fresh KernelMetrics; any balancer.Target that also
// happens to be a real Kernel satisfies it.
type metricsProvider interface {
	UpdateMetrics()
	GetExtendedMetrics() metrics.ExtendedMetrics
}

// BalanceTasks orchestrates against targets when any are supplied.
// With no targets it only enqueues one internal smoke-test task and
// logs that this path is non-production; it runs no orchestration and
// dispatches nothing.
func (k *Kernel) BalanceTasks(targets []balancer.Target) {
	if len(targets) > 0 {
		k.Orchestrate(targets)
		return
	}
	k.EnqueueTask([]byte("internal-smoke-test-task"), 1, types.CpuIntensive)
	k.logger.Info("balance_tasks invoked with no external kernels; internal test-set path is non-production")
}

// Shutdown tears down the tracking cache, the owned Recovery Manager,
// then the embedded base Kernel.
func (k *Kernel) Shutdown() {
	k.taskCache.Shutdown()
	if k.recovery != nil {
		k.recovery.Shutdown()
	}
	k.Kernel.Shutdown()
}
