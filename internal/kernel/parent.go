package kernel

import (
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"kernelforge/internal/balancer"
	"kernelforge/internal/metrics"
	"kernelforge/internal/types"
)

// Orchestrator is the capability a ParentKernel needs from its owned
// Orchestration Kernel. Defined here (rather than importing
// internal/orchestrator directly) because the Orchestration Kernel
// embeds a *Kernel of its own — importing it from this package would
// create a cycle.
type Orchestrator interface {
	Orchestrate(targets []balancer.Target)
}

// ParentKernel owns a set of child kernels, an installed Load Balancer,
// and an Orchestration Kernel, per spec.md §4.5 (C5).
type ParentKernel struct {
	*Kernel

	mu       sync.RWMutex
	children []*Kernel
	byID     map[types.KernelID]*Kernel

	lb           *balancer.Balancer
	orchestrator Orchestrator
}

// NewParentKernel constructs a ParentKernel wrapping a base Kernel and
// an installed Load Balancer.
func NewParentKernel(base *Kernel, lb *balancer.Balancer, orch Orchestrator) *ParentKernel {
	return &ParentKernel{
		Kernel:       base,
		byID:         make(map[types.KernelID]*Kernel),
		lb:           lb,
		orchestrator: orch,
	}
}

// AddChild registers a child kernel.
func (p *ParentKernel) AddChild(k *Kernel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byID[k.GetID()]; exists {
		return
	}
	p.children = append(p.children, k)
	p.byID[k.GetID()] = k
}

// RemoveChild drops a child by id, if present.
func (p *ParentKernel) RemoveChild(id types.KernelID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byID[id]; !exists {
		return
	}
	delete(p.byID, id)
	for i, c := range p.children {
		if c.GetID() == id {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
}

// GetChildren returns a snapshot of the current child list.
func (p *ParentKernel) GetChildren() []*Kernel {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Kernel, len(p.children))
	copy(out, p.children)
	return out
}

// BalanceLoad forwards to the installed Load Balancer, passing the
// parent's children as candidates.
func (p *ParentKernel) BalanceLoad(tasks []types.TaskDescriptor) {
	if p.lb == nil {
		return
	}
	children := p.GetChildren()
	if len(children) == 0 {
		return
	}

	targets := make([]balancer.Target, len(children))
	ms := make([]metrics.KernelMetrics, len(children))
	for i, c := range children {
		targets[i] = c
		c.UpdateMetrics()
		ext := c.GetExtendedMetrics()
		ms[i] = ext.KernelMetrics
	}
	p.lb.Balance(targets, tasks, ms)
}

// OrchestrateTasks forwards to the owned Orchestration Kernel, which
// receives the parent's children as its targets.
func (p *ParentKernel) OrchestrateTasks() {
	if p.orchestrator == nil {
		return
	}
	children := p.GetChildren()
	targets := make([]balancer.Target, len(children))
	for i, c := range children {
		targets[i] = c
	}
	p.orchestrator.Orchestrate(targets)
}

// UpdateMetrics aggregates children's metrics and adapts the parent's
// worker pool size and local cache capacity per spec.md §4.5's rules,
// then refreshes the parent's own ExtendedMetrics.
func (p *ParentKernel) UpdateMetrics() {
	p.Kernel.UpdateMetrics()

	children := p.GetChildren()
	if len(children) == 0 {
		return
	}

	var sumCPU float64
	for _, c := range children {
		c.UpdateMetrics()
		sumCPU += c.GetMetrics().CPUUsage
	}
	avgCPU := sumCPU / float64(len(children))

	p.Kernel.mu.Lock()
	defer p.Kernel.mu.Unlock()

	if p.Kernel.pool != nil {
		active := p.Kernel.pool.Metrics().TotalThreads
		switch {
		case avgCPU > 0.8 && active < 32:
			p.logger.Info("scaling worker pool up", zap.Int64("current", active))
			p.Kernel.pool.Resize(int(active) + 2)
		case avgCPU < 0.3 && active > 2:
			p.logger.Info("scaling worker pool down", zap.Int64("current", active))
			p.Kernel.pool.Resize(int(active) - 1)
		}
	}

	if p.Kernel.cache != nil {
		size, capacity := p.Kernel.cache.Len(), p.Kernel.cache.Capacity()
		switch {
		case size < 100:
			p.Kernel.cache.Resize(capacity * 12 / 10)
		case size > 1000 && capacity > 16:
			p.Kernel.cache.Resize(capacity * 8 / 10)
		}
	}
}

// Shutdown tears down children in insertion order, then the parent's
// own owned components (worker pool, cache, recovery manager).
func (p *ParentKernel) Shutdown() {
	p.mu.Lock()
	children := make([]*Kernel, len(p.children))
	copy(children, p.children)
	p.mu.Unlock()

	var errs error
	for _, c := range children {
		func() {
			defer func() {
				if r := recover(); r != nil {
					errs = multierr.Append(errs, types.Wrap(types.ErrCallbackPanic, "child %s shutdown panicked: %v", c.GetID(), r))
				}
			}()
			c.Shutdown()
		}()
	}
	if errs != nil {
		p.logger.Warn("errors tearing down children", zap.Error(errs))
	}

	p.Kernel.Shutdown()
}
