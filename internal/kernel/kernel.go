// Package kernel implements the Kernel base (spec.md §4.4, C4) and its
// five variants, plus the Parent Kernel (§4.5, C5).
//
// The lifecycle state machine is grounded in the teacher's
// dag.Transition / isAllowedTransition (internal/dag/state_machine.go):
// explicit from/to validation returning an error on a disallowed edge.
// process_task's "resolve -> check cache -> execute -> persist" shape
// follows internal/core.Runner.Run. Variant dispatch is by KernelType
// tag rather than a type switch, per Design Notes §9 ("dispatch by tag,
// not RTTI").
package kernel

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"kernelforge/internal/cache"
	"kernelforge/internal/logging"
	"kernelforge/internal/metrics"
	"kernelforge/internal/pool"
	"kernelforge/internal/recovery"
	"kernelforge/internal/types"
)

// Config parameterizes a Kernel.
type Config struct {
	ID              types.KernelID
	Type            types.KernelType
	Pool            pool.Config
	CacheCapacity   int
	CacheTTLSeconds uint64
	HostSampler     metrics.HostSampler
	Recovery        *recovery.Config // nil disables checkpointing variants
}

// Validate checks the structural requirements New needs.
func (c Config) Validate() error {
	if c.ID == "" {
		return types.Wrap(types.ErrInvalidConfig, "kernel id is required")
	}
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	return nil
}

func defaultResourceLimits() map[types.ResourceName]float64 {
	return map[types.ResourceName]float64{
		types.ResourceCPU:     1.0,
		types.ResourceMemory:  1.0,
		types.ResourceThreads: 0, // 0 = unset, pool bounds govern
		types.ResourceCache:   0,
	}
}

// Kernel is the base implementation shared by every variant.
type Kernel struct {
	cfg Config

	mu    sync.RWMutex
	state State

	pool  *pool.Pool
	cache *cache.DynamicCache[string, []byte]

	metricsStore *metrics.Store
	extended     metrics.ExtendedMetrics

	resourceLimits map[types.ResourceName]float64

	networkBandwidth float64
	diskIO           float64
	energy           float64

	taskCallback func(types.TaskDescriptor)

	variant variant

	recoveryMgr *recovery.Manager

	hwTransform HardwareTransform

	logger *zap.Logger
}

// New constructs a Kernel in the Created state for the given variant
// type. The worker pool and cache are not created until Initialize.
func New(cfg Config) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v, err := variantFor(cfg.Type)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		cfg:            cfg,
		state:          Created,
		metricsStore:   metrics.NewStore(),
		resourceLimits: defaultResourceLimits(),
		variant:        v,
		logger:         logging.Named("kernel").With(zap.String("kernel_id", string(cfg.ID)), zap.String("kernel_type", string(cfg.Type))),
	}
	if cfg.Recovery != nil {
		k.recoveryMgr = recovery.New(*cfg.Recovery)
	}
	return k, nil
}

// Initialize acquires the kernel's owned resources (worker pool, local
// cache, recovery manager) and moves Created -> Initialized -> Running.
// Calling it again while Initialized, Running or Paused is a no-op
// returning true; from ShutDown it returns false.
func (k *Kernel) Initialize() bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.state == Initialized || k.state == Running || k.state == Paused {
		return true
	}
	if k.state != Created {
		k.logger.Warn("initialize called from a non-created state", zap.String("state", string(k.state)))
		return false
	}

	p, err := pool.New(k.cfg.Pool)
	if err != nil {
		k.logger.Warn("worker pool initialization failed", zap.Error(err))
		return false
	}
	k.pool = p
	k.cache = cache.New[string, []byte](k.cfg.CacheCapacity, k.cfg.CacheTTLSeconds)

	if k.recoveryMgr != nil && !k.recoveryMgr.Initialize() {
		k.logger.Warn("recovery manager initialization failed")
		p.Stop()
		k.pool = nil
		return false
	}

	if err := transition(k.state, Created, Initialized); err != nil {
		return false
	}
	k.state = Initialized
	if err := transition(k.state, Initialized, Running); err != nil {
		return false
	}
	k.state = Running
	return true
}

// IsRunning reports whether the kernel is in the Running state.
func (k *Kernel) IsRunning() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.state == Running
}

func (k *Kernel) currentState() State {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.state
}

// Pause moves Running -> Paused.
func (k *Kernel) Pause() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := transition(k.state, Running, Paused); err != nil {
		k.logger.Warn("pause rejected", zap.Error(err))
		return false
	}
	k.state = Paused
	return true
}

// Resume moves Paused -> Running.
func (k *Kernel) Resume() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := transition(k.state, Paused, Running); err != nil {
		k.logger.Warn("resume rejected", zap.Error(err))
		return false
	}
	k.state = Running
	return true
}

// Shutdown tears down the kernel's owned resources. Idempotent: a
// second call is a no-op (spec.md P4).
func (k *Kernel) Shutdown() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.shutdownLocked()
}

func (k *Kernel) shutdownLocked() {
	if k.state == ShutDown {
		return
	}
	if k.pool != nil {
		k.pool.Stop()
	}
	if k.cache != nil {
		k.cache.Shutdown()
	}
	if k.recoveryMgr != nil {
		k.recoveryMgr.Shutdown()
	}
	k.state = ShutDown
}

// Reset is equivalent to Shutdown followed by leaving the kernel ready
// to Initialize again from Created.
func (k *Kernel) Reset() {
	k.mu.Lock()
	k.shutdownLocked()
	k.state = Created
	k.pool = nil
	k.cache = nil
	k.mu.Unlock()

	if k.cfg.Recovery != nil {
		k.recoveryMgr = recovery.New(*k.cfg.Recovery)
	}
}

// GetType returns the kernel's fixed variant type.
func (k *Kernel) GetType() types.KernelType { return k.cfg.Type }

// GetID returns the kernel's identity.
func (k *Kernel) GetID() types.KernelID { return k.cfg.ID }

// GetSupportedFeatures returns the static feature set for the kernel's
// variant (SPEC_FULL.md §4.4 expansion).
func (k *Kernel) GetSupportedFeatures() []string { return k.variant.features() }

// SetTaskCallback installs the function invoked (best-effort, panics
// isolated) whenever ProcessTask stores a task's data.
func (k *Kernel) SetTaskCallback(f func(types.TaskDescriptor)) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.taskCallback = f
}

// SetAmbientReadings feeds the network/disk/energy figures used by
// UpdateMetrics' KernelMetrics projection; without a call, they default
// to zero.
func (k *Kernel) SetAmbientReadings(networkBandwidth, diskIO, energy float64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.networkBandwidth = networkBandwidth
	k.diskIO = diskIO
	k.energy = energy
}

// SetResourceLimit sets a limit for a recognized resource name.
// Unrecognized names log a warning and are otherwise no-ops, per
// spec.md §4.4.
func (k *Kernel) SetResourceLimit(name types.ResourceName, limit float64) {
	if !name.IsRecognized() {
		k.logger.Warn("set_resource_limit: unrecognized resource", zap.String("resource", string(name)))
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.resourceLimits[name] = limit
}

// GetResourceUsage returns the current reading for a recognized
// resource name; unrecognized names return 0.
func (k *Kernel) GetResourceUsage(name types.ResourceName) float64 {
	if !name.IsRecognized() {
		k.logger.Warn("get_resource_usage: unrecognized resource", zap.String("resource", string(name)))
		return 0
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	switch name {
	case types.ResourceCPU:
		return k.metricsStore.Snapshot().CPUUsage
	case types.ResourceMemory:
		return k.metricsStore.Snapshot().MemoryUsage
	case types.ResourceThreads:
		if k.pool == nil {
			return 0
		}
		return float64(k.pool.Metrics().ActiveThreads)
	case types.ResourceCache:
		if k.cache == nil || k.cache.Capacity() == 0 {
			return 0
		}
		return float64(k.cache.Len()) / float64(k.cache.Capacity())
	default:
		return 0
	}
}

// GetMetrics returns a snapshot of the kernel's PerformanceMetrics.
func (k *Kernel) GetMetrics() metrics.PerformanceMetrics {
	return k.metricsStore.Snapshot()
}

// GetExtendedMetrics returns the most recent projected ExtendedMetrics
// (computed during UpdateMetrics).
func (k *Kernel) GetExtendedMetrics() metrics.ExtendedMetrics {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.extended
}

// UpdateMetrics refreshes PerformanceMetrics (from the host sampler, if
// installed) and reprojects ExtendedMetrics per spec.md §4.4.
func (k *Kernel) UpdateMetrics() {
	pm := k.metricsStore.Snapshot()

	k.mu.RLock()
	sampler := k.cfg.HostSampler
	k.mu.RUnlock()

	if sampler != nil {
		if cpuUsage, memUsage, err := sampler.Sample(); err == nil {
			pm.CPUUsage = cpuUsage
			pm.MemoryUsage = memUsage
		} else {
			k.logger.Warn("host sampling failed", zap.Error(err))
		}
	}
	if pm.EfficiencyScore == 0 {
		pm.EfficiencyScore = clamp01(1 - (pm.CPUUsage+pm.MemoryUsage)/2)
	}
	pm.Timestamp = time.Now()
	k.metricsStore.Update(pm)

	k.mu.Lock()
	defer k.mu.Unlock()

	var poolMetrics pool.Metrics
	if k.pool != nil {
		poolMetrics = k.pool.Metrics()
	}
	cacheLen, cacheCap := 0, 0
	if k.cache != nil {
		cacheLen, cacheCap = k.cache.Len(), k.cache.Capacity()
	}
	cacheEfficiency := 0.0
	if cacheCap > 0 {
		cacheEfficiency = float64(cacheLen) / float64(cacheCap)
	}
	load := 0.0
	if poolMetrics.TotalThreads > 0 {
		load = clamp01(float64(poolMetrics.ActiveThreads) / float64(poolMetrics.TotalThreads))
	}

	km := metrics.Project(k.cfg.Type, pm, k.networkBandwidth, k.diskIO, k.energy)
	k.extended = metrics.ExtendedMetrics{
		Load:            load,
		Latency:         float64(poolMetrics.QueueSize) * 0.001,
		CacheEfficiency: cacheEfficiency,
		TunnelBandwidth: k.networkBandwidth,
		ActiveTasks:     poolMetrics.ActiveThreads,
		KernelMetrics:   km,
	}
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

// ScheduleTask forwards a closure to the local worker pool. priority is
// advisory, consumed only by the Load Balancer and Orchestration
// Kernel, not by the pool itself.
func (k *Kernel) ScheduleTask(fn func(), priority int) error {
	k.mu.RLock()
	p := k.pool
	k.mu.RUnlock()
	if p == nil {
		return types.ErrNotInitialized
	}
	return p.Submit(fn)
}

// ProcessTask is the entry point invoked by the Load Balancer. The
// default behavior stores data under a key derived from
// (priority, enqueue_time), invokes the task callback, updates extended
// metrics, and returns true; variants override via the variant
// strategy.
func (k *Kernel) ProcessTask(t types.TaskDescriptor) bool {
	return k.variant.processTask(k, t)
}

// defaultProcessTask is the base behavior every variant's processTask
// can fall back to or call explicitly.
func (k *Kernel) defaultProcessTask(t types.TaskDescriptor) bool {
	if !k.IsRunning() {
		return false
	}
	key := fmt.Sprintf("%d_%d", t.Priority, t.EnqueueTime.UnixNano())
	k.cache.Put(key, t.Data)
	k.invokeCallback(t)
	k.UpdateMetrics()
	return true
}

// invokeCallback runs the installed task callback, isolating a panic
// per spec.md §7's CallbackPanic recovery: the offending operation is
// still treated as completed.
func (k *Kernel) invokeCallback(t types.TaskDescriptor) {
	k.mu.RLock()
	cb := k.taskCallback
	k.mu.RUnlock()
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			k.logger.Warn("task callback panicked", zap.Any("recovered", r))
		}
	}()
	cb(t)
}

// cacheForVariant exposes the kernel's local cache to variant
// implementations within this package.
func (k *Kernel) cacheForVariant() *cache.DynamicCache[string, []byte] {
	return k.cache
}

// recoveryForVariant exposes the kernel's recovery manager, or nil if
// none was configured.
func (k *Kernel) recoveryForVariant() *recovery.Manager {
	return k.recoveryMgr
}
