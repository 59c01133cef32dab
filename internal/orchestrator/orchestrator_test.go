package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kernelforge/internal/balancer"
	"kernelforge/internal/kernel"
	"kernelforge/internal/pool"
	"kernelforge/internal/recovery"
	"kernelforge/internal/types"
)

func testRecoveryConfig(t *testing.T) recovery.Config {
	dir := t.TempDir()
	return recovery.Config{
		MaxPoints:             10,
		CheckpointInterval:    time.Minute,
		EnableStateValidation: true,
		PointConfig: recovery.PointConfig{
			MaxSize:           1 << 20,
			EnableCompression: true,
			StoragePath:       dir,
			RetentionPeriod:   time.Hour,
		},
	}
}

func newTestOrchestrator(t *testing.T, lb *balancer.Balancer) *Kernel {
	base, err := kernel.New(kernel.Config{
		ID:            types.KernelID(t.Name()),
		Type:          types.KernelOrchestration,
		Pool:          pool.Config{MinThreads: 1, MaxThreads: 2, QueueCapacity: 10},
		CacheCapacity: 16,
	})
	require.NoError(t, err)
	require.True(t, base.Initialize())

	rm := recovery.New(testRecoveryConfig(t))
	require.True(t, rm.Initialize())

	return New(base, lb, rm)
}

func newTestTarget(t *testing.T, name string) *kernel.Kernel {
	cfg := kernel.Config{
		ID:            types.KernelID(name),
		Type:          types.KernelMicro,
		Pool:          pool.Config{MinThreads: 1, MaxThreads: 2, QueueCapacity: 10},
		CacheCapacity: 16,
	}
	k, err := kernel.New(cfg)
	require.NoError(t, err)
	require.True(t, k.Initialize())
	return k
}

func TestEnqueueTaskInfersTypeFromLength(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	defer o.Shutdown()

	small := o.EnqueueTask(make([]byte, 100), 1, "")
	assert.Equal(t, types.IoIntensive, small.Type)

	mid := o.EnqueueTask(make([]byte, 4096), 1, "")
	assert.Equal(t, types.CpuIntensive, mid.Type)

	large := o.EnqueueTask(make([]byte, (1<<20)+1), 1, "")
	assert.Equal(t, types.MemoryIntensive, large.Type)

	explicit := o.EnqueueTask(make([]byte, 10), 1, types.NetworkIntensive)
	assert.Equal(t, types.NetworkIntensive, explicit.Type)

	assert.Len(t, o.Pending(), 4)
}

func TestEnqueueTaskCachesBytesUnderIndexKey(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	defer o.Shutdown()

	data := []byte("tracked payload")
	o.EnqueueTask(data, 5, "")

	cached, ok := o.taskCache.Get("task_0")
	require.True(t, ok)
	assert.Equal(t, data, cached)
}

func TestOrchestrateDrainsQueueAndDispatches(t *testing.T) {
	lb := balancer.New(balancer.DefaultConfig(balancer.RoundRobin))
	o := newTestOrchestrator(t, lb)
	defer o.Shutdown()

	target := newTestTarget(t, "target-1")
	defer target.Shutdown()

	var received []byte
	target.SetTaskCallback(func(td types.TaskDescriptor) { received = td.Data })

	o.EnqueueTask([]byte("payload"), 3, "")
	assert.Len(t, o.Pending(), 1)

	o.Orchestrate([]balancer.Target{target})
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, o.Pending())
	assert.Equal(t, []byte("payload"), received)
	assert.Equal(t, int64(1), lb.DecisionCounts()[balancer.RoundRobin])
}

func TestOrchestrateNoopsOnEmptyQueue(t *testing.T) {
	lb := balancer.New(balancer.DefaultConfig(balancer.RoundRobin))
	o := newTestOrchestrator(t, lb)
	defer o.Shutdown()

	target := newTestTarget(t, "target-1")
	defer target.Shutdown()

	assert.NotPanics(t, func() { o.Orchestrate([]balancer.Target{target}) })
	assert.Equal(t, int64(0), lb.DecisionCounts()[balancer.RoundRobin])
}

func TestOrchestrateWarnsWithoutBalancerOrTargets(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	defer o.Shutdown()

	o.EnqueueTask([]byte("payload"), 1, "")
	assert.NotPanics(t, func() { o.Orchestrate(nil) })
}

func TestBalanceTasksUsesInternalSmokeTaskWhenNoTargetsSupplied(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	defer o.Shutdown()

	o.BalanceTasks(nil)
	assert.Len(t, o.Pending(), 1)
}

func TestBalanceTasksOrchestratesWhenTargetsSupplied(t *testing.T) {
	lb := balancer.New(balancer.DefaultConfig(balancer.RoundRobin))
	o := newTestOrchestrator(t, lb)
	defer o.Shutdown()

	target := newTestTarget(t, "target-1")
	defer target.Shutdown()

	o.EnqueueTask([]byte("payload"), 1, "")
	o.BalanceTasks([]balancer.Target{target})
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, o.Pending())
}

func TestShutdownIsSafeAndTearsDownOwnedComponents(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	assert.NotPanics(t, func() { o.Shutdown() })
}
