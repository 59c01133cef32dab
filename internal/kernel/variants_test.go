package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kernelforge/internal/types"
)

func TestSoftwareTransformIsDeterministic(t *testing.T) {
	in := []byte{0x00, 0x01, 0xFF, 0x42}
	a := softwareTransform(in)
	b := softwareTransform(in)
	assert.Equal(t, a, b)
	assert.Len(t, a, len(in))
}

func TestComputeCachesOnSecondCallWithoutHardwareTransform(t *testing.T) {
	k, err := New(testConfig(t, types.KernelComputational))
	require.NoError(t, err)
	require.True(t, k.Initialize())
	defer k.Shutdown()

	data := []byte("same input every time")
	assert.True(t, k.Compute(data))
	// second call must be served from cache, still succeeding
	assert.True(t, k.Compute(data))

	key := contentKey(data)
	_, ok := k.cacheForVariant().Get(key)
	assert.True(t, ok)
}

func TestComputePrefersHardwareTransform(t *testing.T) {
	k, err := New(testConfig(t, types.KernelComputational))
	require.NoError(t, err)
	require.True(t, k.Initialize())
	defer k.Shutdown()

	var called bool
	k.SetHardwareTransform(func(in []byte) ([]byte, bool) {
		called = true
		return []byte("hw-result"), true
	})

	assert.True(t, k.Compute([]byte("anything")))
	assert.True(t, called)
}

func TestComputeRejectsWrongKernelType(t *testing.T) {
	k, err := New(testConfig(t, types.KernelMicro))
	require.NoError(t, err)
	require.True(t, k.Initialize())
	defer k.Shutdown()

	assert.False(t, k.Compute([]byte("x")))
}

func TestExecuteCryptoTaskAppliesIndexXorOverThreshold(t *testing.T) {
	k, err := New(testConfig(t, types.KernelCryptoMicro))
	require.NoError(t, err)
	require.True(t, k.Initialize())
	defer k.Shutdown()

	small := make([]byte, 100)
	large := make([]byte, 600)

	smallOut, ok := k.ExecuteCryptoTask(small)
	require.True(t, ok)
	largeOut, ok := k.ExecuteCryptoTask(large)
	require.True(t, ok)

	assert.Len(t, smallOut, len(small))
	assert.Len(t, largeOut, len(large))
	// The two paths diverge once the extra pass kicks in past 512 bytes.
	assert.NotEqual(t, largeOut[:100], smallOut)
}

func TestExecuteCryptoTaskRejectsWrongKernelType(t *testing.T) {
	k, err := New(testConfig(t, types.KernelMicro))
	require.NoError(t, err)
	require.True(t, k.Initialize())
	defer k.Shutdown()

	_, ok := k.ExecuteCryptoTask([]byte("x"))
	assert.False(t, ok)
}

func TestOptimizeTopologyResizesCache(t *testing.T) {
	k, err := New(testConfig(t, types.KernelArchitectural))
	require.NoError(t, err)
	require.True(t, k.Initialize())
	defer k.Shutdown()

	k.OptimizeTopology(PlatformProfile{AvailableMemoryBytes: 1000, AverageEntrySize: 10})
	assert.Equal(t, 100, k.cache.Capacity())
}

func TestOptimizePlacementGrowsOnHighUtilization(t *testing.T) {
	k, err := New(testConfig(t, types.KernelArchitectural))
	require.NoError(t, err)
	require.True(t, k.Initialize())
	defer k.Shutdown()

	k.cache.Resize(10)
	for i := 0; i < 10; i++ {
		k.cache.Put(string(rune('a'+i)), []byte{byte(i)})
	}
	before := k.cache.Capacity()
	k.OptimizePlacement()
	assert.Greater(t, k.cache.Capacity(), before)
}

func TestExecuteTaskMemoizesAndChecks(t *testing.T) {
	k, err := New(testConfig(t, types.KernelMicro))
	require.NoError(t, err)
	require.True(t, k.Initialize())
	defer k.Shutdown()

	assert.True(t, k.ExecuteTask([]byte("micro-data")))
	assert.Equal(t, 1, k.cache.Len())
}
