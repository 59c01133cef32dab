package kernel

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"kernelforge/internal/types"
)

// variant is the capability-set strategy each KernelType installs on a
// Kernel, per Design Notes §9's "dispatch by tag, not RTTI": the Load
// Balancer and ParentKernel only ever see *Kernel, never a concrete
// variant type.
type variant interface {
	features() []string
	processTask(k *Kernel, t types.TaskDescriptor) bool
}

func variantFor(kt types.KernelType) (variant, error) {
	switch kt {
	case types.KernelMicro:
		return microVariant{}, nil
	case types.KernelComputational:
		return computationalVariant{}, nil
	case types.KernelArchitectural:
		return architecturalVariant{}, nil
	case types.KernelCryptoMicro:
		return cryptoMicroVariant{}, nil
	case types.KernelOrchestration:
		return orchestrationVariant{}, nil
	default:
		return nil, types.Wrap(types.ErrInvalidConfig, "unknown kernel type %q", kt)
	}
}

// --- Micro -----------------------------------------------------------

// microVariant is the minimal kernel: memoize in the local cache, then
// create a recovery point per task.
type microVariant struct{}

func (microVariant) features() []string { return []string{"cache", "checkpoint"} }

func (microVariant) processTask(k *Kernel, t types.TaskDescriptor) bool {
	if !k.defaultProcessTask(t) {
		return false
	}
	if rm := k.recoveryForVariant(); rm != nil {
		rm.CreatePointFromBytes(t.Data)
	}
	return true
}

// ExecuteTask is Micro's extra operation: memoize then checkpoint.
func (k *Kernel) ExecuteTask(data []byte) bool {
	if k.cfg.Type != types.KernelMicro {
		return false
	}
	return k.ProcessTask(types.TaskDescriptor{Data: data, EnqueueTime: time.Now()})
}

// --- Computational -----------------------------------------------------

// computationalVariant's processTask is the default behavior. Its extra
// operation, Compute, consults the cache by a content-derived key; on
// miss it computes via an optional hardware-transform capability, else
// falls back to the deterministic software transform from spec.md
// §4.4, then caches and checkpoints the result.
type computationalVariant struct{}

func (computationalVariant) features() []string {
	return []string{"cache", "compute", "hw-transform"}
}

func (computationalVariant) processTask(k *Kernel, t types.TaskDescriptor) bool {
	return k.defaultProcessTask(t)
}

// HardwareTransform, when installed, lets Compute prefer an accelerated
// byte transform over the deterministic software fallback.
type HardwareTransform func([]byte) ([]byte, bool)

// Compute is Computational's extra operation.
func (k *Kernel) Compute(data []byte) bool {
	if k.cfg.Type != types.KernelComputational {
		return false
	}
	if !k.IsRunning() {
		return false
	}

	key := contentKey(data)
	if cached, ok := k.cacheForVariant().Get(key); ok {
		k.invokeCallback(types.TaskDescriptor{Data: cached})
		return true
	}

	var result []byte
	if k.hwTransform != nil {
		if out, ok := k.hwTransform(data); ok {
			result = out
		}
	}
	if result == nil {
		result = softwareTransform(data)
	}

	k.cacheForVariant().Put(key, result)
	if rm := k.recoveryForVariant(); rm != nil {
		rm.CreatePointFromBytes(result)
	}
	k.invokeCallback(types.TaskDescriptor{Data: result})
	k.UpdateMetrics()
	return true
}

// SetHardwareTransform installs the optional accelerated byte transform
// a Computational kernel prefers over the software fallback.
func (k *Kernel) SetHardwareTransform(f HardwareTransform) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.hwTransform = f
}

func contentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// softwareTransform is spec.md §4.4's deterministic per-byte fallback:
// b -> ((b*5 + 11) mod 256) XOR 0x3C + 23 mod 256.
func softwareTransform(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		v := (uint32(b)*5 + 11) % 256
		v = (v ^ 0x3C) + 23
		out[i] = byte(v % 256)
	}
	return out
}

// --- Architectural -----------------------------------------------------

type architecturalVariant struct{}

func (architecturalVariant) features() []string {
	return []string{"cache", "topology", "placement"}
}

func (architecturalVariant) processTask(k *Kernel, t types.TaskDescriptor) bool {
	return k.defaultProcessTask(t)
}

// PlatformProfile describes the host characteristics used to compute an
// optimal cache capacity in OptimizeTopology.
type PlatformProfile struct {
	AvailableMemoryBytes uint64
	AverageEntrySize     uint64
}

// OptimizeTopology recomputes an optimal cache capacity from a platform
// profile and resizes the local cache to it.
func (k *Kernel) OptimizeTopology(profile PlatformProfile) {
	if k.cfg.Type != types.KernelArchitectural || k.cache == nil {
		return
	}
	if profile.AverageEntrySize == 0 {
		return
	}
	optimal := int(profile.AvailableMemoryBytes / profile.AverageEntrySize)
	if optimal <= 0 {
		return
	}
	k.cache.Resize(optimal)
}

// OptimizePlacement rebalances cache sizing by utilization: shrink when
// size < 30% of capacity, grow when size > 90%.
func (k *Kernel) OptimizePlacement() {
	if k.cfg.Type != types.KernelArchitectural || k.cache == nil {
		return
	}
	size, capacity := k.cache.Len(), k.cache.Capacity()
	if capacity == 0 {
		return
	}
	ratio := float64(size) / float64(capacity)
	switch {
	case ratio < 0.3:
		k.cache.Resize(capacity * 7 / 10)
	case ratio > 0.9:
		k.cache.Resize(capacity * 12 / 10)
	}
}

// --- CryptoMicro -----------------------------------------------------

type cryptoMicroVariant struct{}

func (cryptoMicroVariant) features() []string { return []string{"crypto", "cache"} }

func (cryptoMicroVariant) processTask(k *Kernel, t types.TaskDescriptor) bool {
	return k.defaultProcessTask(t)
}

// ExecuteCryptoTask is CryptoMicro's extra operation: a fixed per-byte
// transform pipeline, with an additional index-XOR pass in 16-byte
// blocks for inputs over 512 bytes (spec.md §4.4).
func (k *Kernel) ExecuteCryptoTask(in []byte) ([]byte, bool) {
	if k.cfg.Type != types.KernelCryptoMicro {
		return nil, false
	}
	if !k.IsRunning() {
		return nil, false
	}

	out := make([]byte, len(in))
	for i, b := range in {
		v := b ^ 0xAA
		v = byte((uint32(v)*7 + 13) % 256)
		v ^= 0x55
		v = byte((uint32(v) + 17) % 256)
		out[i] = v
	}

	if len(in) > 512 {
		for blockStart := 0; blockStart < len(out); blockStart += 16 {
			end := blockStart + 16
			if end > len(out) {
				end = len(out)
			}
			for i := blockStart; i < end; i++ {
				out[i] ^= byte(i % 256)
			}
		}
	}

	k.cacheForVariant().Put(contentKey(in), out)
	k.UpdateMetrics()
	return out, true
}

// --- Orchestration -----------------------------------------------------

// orchestrationVariant's extra operations live in internal/orchestrator
// (§4.7); the base Kernel only needs to be constructible with this tag
// so a ParentKernel or an OrchestrationKernel can embed it uniformly.
type orchestrationVariant struct{}

func (orchestrationVariant) features() []string {
	return []string{"orchestration", "cache", "recovery"}
}

func (orchestrationVariant) processTask(k *Kernel, t types.TaskDescriptor) bool {
	return k.defaultProcessTask(t)
}
