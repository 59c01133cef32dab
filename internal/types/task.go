package types

import "time"

// TaskType hints at the resource profile of a task, used by the load
// balancer's workload-specific scoring.
type TaskType string

const (
	CpuIntensive     TaskType = "cpu_intensive"
	IoIntensive      TaskType = "io_intensive"
	MemoryIntensive  TaskType = "memory_intensive"
	NetworkIntensive TaskType = "network_intensive"
	Mixed            TaskType = "mixed"
)

// HighPriorityThreshold is the inclusive priority at and above which a
// task is considered high-priority.
const HighPriorityThreshold = 7

// TaskDescriptor is an immutable, opaque unit of work submitted by a
// caller. Priority is in [0,10]; EnqueueTime is a monotonic instant.
type TaskDescriptor struct {
	Data          []byte
	Priority      int
	EnqueueTime   time.Time
	Type          TaskType
	EstMemoryBytes uint64
	EstCPUTime     uint64
}

// IsHighPriority reports whether the descriptor is in the high-priority
// class (priority >= HighPriorityThreshold).
func (t TaskDescriptor) IsHighPriority() bool {
	return t.Priority >= HighPriorityThreshold
}

// KernelID is a non-empty string unique within a parent's child set.
type KernelID string

// KernelType is the closed set of kernel variants.
type KernelType string

const (
	KernelMicro          KernelType = "micro"
	KernelComputational  KernelType = "computational"
	KernelArchitectural  KernelType = "architectural"
	KernelCryptoMicro    KernelType = "crypto_micro"
	KernelOrchestration  KernelType = "orchestration"
)

// ResourceName is one of the recognized resource-limit names from
// spec.md §6.
type ResourceName string

const (
	ResourceCPU     ResourceName = "cpu"
	ResourceMemory  ResourceName = "memory"
	ResourceThreads ResourceName = "threads"
	ResourceCache   ResourceName = "cache"
)

// IsRecognized reports whether r is one of the four recognized
// resource-limit names.
func (r ResourceName) IsRecognized() bool {
	switch r {
	case ResourceCPU, ResourceMemory, ResourceThreads, ResourceCache:
		return true
	default:
		return false
	}
}
