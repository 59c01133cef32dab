// Package balancer implements the Load Balancer (spec.md §4.6, C6):
// strategy-based scoring and selection of a kernel for each pending
// task. The pure "score the candidates, pick one" shape is grounded in
// the teacher's dag.GetReadyTasks (internal/dag/scheduler.go) — a pure
// function of graph state with a deterministic secondary sort, no
// coupling to execution — generalized here to score kernels instead of
// ready tasks.
package balancer

// Strategy is the closed set of selection strategies (spec.md §4.6).
type Strategy string

const (
	ResourceAware     Strategy = "resource_aware"
	WorkloadSpecific  Strategy = "workload_specific"
	HybridAdaptive    Strategy = "hybrid_adaptive"
	LeastLoaded       Strategy = "least_loaded"
	RoundRobin        Strategy = "round_robin"
	PriorityAdaptive  Strategy = "priority_adaptive"
)

// StrategyFromName parses spec.md §6's fixed name set. Unknown names
// map to PriorityAdaptive.
func StrategyFromName(name string) Strategy {
	switch name {
	case string(ResourceAware):
		return ResourceAware
	case string(WorkloadSpecific):
		return WorkloadSpecific
	case string(HybridAdaptive):
		return HybridAdaptive
	case string(LeastLoaded):
		return LeastLoaded
	case string(RoundRobin):
		return RoundRobin
	case string(PriorityAdaptive):
		return PriorityAdaptive
	default:
		return PriorityAdaptive
	}
}
