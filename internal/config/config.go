// Package config provides typed configuration structs and env-var
// loading for the cmd/substrate demo binary, mirroring the plain
// os.Getenv-with-defaults style used throughout beemesh-beemesh's
// main.go (BEEMESH_NODE_ID, etc.) rather than pulling in a struct-tag
// env library the retrieved examples never use.
package config

import (
	"os"
	"strconv"
	"time"

	"kernelforge/internal/balancer"
)

// Substrate holds everything cmd/substrate needs to construct a
// ParentKernel, its children, the Load Balancer, and the Orchestration
// Kernel.
type Substrate struct {
	NodeID            string
	ChildCount        int
	MinThreads        int
	MaxThreads        int
	QueueCapacity     int
	CacheCapacity     int
	CacheTTLSeconds   uint64
	Strategy          balancer.Strategy
	RecoveryPath      string
	RecoveryMaxPoints int
	RetentionPeriod   time.Duration
	MetricsAddr       string
	Development       bool
}

// Load reads the demo binary's configuration from environment
// variables, falling back to development-friendly defaults when unset.
// Grounded in beemesh-beemesh/main.go's os.Getenv("BEEMESH_NODE_ID")
// pattern, generalized to the full set of fields this substrate needs.
func Load() Substrate {
	return Substrate{
		NodeID:            getenv("SUBSTRATE_NODE_ID", "substrate-local"),
		ChildCount:        getenvInt("SUBSTRATE_CHILD_COUNT", 3),
		MinThreads:        getenvInt("SUBSTRATE_MIN_THREADS", 2),
		MaxThreads:        getenvInt("SUBSTRATE_MAX_THREADS", 8),
		QueueCapacity:     getenvInt("SUBSTRATE_QUEUE_CAPACITY", 256),
		CacheCapacity:     getenvInt("SUBSTRATE_CACHE_CAPACITY", 512),
		CacheTTLSeconds:   uint64(getenvInt("SUBSTRATE_CACHE_TTL_SECONDS", 0)),
		Strategy:          balancer.StrategyFromName(getenv("SUBSTRATE_STRATEGY", string(balancer.PriorityAdaptive))),
		RecoveryPath:      getenv("SUBSTRATE_RECOVERY_PATH", defaultRecoveryPath()),
		RecoveryMaxPoints: getenvInt("SUBSTRATE_RECOVERY_MAX_POINTS", 20),
		RetentionPeriod:   getenvDuration("SUBSTRATE_RECOVERY_RETENTION", 24*time.Hour),
		MetricsAddr:       getenv("SUBSTRATE_METRICS_ADDR", ":9090"),
		Development:       getenv("SUBSTRATE_ENV", "development") != "production",
	}
}

func defaultRecoveryPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "/tmp/kernelforge-recovery"
	}
	return dir + "/kernelforge/recovery"
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
