// Command substrate is a demo binary wiring the multi-kernel compute
// substrate together: a ParentKernel with several child kernels, a
// Load Balancer, and an Orchestration Kernel, sampling host metrics on
// a ticker and exposing them over Prometheus. It is not part of the
// core API — embedding applications construct these types directly.
//
// Grounded in ALEYI17-InfraSight_gpu/cmd/main.go (signal-driven
// shutdown via context.WithCancel + a goroutine on os/signal.Notify,
// zap logger lifecycle with a deferred Sync) and beemesh-beemesh's
// main.go (a ticker driving periodic host-metric sampling and
// scheduling decisions, promhttp.Handler exposed over net/http).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"kernelforge/internal/balancer"
	"kernelforge/internal/config"
	"kernelforge/internal/kernel"
	"kernelforge/internal/logging"
	"kernelforge/internal/metrics"
	"kernelforge/internal/orchestrator"
	"kernelforge/internal/pool"
	"kernelforge/internal/recovery"
	"kernelforge/internal/types"
)

var childTypes = []types.KernelType{
	types.KernelMicro,
	types.KernelComputational,
	types.KernelArchitectural,
	types.KernelCryptoMicro,
}

func main() {
	cfg := config.Load()
	logging.Init(cfg.Development)
	logger := logging.Named("substrate")
	defer logging.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	registry := prometheus.NewRegistry()

	children, err := buildChildren(cfg, registry)
	if err != nil {
		logger.Fatal("building child kernels failed", zap.Error(err))
	}

	lb := balancer.New(balancer.DefaultConfig(cfg.Strategy))

	parentBase, err := kernel.New(kernel.Config{
		ID:            types.KernelID(cfg.NodeID + "-parent"),
		Type:          types.KernelOrchestration,
		Pool:          pool.Config{MinThreads: cfg.MinThreads, MaxThreads: cfg.MaxThreads, QueueCapacity: cfg.QueueCapacity},
		CacheCapacity: cfg.CacheCapacity,
	})
	if err != nil || !parentBase.Initialize() {
		logger.Fatal("parent base kernel initialization failed", zap.Error(err))
	}

	orchBase, err := kernel.New(kernel.Config{
		ID:            types.KernelID(cfg.NodeID + "-orchestrator"),
		Type:          types.KernelOrchestration,
		Pool:          pool.Config{MinThreads: 1, MaxThreads: 2, QueueCapacity: cfg.QueueCapacity},
		CacheCapacity: cfg.CacheCapacity,
	})
	if err != nil || !orchBase.Initialize() {
		logger.Fatal("orchestrator base kernel initialization failed", zap.Error(err))
	}

	recoveryMgr := recovery.New(recovery.Config{
		MaxPoints:             cfg.RecoveryMaxPoints,
		CheckpointInterval:    time.Minute,
		EnableAutoRecovery:    true,
		EnableStateValidation: true,
		PointConfig: recovery.PointConfig{
			MaxSize:           8 << 20,
			EnableCompression: true,
			StoragePath:       cfg.RecoveryPath,
			RetentionPeriod:   cfg.RetentionPeriod,
		},
	})
	if !recoveryMgr.Initialize() {
		logger.Fatal("recovery manager initialization failed")
	}

	orch := orchestrator.New(orchBase, lb, recoveryMgr)
	parent := kernel.NewParentKernel(parentBase, lb, orch)
	for _, c := range children {
		parent.AddChild(c)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	runLoop(ctx, logger, parent, orch)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	orch.Shutdown()
	parent.Shutdown()
	logger.Info("substrate stopped")
}

func buildChildren(cfg config.Substrate, registry *prometheus.Registry) ([]*kernel.Kernel, error) {
	children := make([]*kernel.Kernel, 0, cfg.ChildCount)
	for i := 0; i < cfg.ChildCount; i++ {
		kt := childTypes[i%len(childTypes)]
		k, err := kernel.New(kernel.Config{
			ID:            types.KernelID(fmt.Sprintf("%s-child-%d", cfg.NodeID, i)),
			Type:          kt,
			Pool:          pool.Config{MinThreads: cfg.MinThreads, MaxThreads: cfg.MaxThreads, QueueCapacity: cfg.QueueCapacity},
			CacheCapacity: cfg.CacheCapacity,
			CacheTTLSeconds: cfg.CacheTTLSeconds,
			HostSampler:   metrics.NewGopsutilSampler(),
		})
		if err != nil {
			return nil, err
		}
		if !k.Initialize() {
			return nil, fmt.Errorf("child %d failed to initialize", i)
		}
		collector := metrics.NewKernelMetricsCollector(string(k.GetID()), string(kt), k.GetExtendedMetrics)
		registry.MustRegister(collector)
		children = append(children, k)
	}
	return children, nil
}

// runLoop samples host metrics, balances a small synthetic task batch,
// and triggers orchestration on a fixed tick, until ctx is cancelled.
func runLoop(ctx context.Context, logger *zap.Logger, parent *kernel.ParentKernel, orch *orchestrator.Kernel) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	var tick int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			parent.UpdateMetrics()

			tasks := []types.TaskDescriptor{
				{Data: []byte(fmt.Sprintf("tick-%d", tick)), Priority: 5, EnqueueTime: time.Now()},
			}
			parent.BalanceLoad(tasks)

			orch.EnqueueTask([]byte(fmt.Sprintf("orchestrated-%d", tick)), 3, "")
			parent.OrchestrateTasks()

			logger.Info("tick complete", zap.Int("tick", tick))
		}
	}
}
