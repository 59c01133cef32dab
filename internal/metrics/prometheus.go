package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// KernelMetricsCollector exposes a kernel's ExtendedMetrics as
// Prometheus gauges under a caller-chosen kernel id label, the way
// beemesh-beemesh wires prometheus/client_golang + promhttp in its
// root main.go. The core never starts an HTTP server itself (spec.md
// §1's out-of-scope list); it only implements prometheus.Collector so
// an embedding process can register it.
type KernelMetricsCollector struct {
	kernelID string
	kernelType string
	snapshot func() ExtendedMetrics

	load        *prometheus.Desc
	latency     *prometheus.Desc
	cacheEff    *prometheus.Desc
	bandwidth   *prometheus.Desc
	activeTasks *prometheus.Desc
	cpuUsage    *prometheus.Desc
	memUsage    *prometheus.Desc
}

// NewKernelMetricsCollector builds a collector that calls snapshot() on
// every Prometheus scrape.
func NewKernelMetricsCollector(kernelID, kernelType string, snapshot func() ExtendedMetrics) *KernelMetricsCollector {
	labels := []string{"kernel_id", "kernel_type"}
	return &KernelMetricsCollector{
		kernelID:   kernelID,
		kernelType: kernelType,
		snapshot:   snapshot,
		load:        prometheus.NewDesc("substrate_kernel_load", "Current kernel load.", labels, nil),
		latency:     prometheus.NewDesc("substrate_kernel_latency_seconds", "Estimated kernel latency (queued tasks x 1ms).", labels, nil),
		cacheEff:    prometheus.NewDesc("substrate_kernel_cache_efficiency", "Kernel cache fill ratio (entries / capacity).", labels, nil),
		bandwidth:   prometheus.NewDesc("substrate_kernel_tunnel_bandwidth", "Kernel tunnel bandwidth.", labels, nil),
		activeTasks: prometheus.NewDesc("substrate_kernel_active_tasks", "In-flight task count.", labels, nil),
		cpuUsage:    prometheus.NewDesc("substrate_kernel_cpu_usage", "Fractional CPU usage.", labels, nil),
		memUsage:    prometheus.NewDesc("substrate_kernel_memory_usage", "Fractional memory usage.", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *KernelMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.load
	ch <- c.latency
	ch <- c.cacheEff
	ch <- c.bandwidth
	ch <- c.activeTasks
	ch <- c.cpuUsage
	ch <- c.memUsage
}

// Collect implements prometheus.Collector.
func (c *KernelMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.snapshot()
	lv := []string{c.kernelID, c.kernelType}
	ch <- prometheus.MustNewConstMetric(c.load, prometheus.GaugeValue, m.Load, lv...)
	ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, m.Latency, lv...)
	ch <- prometheus.MustNewConstMetric(c.cacheEff, prometheus.GaugeValue, m.CacheEfficiency, lv...)
	ch <- prometheus.MustNewConstMetric(c.bandwidth, prometheus.GaugeValue, m.TunnelBandwidth, lv...)
	ch <- prometheus.MustNewConstMetric(c.activeTasks, prometheus.GaugeValue, float64(m.ActiveTasks), lv...)
	ch <- prometheus.MustNewConstMetric(c.cpuUsage, prometheus.GaugeValue, m.CPUUsage, lv...)
	ch <- prometheus.MustNewConstMetric(c.memUsage, prometheus.GaugeValue, m.MemoryUsage, lv...)
}
