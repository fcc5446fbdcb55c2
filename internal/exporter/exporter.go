// Package exporter publishes decoded voltage tables as Prometheus metrics.
package exporter

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	dvfs "github.com/BinSquare/dvfs-go"
)

const namespace = "dvfs"

var (
	voltageDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "operating_point", "voltage_millivolts"),
		"Voltage of a decoded operating point in mV (0 when unsupported)",
		[]string{"chip", "domain", "frequency_mhz"}, nil,
	)
	pointsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "operating_points"),
		"Number of decoded operating points per domain",
		[]string{"chip", "domain"}, nil,
	)
)

// Collector exposes the most recent Result. It is safe for concurrent use.
type Collector struct {
	mu     sync.RWMutex
	result dvfs.Result

	entryErrors  prometheus.Counter
	sourceErrors prometheus.Counter
	lastRefresh  prometheus.Gauge
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		entryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entry_errors_total",
			Help:      "Voltage-states entries that failed to decode",
		}),
		sourceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Refreshes that could not read the registry dump",
		}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful refresh",
		}),
	}
}

// Update replaces the published result.
func (c *Collector) Update(r dvfs.Result) {
	c.mu.Lock()
	c.result = r
	c.mu.Unlock()

	c.entryErrors.Add(float64(len(r.EntryErrors)))
	c.lastRefresh.SetToCurrentTime()
}

// SourceFailed records a refresh that could not obtain its text.
func (c *Collector) SourceFailed() {
	c.sourceErrors.Inc()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- voltageDesc
	ch <- pointsDesc
	c.entryErrors.Describe(ch)
	c.sourceErrors.Describe(ch)
	c.lastRefresh.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	result := c.result
	c.mu.RUnlock()

	chip := result.Chip
	counts := make(map[dvfs.Domain]int)
	seen := make(map[string]bool)
	for _, p := range result.Points {
		counts[p.Domain]++

		freq := strconv.FormatFloat(p.FrequencyMHz, 'f', -1, 64)
		key := p.Domain.String() + "/" + freq
		if seen[key] {
			// Repeated tables for a domain would collide on labels; first wins.
			continue
		}
		seen[key] = true

		ch <- prometheus.MustNewConstMetric(voltageDesc, prometheus.GaugeValue, p.VoltageMV,
			chip, p.Domain.String(), freq)
	}

	for _, d := range dvfs.Domains {
		ch <- prometheus.MustNewConstMetric(pointsDesc, prometheus.GaugeValue, float64(counts[d]),
			chip, d.String())
	}

	c.entryErrors.Collect(ch)
	c.sourceErrors.Collect(ch)
	c.lastRefresh.Collect(ch)
}

// Refresh parses src once and publishes the result.
func (c *Collector) Refresh(ctx context.Context, parser *dvfs.Parser, src dvfs.Source) error {
	result, err := parser.ParseSource(ctx, src)
	if err != nil {
		c.SourceFailed()
		return err
	}
	c.Update(result)
	return nil
}

// Serve refreshes the collector from src every interval and serves /metrics
// on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, interval time.Duration, parser *dvfs.Parser, src dvfs.Source) error {
	collector := NewCollector()
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)

	if err := collector.Refresh(ctx, parser, src); err != nil {
		klog.ErrorS(err, "Initial refresh failed", "source", src.Name())
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := collector.Refresh(ctx, parser, src); err != nil {
					klog.ErrorS(err, "Refresh failed", "source", src.Name())
					continue
				}
				klog.V(2).InfoS("Refreshed voltage tables", "source", src.Name())
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	klog.InfoS("Starting metrics server", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
