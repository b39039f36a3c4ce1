// Package metrics records build statistics with Prometheus collectors.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/zerr"
)

const namespace = "wasmblock"

var (
	_ ports.Metrics = (*Recorder)(nil)
	_ ports.Metrics = Noop{}
)

// Recorder implements ports.Metrics on a private Prometheus registry.
type Recorder struct {
	reg           *prom.Registry
	blockDuration *prom.HistogramVec
	blocks        *prom.CounterVec
	batchDuration prom.Histogram
	batchBlocks   prom.Gauge
}

// NewRecorder creates the collectors and registers them on reg.
// A nil reg selects a fresh registry.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	r := &Recorder{
		reg: reg,
		blockDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "block_duration_seconds",
			Help:      "Duration of block builds including cache restores",
			Buckets:   prom.ExponentialBuckets(0.01, 4, 8),
		}, []string{"backend", "outcome"}),
		blocks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_total",
			Help:      "Block builds by backend and outcome",
		}, []string{"backend", "outcome"}),
		batchDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of whole document builds",
			Buckets:   prom.DefBuckets,
		}),
		batchBlocks: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_blocks",
			Help:      "Number of blocks in the last document build",
		}),
	}
	reg.MustRegister(r.blockDuration, r.blocks, r.batchDuration, r.batchBlocks)

	return r
}

// ObserveBlock records one block build.
func (r *Recorder) ObserveBlock(backend, outcome string, d time.Duration) {
	r.blockDuration.WithLabelValues(backend, outcome).Observe(d.Seconds())
	r.blocks.WithLabelValues(backend, outcome).Inc()
}

// ObserveBatch records one document build.
func (r *Recorder) ObserveBatch(blocks int, d time.Duration) {
	r.batchDuration.Observe(d.Seconds())
	r.batchBlocks.Set(float64(blocks))
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prom.Registry {
	return r.reg
}

// WriteFile writes the collected metrics in the text exposition format,
// for the node exporter textfile collector.
func (r *Recorder) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create metrics directory"), "path", path)
	}
	if err := prom.WriteToTextfile(path, r.reg); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write metrics"), "path", path)
	}
	return nil
}

// Noop discards all observations.
type Noop struct{}

// ObserveBlock does nothing.
func (Noop) ObserveBlock(string, string, time.Duration) {}

// ObserveBatch does nothing.
func (Noop) ObserveBatch(int, time.Duration) {}
