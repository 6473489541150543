package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector collects decoder and BER sweep metrics
type Collector struct {
	registry *prometheus.Registry

	stagesDecoded prometheus.Counter
	bitsDecoded   prometheus.Counter
	bitErrors     prometheus.Counter
	frames        prometheus.Counter
	points        prometheus.Counter
	activeRuns    prometheus.Gauge
	pointBER      *prometheus.GaugeVec
	pointDuration prometheus.Histogram

	mu sync.RWMutex

	// Local totals for the getters
	totalStages uint64
	totalBits   uint64
	totalErrors uint64
	totalFrames uint64
	totalPoints uint64
	runs        int
}

// NewCollector creates a new metrics collector with its own registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		stagesDecoded: factory.NewCounter(prometheus.CounterOpts{
			Name: "convfec_stages_decoded_total",
			Help: "Total trellis stages processed by the Viterbi decoder",
		}),
		bitsDecoded: factory.NewCounter(prometheus.CounterOpts{
			Name: "convfec_bits_decoded_total",
			Help: "Total information bits emitted by the decoder",
		}),
		bitErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "convfec_bit_errors_total",
			Help: "Total decoded bits that differed from the transmitted bits",
		}),
		frames: factory.NewCounter(prometheus.CounterOpts{
			Name: "convfec_frames_total",
			Help: "Total simulated frames",
		}),
		points: factory.NewCounter(prometheus.CounterOpts{
			Name: "convfec_sweep_points_total",
			Help: "Total completed BER sweep points",
		}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "convfec_sweep_runs_active",
			Help: "Number of BER sweeps currently running",
		}),
		pointBER: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "convfec_point_ber",
			Help: "Most recent measured bit error rate per Eb/N0 point",
		}, []string{"ebn0_db"}),
		pointDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "convfec_point_duration_seconds",
			Help:    "Wall time spent simulating one sweep point",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}

// Registry returns the registry the collector's metrics live in
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// FrameDecoded records one decoded frame
func (c *Collector) FrameDecoded(stages, bits, errors int) {
	c.stagesDecoded.Add(float64(stages))
	c.bitsDecoded.Add(float64(bits))
	c.bitErrors.Add(float64(errors))
	c.frames.Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalStages += uint64(stages)
	c.totalBits += uint64(bits)
	c.totalErrors += uint64(errors)
	c.totalFrames++
}

// PointCompleted records a finished sweep point
func (c *Collector) PointCompleted(ebn0dB, ber float64, elapsed time.Duration) {
	c.points.Inc()
	c.pointBER.WithLabelValues(strconv.FormatFloat(ebn0dB, 'f', -1, 64)).Set(ber)
	c.pointDuration.Observe(elapsed.Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalPoints++
}

// RunStarted records a sweep start
func (c *Collector) RunStarted() {
	c.activeRuns.Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.runs++
}

// RunFinished records a sweep end
func (c *Collector) RunFinished() {
	c.activeRuns.Dec()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runs > 0 {
		c.runs--
	}
}

// Getters for metrics

// GetStagesDecoded returns total trellis stages decoded
func (c *Collector) GetStagesDecoded() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalStages
}

// GetBitsDecoded returns total information bits decoded
func (c *Collector) GetBitsDecoded() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalBits
}

// GetBitErrors returns total bit errors counted
func (c *Collector) GetBitErrors() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalErrors
}

// GetFrames returns total simulated frames
func (c *Collector) GetFrames() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalFrames
}

// GetPoints returns total completed sweep points
func (c *Collector) GetPoints() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalPoints
}

// GetActiveRuns returns the number of running sweeps
func (c *Collector) GetActiveRuns() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runs
}
