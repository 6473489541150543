// Package sim runs Monte-Carlo bit error rate sweeps of a convolutional code
// over a BPSK/AWGN channel and reports each measured point to a set of sinks.
package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dbehnke/convfec/pkg/channel"
	"github.com/dbehnke/convfec/pkg/config"
	"github.com/dbehnke/convfec/pkg/fec"
	"github.com/dbehnke/convfec/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Plan describes one sweep.
type Plan struct {
	Code      *fec.Code
	Metric    fec.Metric
	Puncture  *fec.PuncturePattern // nil for the unpunctured mother code
	Terminate bool

	EbN0      []float64 // dB
	FrameBits int
	MaxErrors int
	MaxFrames int
	Workers   int
	Seed      uint64
}

// PlanFromConfig builds a Plan from the code and sweep configuration sections.
func PlanFromConfig(code config.CodeConfig, sweep config.SweepConfig) (Plan, error) {
	c, metric, pattern, err := code.Build()
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Code:      c,
		Metric:    metric,
		Puncture:  pattern,
		Terminate: code.Terminate,
		EbN0:      append([]float64(nil), sweep.EbN0...),
		FrameBits: sweep.FrameBits,
		MaxErrors: sweep.MaxErrors,
		MaxFrames: sweep.MaxFrames,
		Workers:   sweep.Workers,
		Seed:      sweep.Seed,
	}, nil
}

func (p *Plan) validate() error {
	switch {
	case p.Code == nil:
		return fmt.Errorf("%w: plan has no code", fec.ErrConfiguration)
	case p.Metric == nil:
		return fmt.Errorf("%w: plan has no metric", fec.ErrConfiguration)
	case len(p.EbN0) == 0:
		return fmt.Errorf("%w: plan has no Eb/N0 points", fec.ErrConfiguration)
	case p.FrameBits <= 0 || p.MaxFrames <= 0 || p.MaxErrors <= 0:
		return fmt.Errorf("%w: frame_bits, max_frames and max_errors must be positive", fec.ErrConfiguration)
	}
	if p.Puncture != nil && p.Puncture.Rows() != p.Code.Rate() {
		return fmt.Errorf("%w: puncture pattern has %d rows for %d generators",
			fec.ErrConfiguration, p.Puncture.Rows(), p.Code.Rate())
	}
	switch p.Metric.(type) {
	case fec.HardMetric, fec.SoftMetric:
	default:
		return fmt.Errorf("%w: metric %s has no channel front end", fec.ErrConfiguration, p.Metric.Name())
	}
	return nil
}

// CodeRate returns information bits per transmitted channel symbol,
// including puncturing and the zero-tail overhead.
func (p *Plan) CodeRate() float64 {
	rate := 1 / float64(p.Code.Rate())
	if p.Puncture != nil {
		num, den := p.Puncture.Rate()
		rate = float64(num) / float64(den)
	}
	if p.Terminate {
		tail := p.Code.ConstraintLength() - 1
		rate *= float64(p.FrameBits) / float64(p.FrameBits+tail)
	}
	return rate
}

// Observer receives per-frame and per-point counters. metrics.Collector
// satisfies it.
type Observer interface {
	FrameDecoded(stages, bits, errors int)
	PointCompleted(ebn0dB, ber float64, elapsed time.Duration)
	RunStarted()
	RunFinished()
}

// Sink receives sweep results as they are produced. PointDone is called
// from worker goroutines and must be safe for concurrent use.
type Sink interface {
	PointDone(ctx context.Context, run Run, point PointResult) error
	RunDone(ctx context.Context, result *Result) error
}

// Runner executes sweep plans.
type Runner struct {
	log      *logger.Logger
	observer Observer
	sinks    []Sink
}

// NewRunner creates a runner. observer may be nil.
func NewRunner(log *logger.Logger, observer Observer, sinks ...Sink) *Runner {
	if log == nil {
		log = logger.New(logger.Config{Level: "info"})
	}
	return &Runner{
		log:      log.WithComponent("sim"),
		observer: observer,
		sinks:    sinks,
	}
}

// AddSink registers another result sink. Not safe to call during Run.
func (r *Runner) AddSink(s Sink) {
	r.sinks = append(r.sinks, s)
}

// Run measures every point of the plan, at most plan.Workers at a time.
// Points are returned in plan order. A cancelled context stops the sweep
// between frames and Run returns the context error.
func (r *Runner) Run(ctx context.Context, plan Plan) (*Result, error) {
	if err := plan.validate(); err != nil {
		return nil, err
	}
	workers := plan.Workers
	if workers <= 0 {
		workers = 1
	}

	run := newRun(plan)
	log := r.log.With(logger.String("run", run.ID))
	log.Info("Sweep started",
		logger.String("code", run.Code),
		logger.String("metric", run.Metric),
		logger.Int("points", len(plan.EbN0)),
		logger.Int("workers", workers))

	if r.observer != nil {
		r.observer.RunStarted()
		defer r.observer.RunFinished()
	}

	points := make([]PointResult, len(plan.EbN0))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, ebn0 := range plan.EbN0 {
		g.Go(func() error {
			point, err := r.runPoint(gCtx, &plan, i, ebn0)
			if err != nil {
				return err
			}
			points[i] = point

			log.Info("Sweep point done",
				logger.Float64("ebn0_db", point.EbN0),
				logger.Int("frames", point.Frames),
				logger.Int("errors", point.Errors),
				logger.Float64("ber", point.BER),
				logger.Duration("elapsed", point.Elapsed))

			if r.observer != nil {
				r.observer.PointCompleted(point.EbN0, point.BER, point.Elapsed)
			}
			for _, s := range r.sinks {
				if err := s.PointDone(gCtx, run, point); err != nil {
					log.Warn("Sink rejected sweep point", logger.Error(err))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Warn("Sweep aborted", logger.Error(err))
		return nil, err
	}

	result := &Result{Run: run, Points: points, FinishedAt: time.Now().UTC()}
	for _, s := range r.sinks {
		if err := s.RunDone(ctx, result); err != nil {
			log.Warn("Sink rejected sweep result", logger.Error(err))
		}
	}

	log.Info("Sweep finished", logger.Duration("elapsed", result.FinishedAt.Sub(run.StartedAt)))
	return result, nil
}

func newRun(plan Plan) Run {
	run := Run{
		ID:         uuid.NewString(),
		Code:       plan.Code.String(),
		Generators: plan.Code.Generators(),
		Depth:      plan.Code.DecisionDepth(),
		Metric:     plan.Metric.Name(),
		Terminate:  plan.Terminate,
		FrameBits:  plan.FrameBits,
		Seed:       plan.Seed,
		StartedAt:  time.Now().UTC(),
	}
	if plan.Puncture != nil {
		run.Puncture = plan.Puncture.String()
	}
	return run
}

// runPoint simulates frames at one Eb/N0 until MaxErrors bit errors or
// MaxFrames frames, whichever comes first.
func (r *Runner) runPoint(ctx context.Context, plan *Plan, index int, ebn0 float64) (PointResult, error) {
	start := time.Now()
	esn0 := channel.EbN0ToEsN0(ebn0, plan.CodeRate())

	src := rand.New(rand.NewPCG(plan.Seed, uint64(index)))
	noise := channel.NewAWGN(esn0, plan.Seed^(uint64(index+1)*0xbf58476d1ce4e5b9))
	front, err := newFrontEnd(plan.Metric)
	if err != nil {
		return PointResult{}, err
	}

	point := PointResult{EbN0: ebn0, EsN0: esn0}
	info := make([]uint8, plan.FrameBits)

	for point.Frames < plan.MaxFrames && point.Errors < plan.MaxErrors {
		if err := ctx.Err(); err != nil {
			return PointResult{}, err
		}

		for j := range info {
			info[j] = uint8(src.IntN(2))
		}
		stages, errs, err := transmitFrame(plan, info, noise, front)
		if err != nil {
			return PointResult{}, err
		}

		point.Frames++
		point.Bits += len(info)
		point.Errors += errs
		if errs > 0 {
			point.FrameErrors++
		}
		if r.observer != nil {
			r.observer.FrameDecoded(stages, len(info), errs)
		}
	}

	point.BER = float64(point.Errors) / float64(point.Bits)
	point.FER = float64(point.FrameErrors) / float64(point.Frames)
	point.Elapsed = time.Since(start)
	return point, nil
}

// transmitFrame pushes one frame through encoder, channel and decoder and
// returns the number of trellis stages decoded and the information bit errors.
func transmitFrame(plan *Plan, info []uint8, noise *channel.AWGN, front frontEnd) (int, int, error) {
	var coded []uint8
	var err error
	if plan.Terminate {
		coded, err = plan.Code.EncodeTerminated(info, 0)
	} else {
		coded, _, err = plan.Code.Encode(info, 0)
	}
	if err != nil {
		return 0, 0, err
	}
	stages := len(coded) / plan.Code.Rate()

	if plan.Puncture != nil {
		if coded, err = fec.Puncture(coded, plan.Puncture); err != nil {
			return 0, 0, err
		}
	}

	received := front(noise.Apply(channel.BPSK(coded)))

	if plan.Puncture != nil {
		if received, err = fec.Depuncture(received, plan.Puncture, stages); err != nil {
			return 0, 0, err
		}
	}

	decoded, err := plan.Code.Decode(received, plan.Metric)
	if err != nil {
		return 0, 0, err
	}
	errs, _ := channel.CountErrors(info, decoded[:len(info)])
	return stages, errs, nil
}

// frontEnd turns noisy channel samples into decoder input values.
type frontEnd func([]float64) []int

func newFrontEnd(metric fec.Metric) (frontEnd, error) {
	switch m := metric.(type) {
	case fec.HardMetric:
		return channel.HardSlice, nil
	case fec.SoftMetric:
		q, err := channel.NewQuantizer(m.Bits)
		if err != nil {
			return nil, err
		}
		return q.Quantize, nil
	default:
		return nil, fmt.Errorf("%w: metric %s has no channel front end", fec.ErrConfiguration, metric.Name())
	}
}
