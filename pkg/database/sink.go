package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/dbehnke/convfec/pkg/sim"
)

// SweepSink persists sweep results as they arrive. It satisfies sim.Sink.
type SweepSink struct {
	repo *SweepRepository

	mu      sync.Mutex
	created map[string]bool
}

// NewSweepSink creates a sink writing through repo
func NewSweepSink(repo *SweepRepository) *SweepSink {
	return &SweepSink{repo: repo, created: make(map[string]bool)}
}

func (s *SweepSink) ensureRun(run sim.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.created[run.ID] {
		return nil
	}
	if err := s.repo.CreateRun(NewSweepRun(run)); err != nil {
		return fmt.Errorf("failed to store run %s: %w", run.ID, err)
	}
	s.created[run.ID] = true
	return nil
}

// PointDone stores one point, creating the run record on first use
func (s *SweepSink) PointDone(_ context.Context, run sim.Run, p sim.PointResult) error {
	if err := s.ensureRun(run); err != nil {
		return err
	}
	if err := s.repo.AddPoint(NewSweepPoint(run.ID, p)); err != nil {
		return fmt.Errorf("failed to store point %.2f dB: %w", p.EbN0, err)
	}
	return nil
}

// RunDone marks the run finished
func (s *SweepSink) RunDone(_ context.Context, result *sim.Result) error {
	if err := s.ensureRun(result.Run); err != nil {
		return err
	}
	if err := s.repo.FinishRun(result.Run.ID, result.FinishedAt); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.created, result.Run.ID)
	s.mu.Unlock()
	return nil
}
