package database

import (
	"strings"
	"time"

	"github.com/dbehnke/convfec/pkg/sim"
	"gorm.io/gorm"
)

// SweepRun represents one BER sweep of a code
type SweepRun struct {
	ID         string       `gorm:"primarykey;size:36" json:"id"`
	Code       string       `gorm:"size:128;not null" json:"code"`
	Generators string       `gorm:"size:256;not null" json:"generators"` // comma separated
	Depth      int          `gorm:"not null" json:"depth"`
	Metric     string       `gorm:"size:16;not null" json:"metric"`
	Puncture   string       `gorm:"size:128" json:"puncture,omitempty"`
	Terminate  bool         `json:"terminate"`
	FrameBits  int          `gorm:"not null" json:"frame_bits"`
	Seed       uint64       `json:"seed"`
	StartedAt  time.Time    `gorm:"index;not null" json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Points     []SweepPoint `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"points,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// TableName specifies the table name for SweepRun
func (SweepRun) TableName() string {
	return "sweep_runs"
}

// BeforeCreate hook to ensure StartedAt is set
func (r *SweepRun) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	return nil
}

// Finished reports whether the sweep completed
func (r *SweepRun) Finished() bool {
	return r.FinishedAt != nil
}

// GeneratorList splits the stored generators back into their strings
func (r *SweepRun) GeneratorList() []string {
	if r.Generators == "" {
		return nil
	}
	return strings.Split(r.Generators, ",")
}

// SweepPoint represents the measurement at one Eb/N0 of a run
type SweepPoint struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	RunID       string    `gorm:"size:36;index;not null;uniqueIndex:idx_run_ebn0" json:"run_id"`
	EbN0        float64   `gorm:"column:ebn0_db;not null;uniqueIndex:idx_run_ebn0" json:"ebn0_db"`
	EsN0        float64   `gorm:"column:esn0_db;not null" json:"esn0_db"`
	Frames      int       `gorm:"not null" json:"frames"`
	Bits        int       `gorm:"not null" json:"bits"`
	Errors      int       `gorm:"not null" json:"errors"`
	FrameErrors int       `gorm:"not null" json:"frame_errors"`
	BER         float64   `gorm:"column:ber;not null" json:"ber"`
	FER         float64   `gorm:"column:fer;not null" json:"fer"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for SweepPoint
func (SweepPoint) TableName() string {
	return "sweep_points"
}

// NewSweepRun converts a sim run into its database record
func NewSweepRun(run sim.Run) *SweepRun {
	return &SweepRun{
		ID:         run.ID,
		Code:       run.Code,
		Generators: strings.Join(run.Generators, ","),
		Depth:      run.Depth,
		Metric:     run.Metric,
		Puncture:   run.Puncture,
		Terminate:  run.Terminate,
		FrameBits:  run.FrameBits,
		Seed:       run.Seed,
		StartedAt:  run.StartedAt,
	}
}

// NewSweepPoint converts a sim point result into its database record
func NewSweepPoint(runID string, p sim.PointResult) *SweepPoint {
	return &SweepPoint{
		RunID:       runID,
		EbN0:        p.EbN0,
		EsN0:        p.EsN0,
		Frames:      p.Frames,
		Bits:        p.Bits,
		Errors:      p.Errors,
		FrameErrors: p.FrameErrors,
		BER:         p.BER,
		FER:         p.FER,
		ElapsedMs:   p.Elapsed.Milliseconds(),
	}
}
