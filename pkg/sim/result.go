package sim

import "time"

// Run identifies a sweep and the code it measured.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	Code       string    `json:"code" yaml:"code"`
	Generators []string  `json:"generators" yaml:"generators"`
	Depth      int       `json:"depth" yaml:"depth"`
	Metric     string    `json:"metric" yaml:"metric"`
	Puncture   string    `json:"puncture,omitempty" yaml:"puncture,omitempty"`
	Terminate  bool      `json:"terminate" yaml:"terminate"`
	FrameBits  int       `json:"frame_bits" yaml:"frame_bits"`
	Seed       uint64    `json:"seed" yaml:"seed"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
}

// PointResult is the measurement at one Eb/N0.
type PointResult struct {
	EbN0        float64       `json:"ebn0_db" yaml:"ebn0_db"`
	EsN0        float64       `json:"esn0_db" yaml:"esn0_db"`
	Frames      int           `json:"frames" yaml:"frames"`
	Bits        int           `json:"bits" yaml:"bits"`
	Errors      int           `json:"errors" yaml:"errors"`
	FrameErrors int           `json:"frame_errors" yaml:"frame_errors"`
	BER         float64       `json:"ber" yaml:"ber"`
	FER         float64       `json:"fer" yaml:"fer"`
	Elapsed     time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Result is a completed sweep.
type Result struct {
	Run        Run           `json:"run" yaml:"run"`
	Points     []PointResult `json:"points" yaml:"points"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
}
