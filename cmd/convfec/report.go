package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dbehnke/convfec/pkg/sim"
	"gopkg.in/yaml.v3"
)

// sweepReport is the YAML document written by -report.
type sweepReport struct {
	Rate       float64 `yaml:"rate"`
	sim.Result `yaml:",inline"`
}

func writeTable(w io.Writer, result *sim.Result, rate float64) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintf(tw, "# %s, %s decisions, rate %.4f, run %s\n", result.Run.Code, result.Run.Metric, rate, result.Run.ID)
	_, _ = fmt.Fprintln(tw, "Eb/N0 dB\tEs/N0 dB\tframes\tbits\terrors\tBER\tFER\t")
	for _, p := range result.Points {
		_, _ = fmt.Fprintf(tw, "%.2f\t%.2f\t%d\t%d\t%d\t%.3e\t%.3e\t\n",
			p.EbN0, p.EsN0, p.Frames, p.Bits, p.Errors, p.BER, p.FER)
	}
	return tw.Flush()
}

func writeReport(path string, result *sim.Result, rate float64) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	data, err := yaml.Marshal(sweepReport{Rate: rate, Result: *result})
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
