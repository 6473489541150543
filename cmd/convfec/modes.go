package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/dbehnke/convfec/pkg/config"
	"github.com/dbehnke/convfec/pkg/database"
	"github.com/dbehnke/convfec/pkg/fec"
	"github.com/dbehnke/convfec/pkg/logger"
	"github.com/dbehnke/convfec/pkg/metrics"
	"github.com/dbehnke/convfec/pkg/mqtt"
	"github.com/dbehnke/convfec/pkg/sim"
	"github.com/dbehnke/convfec/pkg/web"
)

// runEncode encodes a bit string from the zero state and prints the
// transmitted symbols, punctured when a pattern is configured.
func runEncode(cfg *config.Config, input string, w io.Writer, log *logger.Logger) error {
	code, _, pattern, err := cfg.Code.Build()
	if err != nil {
		return err
	}
	bits, err := fec.ParseBits(input)
	if err != nil {
		return err
	}

	var symbols []uint8
	var end fec.State
	if cfg.Code.Terminate {
		symbols, err = code.EncodeTerminated(bits, 0)
	} else {
		symbols, end, err = code.Encode(bits, 0)
	}
	if err != nil {
		return err
	}
	if pattern != nil {
		if symbols, err = fec.Puncture(symbols, pattern); err != nil {
			return err
		}
	}

	log.Debug("Encoded",
		logger.Int("bits", len(bits)),
		logger.Int("symbols", len(symbols)),
		logger.String("end_state", code.FormatState(end)))
	_, err = fmt.Fprintln(w, fec.FormatBits(symbols))
	return err
}

// runDecode decodes received values (0/1 for hard decisions, quantizer
// levels for soft) and prints the information bits. The zero tail is
// stripped when termination is configured.
func runDecode(cfg *config.Config, input string, w io.Writer) error {
	code, metric, pattern, err := cfg.Code.Build()
	if err != nil {
		return err
	}
	received, err := parseSymbols(input)
	if err != nil {
		return err
	}
	if pattern != nil {
		stages, err := pattern.Stages(len(received))
		if err != nil {
			return err
		}
		if received, err = fec.Depuncture(received, pattern, stages); err != nil {
			return err
		}
	}

	bits, err := code.Decode(received, metric)
	if err != nil {
		return err
	}
	if cfg.Code.Terminate {
		tail := code.ConstraintLength() - 1
		if len(bits) < tail {
			return fmt.Errorf("%w: %d stages is shorter than the zero tail", fec.ErrInvalidInput, len(bits))
		}
		bits = bits[:len(bits)-tail]
	}
	_, err = fmt.Fprintln(w, fec.FormatBits(bits))
	return err
}

// parseSymbols reads integers separated by whitespace or commas. A bare
// 0/1 string without separators is read one symbol per character.
func parseSymbols(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) == 1 && len(fields[0]) > 1 && strings.Trim(fields[0], "01") == "" {
		bits, err := fec.ParseBits(fields[0])
		if err != nil {
			return nil, err
		}
		out := make([]int, len(bits))
		for i, b := range bits {
			out[i] = int(b)
		}
		return out, nil
	}

	out := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: symbol %q is not an integer", fec.ErrInvalidInput, f)
		}
		out = append(out, v)
	}
	return out, nil
}

// runSweep runs one BER sweep, prints a table and optionally writes a YAML
// report. Results also go to the database and MQTT when enabled.
func runSweep(ctx context.Context, cfg *config.Config, reportPath string, w io.Writer, log *logger.Logger) error {
	plan, err := sim.PlanFromConfig(cfg.Code, cfg.Sweep)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	runner := sim.NewRunner(log, collector)

	if cfg.Database.Enabled {
		db, err := database.NewDB(database.Config{Path: cfg.Database.Path}, log)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = db.Close() }()
		runner.AddSink(database.NewSweepSink(database.NewSweepRepository(db.GetDB())))
	}

	if cfg.MQTT.Enabled {
		pub := mqtt.New(mqttConfig(cfg.MQTT), log)
		if err := pub.Start(ctx); err != nil {
			log.Warn("MQTT unavailable, sweep will not be published", logger.Error(err))
		} else {
			defer pub.Stop()
			runner.AddSink(pub)
		}
	}

	result, err := runner.Run(ctx, plan)
	if err != nil {
		return err
	}

	if err := writeTable(w, result, plan.CodeRate()); err != nil {
		return err
	}
	if reportPath != "" {
		if err := writeReport(reportPath, result, plan.CodeRate()); err != nil {
			return err
		}
		log.Info("Sweep report written", logger.String("path", reportPath))
	}
	return nil
}

// runServe starts the metrics server, MQTT publisher and web API, runs one
// background sweep whose results stream to every sink, and blocks until ctx
// is cancelled.
func runServe(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	plan, err := sim.PlanFromConfig(cfg.Code, cfg.Sweep)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Initialize wait group for goroutines
	var wg sync.WaitGroup

	collector := metrics.NewCollector()
	runner := sim.NewRunner(log, collector)

	// Start Prometheus metrics server if enabled
	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		metricsServer := metrics.NewPrometheusServer(
			metrics.PrometheusConfig{
				Enabled: cfg.Metrics.Prometheus.Enabled,
				Port:    cfg.Metrics.Prometheus.Port,
				Path:    cfg.Metrics.Prometheus.Path,
			},
			collector,
			log.WithComponent("metrics"),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Prometheus metrics server error", logger.Error(err))
			}
		}()
	}

	var runs web.RunStore
	if cfg.Database.Enabled {
		db, err := database.NewDB(database.Config{Path: cfg.Database.Path}, log)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = db.Close() }()
		repo := database.NewSweepRepository(db.GetDB())
		runs = repo
		runner.AddSink(database.NewSweepSink(repo))
	}

	// Initialize MQTT publisher if enabled
	var mqttPublisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		mqttPublisher = mqtt.New(mqttConfig(cfg.MQTT), log)
		if err := mqttPublisher.Start(ctx); err != nil {
			log.Warn("MQTT unavailable, sweeps will not be published", logger.Error(err))
			mqttPublisher = nil
		} else {
			runner.AddSink(mqttPublisher)
		}
	}

	// Start web server if enabled
	if cfg.Web.Enabled {
		code, metric, pattern, err := cfg.Code.Build()
		if err != nil {
			return err
		}
		server := web.NewServer(cfg.Web, web.NewAPI(code, metric, pattern, runs, log), log)
		runner.AddSink(server.GetHub())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Web server error", logger.Error(err))
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		result, err := runner.Run(ctx, plan)
		if err != nil {
			if err != context.Canceled {
				log.Error("Background sweep failed", logger.Error(err))
			}
			return
		}
		log.Info("Background sweep finished",
			logger.String("run_id", result.Run.ID),
			logger.Int("points", len(result.Points)))
	}()

	log.Info("convfec initialized", logger.String("code", plan.Code.String()))

	<-ctx.Done()
	log.Info("Shutting down")

	// Stop MQTT publisher if running
	if mqttPublisher != nil {
		mqttPublisher.Stop()
	}

	// Wait for all components to stop
	wg.Wait()

	log.Info("convfec stopped")
	return nil
}

func mqttConfig(c config.MQTTConfig) mqtt.Config {
	return mqtt.Config{
		Enabled:     c.Enabled,
		Broker:      c.Broker,
		TopicPrefix: c.TopicPrefix,
		ClientID:    c.ClientID,
		Username:    c.Username,
		Password:    c.Password,
		QoS:         c.QoS,
		Retained:    c.Retained,
	}
}
