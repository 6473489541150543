package config

import (
	"fmt"
	"strings"
)

// validate validates the configuration
func validate(cfg *Config) error {
	// Validate code config
	if _, _, _, err := cfg.Code.Build(); err != nil {
		return fmt.Errorf("code: %w", err)
	}

	// Validate sweep config
	if len(cfg.Sweep.EbN0) == 0 {
		return fmt.Errorf("sweep.ebn0 must list at least one point")
	}
	if cfg.Sweep.FrameBits <= 0 {
		return fmt.Errorf("sweep.frame_bits must be positive")
	}
	if cfg.Sweep.MaxErrors <= 0 {
		return fmt.Errorf("sweep.max_errors must be positive")
	}
	if cfg.Sweep.MaxFrames <= 0 {
		return fmt.Errorf("sweep.max_frames must be positive")
	}
	if cfg.Sweep.Workers <= 0 {
		return fmt.Errorf("sweep.workers must be positive")
	}

	// Validate web config
	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("web.port must be between 1 and 65535")
		}
	}

	// Validate database config
	if cfg.Database.Enabled && strings.TrimSpace(cfg.Database.Path) == "" {
		return fmt.Errorf("database.path is required when database is enabled")
	}

	// Validate MQTT config
	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}

	// Validate logging config
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", cfg.Logging.Level)
	}

	// Validate metrics config
	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		if cfg.Metrics.Prometheus.Port <= 0 || cfg.Metrics.Prometheus.Port > 65535 {
			return fmt.Errorf("metrics.prometheus.port must be between 1 and 65535")
		}
		if !strings.HasPrefix(cfg.Metrics.Prometheus.Path, "/") {
			return fmt.Errorf("metrics.prometheus.path must start with /")
		}
	}

	return nil
}
