package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/dbehnke/convfec/pkg/fec"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Code     CodeConfig     `mapstructure:"code"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Web      WebConfig      `mapstructure:"web"`
	Database DatabaseConfig `mapstructure:"database"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// CodeConfig describes the convolutional code and how it is decoded
type CodeConfig struct {
	Generators []string `mapstructure:"generators"` // newest tap first, e.g. ["111", "101"]
	Depth      int      `mapstructure:"depth"`      // decision depth in trellis stages
	Metric     string   `mapstructure:"metric"`     // hard or soft
	QuantBits  int      `mapstructure:"quant_bits"` // soft decision width
	Puncture   []string `mapstructure:"puncture"`   // optional keep/drop rows, one per generator
	Terminate  bool     `mapstructure:"terminate"`  // append L-1 zero tail bits
}

// SweepConfig holds BER simulation parameters
type SweepConfig struct {
	EbN0      []float64 `mapstructure:"ebn0"` // dB
	FrameBits int       `mapstructure:"frame_bits"`
	MaxErrors int       `mapstructure:"max_errors"` // stop a point after this many bit errors
	MaxFrames int       `mapstructure:"max_frames"` // hard cap on frames per point
	Workers   int       `mapstructure:"workers"`
	Seed      uint64    `mapstructure:"seed"`
}

// WebConfig holds HTTP API configuration
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// DatabaseConfig holds sweep result storage configuration
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MQTTConfig holds MQTT client configuration
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	QoS         byte   `mapstructure:"qos"`
	Retained    bool   `mapstructure:"retained"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus metrics configuration
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from file and CONVFEC_* environment variables
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("convfec")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/convfec")
	}

	v.SetEnvPrefix("CONVFEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is OK, use defaults
		} else if os.IsNotExist(err) {
			// File explicitly specified but doesn't exist - that's also OK
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Code defaults: K=3 rate 1/2, the textbook (7,5) code
	v.SetDefault("code.generators", []string{"111", "101"})
	v.SetDefault("code.depth", 10)
	v.SetDefault("code.metric", "soft")
	v.SetDefault("code.quant_bits", 3)
	v.SetDefault("code.puncture", []string{})
	v.SetDefault("code.terminate", true)

	// Sweep defaults
	v.SetDefault("sweep.ebn0", []float64{0, 1, 2, 3, 4, 5, 6})
	v.SetDefault("sweep.frame_bits", 1000)
	v.SetDefault("sweep.max_errors", 100)
	v.SetDefault("sweep.max_frames", 1000)
	v.SetDefault("sweep.workers", 4)
	v.SetDefault("sweep.seed", 1)

	// Web defaults
	v.SetDefault("web.enabled", true)
	v.SetDefault("web.host", "0.0.0.0")
	v.SetDefault("web.port", 8080)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.path", "data/convfec.db")

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.topic_prefix", "convfec")
	v.SetDefault("mqtt.client_id", "convfec")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.retained", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.prometheus.enabled", true)
	v.SetDefault("metrics.prometheus.port", 9090)
	v.SetDefault("metrics.prometheus.path", "/metrics")
}

// Build turns the code section into a ready code, its branch metric and
// the optional puncture pattern (nil when puncturing is off).
func (c CodeConfig) Build() (*fec.Code, fec.Metric, *fec.PuncturePattern, error) {
	code, err := fec.NewCode(c.Generators, c.Depth)
	if err != nil {
		return nil, nil, nil, err
	}
	metric, err := fec.ParseMetric(c.Metric, c.QuantBits)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(c.Puncture) == 0 {
		return code, metric, nil, nil
	}
	pattern, err := fec.NewPuncturePattern(c.Puncture)
	if err != nil {
		return nil, nil, nil, err
	}
	if pattern.Rows() != code.Rate() {
		return nil, nil, nil, fmt.Errorf("%w: puncture pattern has %d rows for %d generators",
			fec.ErrConfiguration, pattern.Rows(), code.Rate())
	}
	return code, metric, pattern, nil
}
