package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dbehnke/convfec/pkg/logger"
	"github.com/dbehnke/convfec/pkg/sim"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// ErrNotConnected is returned when publishing before Start succeeded
var ErrNotConnected = errors.New("mqtt publisher not connected")

// Config holds MQTT publisher configuration
type Config struct {
	Enabled     bool
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	Retained    bool
}

// client is the part of paho.Client the publisher uses
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Publisher publishes sweep events to an MQTT broker. It satisfies sim.Sink.
type Publisher struct {
	config Config
	log    *logger.Logger

	mu     sync.RWMutex
	client client
}

// Event types for MQTT publishing

// SweepPointEvent is published for every measured Eb/N0 point
type SweepPointEvent struct {
	RunID       string    `json:"run_id"`
	Code        string    `json:"code"`
	Metric      string    `json:"metric"`
	EbN0        float64   `json:"ebn0_db"`
	EsN0        float64   `json:"esn0_db"`
	Frames      int       `json:"frames"`
	Bits        int       `json:"bits"`
	Errors      int       `json:"errors"`
	FrameErrors int       `json:"frame_errors"`
	BER         float64   `json:"ber"`
	FER         float64   `json:"fer"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

// SweepDoneEvent is published once a sweep completes
type SweepDoneEvent struct {
	RunID      string            `json:"run_id"`
	Code       string            `json:"code"`
	Metric     string            `json:"metric"`
	Points     []SweepPointEvent `json:"points"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// NewSweepPointEvent builds the event for one sim point
func NewSweepPointEvent(run sim.Run, p sim.PointResult) SweepPointEvent {
	return SweepPointEvent{
		RunID:       run.ID,
		Code:        run.Code,
		Metric:      run.Metric,
		EbN0:        p.EbN0,
		EsN0:        p.EsN0,
		Frames:      p.Frames,
		Bits:        p.Bits,
		Errors:      p.Errors,
		FrameErrors: p.FrameErrors,
		BER:         p.BER,
		FER:         p.FER,
		ElapsedMs:   p.Elapsed.Milliseconds(),
		Timestamp:   time.Now().UTC(),
	}
}

// New creates a new MQTT publisher
func New(config Config, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	return &Publisher{
		config: config,
		log:    log.WithComponent("mqtt"),
	}
}

// Start connects to the broker. It returns once connected or when ctx ends.
func (p *Publisher) Start(ctx context.Context) error {
	if !p.config.Enabled {
		p.log.Info("MQTT publisher disabled")
		return nil
	}

	p.log.Info("Starting MQTT publisher",
		logger.String("broker", p.config.Broker),
		logger.String("client_id", p.config.ClientID))

	opts := paho.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
	}
	if p.config.Password != "" {
		opts.SetPassword(p.config.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(paho.Client) {
		p.log.Info("Connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.log.Warn("MQTT connection lost", logger.Error(err))
	})
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		p.log.Info("Reconnecting to MQTT broker")
	})

	c := paho.NewClient(opts)
	token := c.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	p.mu.Lock()
	p.client = c
	p.mu.Unlock()
	return nil
}

// Stop disconnects from the broker
func (p *Publisher) Stop() {
	p.mu.Lock()
	c := p.client
	p.client = nil
	p.mu.Unlock()

	if c == nil {
		return
	}

	p.log.Info("Stopping MQTT publisher")
	c.Disconnect(250)
}

// PublishSweepPoint publishes a sweep point event
func (p *Publisher) PublishSweepPoint(event SweepPointEvent) error {
	if !p.config.Enabled {
		return nil
	}

	return p.publish(p.formatTopic("sweep/point"), event)
}

// PublishSweepDone publishes a sweep completion event
func (p *Publisher) PublishSweepDone(event SweepDoneEvent) error {
	if !p.config.Enabled {
		return nil
	}

	return p.publish(p.formatTopic("sweep/done"), event)
}

// PointDone publishes one sim point
func (p *Publisher) PointDone(_ context.Context, run sim.Run, point sim.PointResult) error {
	return p.PublishSweepPoint(NewSweepPointEvent(run, point))
}

// RunDone publishes the finished sweep
func (p *Publisher) RunDone(_ context.Context, result *sim.Result) error {
	event := SweepDoneEvent{
		RunID:      result.Run.ID,
		Code:       result.Run.Code,
		Metric:     result.Run.Metric,
		Points:     make([]SweepPointEvent, 0, len(result.Points)),
		StartedAt:  result.Run.StartedAt,
		FinishedAt: result.FinishedAt,
	}
	for _, pt := range result.Points {
		event.Points = append(event.Points, NewSweepPointEvent(result.Run, pt))
	}
	return p.PublishSweepDone(event)
}

// publish publishes an event to a topic
func (p *Publisher) publish(topic string, event interface{}) error {
	payload, err := p.serializeEvent(event)
	if err != nil {
		p.log.Error("Failed to serialize event",
			logger.String("topic", topic),
			logger.Error(err))
		return err
	}

	p.mu.RLock()
	c := p.client
	p.mu.RUnlock()
	if c == nil {
		return ErrNotConnected
	}

	token := c.Publish(topic, p.config.QoS, p.config.Retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s failed: %w", topic, err)
	}

	p.log.Debug("Published MQTT event",
		logger.String("topic", topic),
		logger.Int("payload_size", len(payload)))

	return nil
}

// serializeEvent serializes an event to JSON
func (p *Publisher) serializeEvent(event interface{}) ([]byte, error) {
	return json.Marshal(event)
}

// formatTopic formats a topic with the configured prefix
func (p *Publisher) formatTopic(suffix string) string {
	prefix := strings.TrimSuffix(p.config.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", prefix, suffix)
}
