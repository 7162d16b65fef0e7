package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/desk-scheduler/internal/desk"
)

// DefaultBufferSize is how many messages are kept while the broker is unreachable.
const DefaultBufferSize = 256

// Config configures a RealPublisher.
type Config struct {
	Broker   string
	ClientID string
	BootID   string

	// BufferSize bounds the offline buffer; zero means DefaultBufferSize.
	BufferSize int

	// OnCommand, if set, receives remote commands from TopicCommands.
	OnCommand CommandHandler

	// ConnectTimeout bounds the initial connection attempt. The client keeps
	// retrying in the background after it expires.
	ConnectTimeout time.Duration
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are buffered and replayed, oldest first, on reconnect.
type RealPublisher struct {
	client paho.Client
	logger *zap.SugaredLogger
	cfg    Config

	mu        sync.Mutex
	buffer    *ringBuffer
	connected bool
	everUp    bool
}

// NewRealPublisher creates a publisher for cfg.Broker. It returns once the
// first connection succeeds or ConnectTimeout expires; in the latter case
// publishes are buffered until the broker becomes reachable.
func NewRealPublisher(cfg Config, logger *zap.SugaredLogger) (*RealPublisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt: no broker configured")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "desk-scheduler"
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	p := &RealPublisher{
		logger: logger,
		cfg:    cfg,
		buffer: newRingBuffer(cfg.BufferSize),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, FormatWillPayload(cfg.BootID), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		logger.Warnw("mqtt broker not reachable yet, buffering", "broker", cfg.Broker, "timeout", cfg.ConnectTimeout)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.everUp
	p.connected = true
	p.everUp = true
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	p.logger.Infow("mqtt connected", "broker", p.cfg.Broker, "reconnect", reconnect, "buffered", len(pending))

	if p.cfg.OnCommand != nil {
		handler := p.cfg.OnCommand
		c.Subscribe(TopicCommands, 1, func(_ paho.Client, m paho.Message) {
			if name := ParseCommandPayload(m.Payload()); name != "" {
				handler(name)
			}
		})
	}

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		pending = append(pending, bufferedMsg{topic: TopicSystem, payload: payload, qos: 1})
	}

	// Replay from a goroutine: paho handlers must not wait on tokens.
	go func() {
		for _, m := range pending {
			if err := p.send(m); err != nil {
				p.logger.Warnw("replay failed", "topic", m.topic, "error", err)
			}
		}
	}()
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.logger.Warnw("mqtt connection lost", "broker", p.cfg.Broker, "error", err)
}

// publish sends msg now, or buffers it when the broker is unreachable.
func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.connected {
		if p.buffer.push(msg) {
			p.logger.Warnw("mqtt buffer full, dropping oldest", "capacity", p.cfg.BufferSize)
		}
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// Publish sends a desk event to the MQTT broker.
func (p *RealPublisher) Publish(event desk.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once): lifecycle events must not be lost.
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
