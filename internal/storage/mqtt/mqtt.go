// Package mqtt publishes each new snapshot as a retained MQTT message so that
// subscribers always receive the current reading on connect.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/chrissnell/tipstation/internal/storage"
	"github.com/chrissnell/tipstation/internal/types"
	"github.com/chrissnell/tipstation/pkg/config"
	"github.com/chrissnell/tipstation/pkg/responseformat"
)

const sinkName = "mqtt"

// Publisher is a storage.Publisher on top of a paho client
type Publisher struct {
	client   paho.Client
	topic    string
	encoding string
	logger   *zap.SugaredLogger

	mu        sync.RWMutex
	connected bool
	closeOnce sync.Once
}

// New creates a publisher and starts connecting in the background. paho
// keeps retrying the connection, so an unreachable broker only makes
// individual publishes fail.
func New(cfg *config.MQTTData, logger *zap.SugaredLogger) *Publisher {
	p := &Publisher{
		topic:    cfg.Topic,
		encoding: cfg.Encoding,
		logger:   logger,
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ paho.Client) {
		p.setConnected(true)
		logger.Infow("mqtt connected", "broker", cfg.Broker, "port", cfg.Port)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.setConnected(false)
		logger.Warnw("mqtt connection lost", "error", err)
	})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

// Encode renders a snapshot in the configured wire encoding
func Encode(encoding string, s types.Snapshot) ([]byte, error) {
	switch encoding {
	case "msgpack":
		return responseformat.MarshalMsgPack(s)
	default:
		return json.Marshal(s)
	}
}

// Publish sends s as the retained message on the configured topic
func (p *Publisher) Publish(ctx context.Context, s types.Snapshot) error {
	if !p.IsConnected() {
		return &storage.SinkError{Sink: sinkName, Op: "publish", Table: p.topic, Err: fmt.Errorf("not connected")}
	}

	payload, err := Encode(p.encoding, s)
	if err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "encode", Table: p.topic, Err: err}
	}

	token := p.client.Publish(p.topic, 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return &storage.SinkError{Sink: sinkName, Op: "publish", Table: p.topic, Err: ctx.Err()}
	}
	if err := token.Error(); err != nil {
		return &storage.SinkError{Sink: sinkName, Op: "publish", Table: p.topic, Err: err}
	}

	p.logger.Debugw("published snapshot", "topic", p.topic, "id", s.ID)
	return nil
}

// IsConnected returns whether the client is connected
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// CheckHealth reports the broker connection state
func (p *Publisher) CheckHealth(_ context.Context) *storage.HealthData {
	if p.IsConnected() {
		return storage.CreateHealthData(storage.StatusHealthy, "MQTT broker connected", nil)
	}
	return storage.CreateHealthData(storage.StatusUnhealthy, "MQTT broker not connected", nil)
}

// Close disconnects from the broker. It is idempotent.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.client.Disconnect(250)
		p.setConnected(false)
		p.logger.Info("mqtt disconnected")
	})
	return nil
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
