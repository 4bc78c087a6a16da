package transport

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/eddielth/sensor-gateway/config"
	"github.com/eddielth/sensor-gateway/logger"
)

// Bridge is the connection to the local radio bridge broker. The physical
// radio daemons publish raw frames to per-transport topics; receivers
// subscribe through this shared client.
type Bridge struct {
	client mqtt.Client
	config config.BridgeConfig
}

// FrameHandler receives the raw payload of a bridge message
type FrameHandler func(topic string, payload []byte)

// NewBridge creates the bridge client without connecting
func NewBridge(cfg config.BridgeConfig) (*Bridge, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("bridge broker address cannot be empty")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)

	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("sensor-gateway-%d", time.Now().Unix())
	}
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Error("[bridge] connection lost: %v", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("[bridge] trying to reconnect to broker...")
	})

	return &Bridge{
		client: mqtt.NewClient(opts),
		config: cfg,
	}, nil
}

// Connect connects to the bridge broker
func (b *Bridge) Connect() error {
	token := b.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("connection to bridge broker timed out")
	}
	if err := token.Error(); err != nil {
		return err
	}

	logger.Info("[bridge] connected to broker: %s", b.config.Broker)
	return nil
}

// Subscribe subscribes to a frame topic
func (b *Bridge) Subscribe(topic string, handler FrameHandler) error {
	token := b.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})

	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscription to topic %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return err
	}

	logger.Info("[bridge] subscribed to topic: %s", topic)
	return nil
}

// Publish sends a message to the radio daemon, e.g. a receive re-arm request
func (b *Bridge) Publish(topic string, payload []byte) error {
	token := b.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to topic %s timed out", topic)
	}
	return token.Error()
}

// Disconnect disconnects from the bridge broker
func (b *Bridge) Disconnect() {
	b.client.Disconnect(250)
	logger.Info("[bridge] disconnected from broker")
}
