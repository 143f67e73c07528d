package stream

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/motorsense/internal/common"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Timeout  time.Duration
	QoS      byte
}

// Client is a paho MQTT connection used both to receive samples and to
// publish verdicts.
type Client struct {
	client  mqtt.Client
	subs    map[string]mqtt.MessageHandler
	timeout time.Duration
	mu      sync.Mutex
	qos     byte
}

// Connect dials the broker.
func Connect(cfg MQTTConfig) (*Client, error) {
	if cfg.Broker == "" {
		return nil, common.NewConfigError("mqtt.broker", "must be set")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("motorsense-%d", time.Now().Unix())
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		subs:    make(map[string]mqtt.MessageHandler),
		timeout: cfg.Timeout,
		qos:     cfg.QoS,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout)

	// Subscriptions do not survive a reconnect with a clean session.
	opts.OnConnect = func(client mqtt.Client) {
		c.mu.Lock()
		defer c.mu.Unlock()
		for topic, handler := range c.subs {
			if err := c.subscribe(client, topic, handler); err != nil {
				slog.Error("Failed to resubscribe", "topic", topic, "error", err)
			}
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Warn("MQTT connection lost", "error", err)
	}

	c.client = mqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("timed out connecting to %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Broker, err)
	}

	slog.Info("Connected to MQTT broker", "broker", cfg.Broker, "client_id", cfg.ClientID)
	return c, nil
}

// Subscribe delivers every payload on topic to onPayload, also after reconnects.
func (c *Client) Subscribe(topic string, onPayload func([]byte)) error {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		onPayload(msg.Payload())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.subscribe(c.client, topic, handler); err != nil {
		return err
	}
	c.subs[topic] = handler
	return nil
}

func (c *Client) subscribe(client mqtt.Client, topic string, handler mqtt.MessageHandler) error {
	token := client.Subscribe(topic, c.qos, handler)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("timed out subscribing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	slog.Info("Subscribed", "topic", topic)
	return nil
}

// Publish sends payload to topic and waits for the broker to accept it.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, c.qos, false, payload)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	return token.Error()
}

// Close disconnects, giving in-flight work 250ms to finish.
func (c *Client) Close() {
	c.client.Disconnect(250)
}
