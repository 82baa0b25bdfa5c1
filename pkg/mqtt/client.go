// Package mqtt publishes score updates and relocation events to an MQTT
// broker for dashboards and downstream consumers.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/apscout/apscout/pkg"
	"github.com/apscout/apscout/pkg/logx"
)

// Client provides MQTT publishing for apscoutd.
type Client struct {
	client      MQTT.Client
	logger      *logx.Logger
	config      *Config
	connected   bool
	lastPublish time.Time
}

// Config holds MQTT configuration.
type Config struct {
	Broker      string `json:"broker"`
	Port        int    `json:"port"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         int    `json:"qos"`
	Retain      bool   `json:"retain"`
	Enabled     bool   `json:"enabled"`
}

// DefaultConfig returns default MQTT configuration.
func DefaultConfig() *Config {
	return &Config{
		Broker:      "localhost",
		Port:        1883,
		ClientID:    "apscoutd",
		TopicPrefix: "apscout",
		QoS:         1,
		Retain:      false,
		Enabled:     false,
	}
}

// NewClient creates a new MQTT client.
func NewClient(config *Config, logger *logx.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	return &Client{
		logger: logger,
		config: config,
	}
}

// Connect establishes the broker connection. Disabled clients are a no-op
// so callers never need to special-case the configuration.
func (c *Client) Connect() error {
	if !c.config.Enabled {
		c.logger.Debug("MQTT client disabled")
		return nil
	}

	opts := MQTT.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port))
	opts.SetClientID(c.config.ClientID)

	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.client = MQTT.NewClient(opts)

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	c.logger.Info("MQTT client connected",
		"broker", c.config.Broker, "port", c.config.Port)

	return nil
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() error {
	if c.client != nil && c.connected {
		c.client.Disconnect(250)
		c.connected = false
		c.logger.Info("MQTT client disconnected")
	}
	return nil
}

func (c *Client) onConnect(client MQTT.Client) {
	c.connected = true
	c.logger.Info("MQTT connection established")
}

func (c *Client) onConnectionLost(client MQTT.Client, err error) {
	c.connected = false
	c.logger.Error("MQTT connection lost", "error", err)
}

// PublishScore publishes a committed score update. Satisfies the score
// engine's publisher hook.
func (c *Client) PublishScore(update pkg.ScoreUpdate) error {
	if !c.config.Enabled || !c.connected {
		return nil
	}

	topic := fmt.Sprintf("%s/scores/%s", c.config.TopicPrefix, topicSegment(update.BSSID))

	payload := map[string]interface{}{
		"timestamp": time.Now(),
		"bssid":     update.BSSID,
		"score":     update.Score,
		"risk":      update.Risk,
	}

	return c.publishJSON(topic, payload)
}

// PublishRelocation publishes a relocation event.
func (c *Client) PublishRelocation(event pkg.RelocationEvent) error {
	if !c.config.Enabled || !c.connected {
		return nil
	}

	topic := fmt.Sprintf("%s/relocations/%s", c.config.TopicPrefix, topicSegment(event.BSSID))

	payload := map[string]interface{}{
		"timestamp": time.Now(),
		"event":     event,
	}

	return c.publishJSON(topic, payload)
}

// PublishStatus publishes daemon status counters.
func (c *Client) PublishStatus(status map[string]interface{}) error {
	if !c.config.Enabled || !c.connected {
		return nil
	}

	topic := fmt.Sprintf("%s/status", c.config.TopicPrefix)

	payload := map[string]interface{}{
		"timestamp": time.Now(),
		"status":    status,
	}

	return c.publishJSON(topic, payload)
}

func (c *Client) publishJSON(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	token := c.client.Publish(topic, byte(c.config.QoS), c.config.Retain, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	c.lastPublish = time.Now()
	c.logger.Debug("MQTT message published", "topic", topic, "size", len(data))

	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.connected && c.client != nil && c.client.IsConnected()
}

// GetLastPublish returns the timestamp of the last publish.
func (c *Client) GetLastPublish() time.Time {
	return c.lastPublish
}

// topicSegment makes a BSSID safe for use as a topic level. Colons are
// fine in MQTT but awkward for some consumers, so they become dashes.
func topicSegment(bssid string) string {
	return strings.ReplaceAll(strings.ToLower(bssid), ":", "-")
}
