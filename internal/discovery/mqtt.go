package discovery

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/joshp123/printmon/internal/logging"
)

// Publisher sends one MQTT message.
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
	Close()
}

// MQTTConfig is the broker connection.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// WillTopic receives WillPayload (retained) when the connection drops.
	WillTopic   string
	WillPayload string
}

type mqttPublisher struct {
	client mqtt.Client
}

// NewMQTTPublisher connects to the broker. Reconnects are handled by paho.
func NewMQTTPublisher(cfg MQTTConfig, logger *zap.Logger) (Publisher, error) {
	logger = logging.OrNop(logger).Named("mqtt")
	broker, err := brokerURL(cfg.Broker)
	if err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	if u, _ := url.Parse(broker); u != nil && (u.Scheme == "ssl" || u.Scheme == "tls" || u.Scheme == "mqtts") {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	if cfg.WillTopic != "" {
		opts.SetWill(cfg.WillTopic, cfg.WillPayload, 1, true)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	}
	opts.OnConnect = func(_ mqtt.Client) {
		logger.Info("MQTT connected", zap.String("broker", broker))
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt %s: %w", broker, token.Error())
	}
	return &mqttPublisher{client: client}, nil
}

func (p *mqttPublisher) Publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	return token.Error()
}

func (p *mqttPublisher) Close() {
	p.client.Disconnect(250)
}

// brokerURL accepts host, host:port or a full URL and defaults to tcp:1883.
func brokerURL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("mqtt broker is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		u, err = url.Parse("tcp://" + raw)
		if err != nil {
			return "", fmt.Errorf("invalid mqtt broker %q: %w", raw, err)
		}
	}
	if u.Port() == "" {
		port := "1883"
		if u.Scheme == "ssl" || u.Scheme == "tls" || u.Scheme == "mqtts" {
			port = "8883"
		}
		u.Host = u.Hostname() + ":" + port
	}
	return u.String(), nil
}
