package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Payload encodings understood by the MQTT sink.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

const defaultMQTTPort = "1883"

// MQTTOptions configures the pub/sub sink.
type MQTTOptions struct {
	Host           string
	Topic          string
	QoS            byte
	Format         string
	ConnectTimeout time.Duration
}

// publisher is the part of mqtt.Client the sink needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes each event as one structured message to a fixed topic.
type MQTTSink struct {
	pub    publisher
	client mqtt.Client
	topic  string
	qos    byte
	format string
}

// BrokerURL turns a bare host into a tcp broker URL on the default port.
// Values that already carry a scheme are returned unchanged.
func BrokerURL(host string) string {
	host = strings.TrimSpace(host)
	if strings.Contains(host, "://") {
		return host
	}
	if !strings.Contains(host, ":") {
		host += ":" + defaultMQTTPort
	}
	return "tcp://" + host
}

// ConnectMQTT connects to the broker once. The caller disables the sink for
// the rest of the process if this fails; there is no retry.
func ConnectMQTT(ctx context.Context, opts MQTTOptions, logger *slog.Logger) (*MQTTSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	broker := BrokerURL(opts.Host)
	clientID := "facewatch-" + uuid.New().String()

	copts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	copts.SetKeepAlive(30 * time.Second)
	copts.SetPingTimeout(5 * time.Second)
	copts.SetConnectTimeout(timeout)
	copts.SetAutoReconnect(true)
	copts.OnConnectionLost = func(c mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", "broker", broker, "error", err)
	}

	client := mqtt.NewClient(copts)
	logger.Info("connecting to mqtt broker", "broker", broker, "client_id", clientID)

	token := client.Connect()
	select {
	case <-token.Done():
	case <-time.After(timeout):
		return nil, fmt.Errorf("mqtt connect to %s: timeout after %s", broker, timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}

	sink := newMQTTSink(client, opts.Topic, opts.QoS, opts.Format)
	sink.client = client
	return sink, nil
}

func newMQTTSink(pub publisher, topic string, qos byte, format string) *MQTTSink {
	if format == "" {
		format = FormatJSON
	}
	return &MQTTSink{pub: pub, topic: topic, qos: qos, format: format}
}

// Name implements Sink.
func (m *MQTTSink) Name() string { return "mqtt" }

// Send publishes the encoded event and waits for the broker or ctx.
func (m *MQTTSink) Send(ctx context.Context, ev Event) error {
	body, err := EncodeMessage(ev, m.format)
	if err != nil {
		return err
	}
	token := m.pub.Publish(m.topic, m.qos, false, body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", m.topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight work 250ms to finish.
func (m *MQTTSink) Close() {
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
	}
}

// Message flattens an event into the published map. Payload fields are
// applied last and win over the envelope fields.
func Message(ev Event) map[string]any {
	msg := map[string]any{
		"id":      ev.ID,
		"title":   ev.Title,
		"message": ev.Message,
		"time":    FormatTime(ev.Time),
	}
	for k, v := range ev.Payload {
		msg[k] = v
	}
	return msg
}

// EncodeMessage serializes Message(ev) in the requested format.
func EncodeMessage(ev Event, format string) ([]byte, error) {
	msg := Message(ev)
	switch format {
	case FormatJSON, "":
		return json.Marshal(msg)
	case FormatMsgpack:
		return msgpack.Marshal(msg)
	default:
		return nil, fmt.Errorf("unsupported mqtt payload format %q", format)
	}
}
