package notify

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/imscall/call"
	"github.com/opd-ai/imscall/cause"
)

// Publisher abstracts the MQTT client so tests can inject a recorder.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close() error
}

// MQTTOptions configures the broker connection for an MQTTSink.
type MQTTOptions struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
}

// pahoPublisher wraps a Paho MQTT client behind Publisher.
type pahoPublisher struct {
	client mqtt.Client
	qos    byte
}

func (p *pahoPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, false, payload)
	token.Wait()
	return token.Error()
}

func (p *pahoPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}

// MQTTSink publishes phone events as JSON over MQTT. It implements Sink.
type MQTTSink struct {
	pub    Publisher
	prefix string
}

// NewMQTTSink connects to the broker and returns a publishing sink.
func NewMQTTSink(opts MQTTOptions) (*MQTTSink, error) {
	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := mqtt.NewClient(clientOpts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", opts.Broker, err)
	}

	return &MQTTSink{
		pub:    &pahoPublisher{client: client, qos: opts.QoS},
		prefix: opts.TopicPrefix,
	}, nil
}

// NewMQTTSinkWithPublisher builds a sink over an existing publisher. Used by
// tests and by callers that manage the client themselves.
func NewMQTTSinkWithPublisher(pub Publisher, topicPrefix string) *MQTTSink {
	return &MQTTSink{pub: pub, prefix: topicPrefix}
}

// Close disconnects the underlying client.
func (s *MQTTSink) Close() error {
	return s.pub.Close()
}

func (s *MQTTSink) publish(subtopic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "publish",
			"topic":    subtopic,
			"error":    err.Error(),
		}).Error("Failed to marshal phone event")
		return
	}
	topic := s.prefix + "/" + subtopic
	if err := s.pub.Publish(topic, data); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "publish",
			"topic":    topic,
			"error":    err.Error(),
		}).Warn("Failed to publish phone event")
	}
}

// PreciseCallStateChanged implements Sink.
func (s *MQTTSink) PreciseCallStateChanged() {
	s.publish("precise_state", map[string]any{
		"at": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// NewRingingConnection implements Sink.
func (s *MQTTSink) NewRingingConnection(h call.Handle, address string) {
	s.publish("ringing", map[string]any{
		"session": h.String(),
		"address": address,
	})
}

// PhoneStateChanged implements Sink.
func (s *MQTTSink) PhoneStateChanged(old, new call.PhoneState) {
	s.publish("phone_state", map[string]any{
		"old": old.String(),
		"new": new.String(),
	})
}

// SuppServiceFailed implements Sink.
func (s *MQTTSink) SuppServiceFailed(kind SuppServiceKind) {
	s.publish("supp_service_failed", map[string]any{
		"kind": kind.String(),
	})
}

// Disconnected implements Sink.
func (s *MQTTSink) Disconnected(h call.Handle, d cause.Disconnect, p cause.Precise) {
	s.publish("disconnected", map[string]any{
		"session":       h.String(),
		"cause":         d.String(),
		"precise_cause": int(p),
	})
}
