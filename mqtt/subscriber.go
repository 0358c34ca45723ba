// Package mqtt feeds vibration readings published by track nodes into the
// analytics pipeline.
package mqtt

import (
	"encoding/json"
	"strings"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"track-tamper-detector/models"
)

// Sink receives decoded readings.
type Sink interface {
	ProcessReading(reading models.SensorReading) bool
}

type Subscriber struct {
	cfg    Config
	sink   Sink
	logger *zap.Logger
	client pahomqtt.Client
}

func NewSubscriber(cfg Config, sink Sink, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
	}
}

// Enabled reports whether a broker is configured.
func (s *Subscriber) Enabled() bool {
	return s.cfg.BrokerURL != ""
}

// Start connects and subscribes. A failed first connection is logged and
// retried in the background by the client.
func (s *Subscriber) Start() {
	if !s.Enabled() {
		s.logger.Info("mqtt subscriber disabled: no broker configured")
		return
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(s.cfg.BrokerURL).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(s.cfg.Timeout).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			s.logger.Warn("mqtt connection lost", zap.Error(err))
		})

	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password) //nolint:gosec // G101: config field
	}

	s.client = pahomqtt.NewClient(opts)
	token := s.client.Connect()

	switch {
	case !token.WaitTimeout(s.cfg.Timeout):
		s.logger.Warn("mqtt connection timed out; will reconnect in background")
	case token.Error() != nil:
		s.logger.Warn("mqtt connection failed; will reconnect in background",
			zap.Error(token.Error()))
	}
}

// onConnect (re)subscribes; subscriptions do not survive a reconnect
// without a persistent session.
func (s *Subscriber) onConnect(c pahomqtt.Client) {
	s.logger.Info("mqtt connected to broker",
		zap.String("broker_url", s.cfg.BrokerURL),
		zap.String("topic", s.cfg.Topic))

	token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.handleMessage)
	if token.WaitTimeout(s.cfg.Timeout) && token.Error() != nil {
		s.logger.Error("mqtt subscribe failed", zap.String("topic", s.cfg.Topic), zap.Error(token.Error()))
	}
}

func (s *Subscriber) Stop() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
		s.logger.Info("mqtt disconnected")
	}
}

func (s *Subscriber) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	reading, err := decodeReading(msg.Topic(), msg.Payload())
	if err != nil {
		s.logger.Warn("dropping malformed sensor message",
			zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	s.sink.ProcessReading(reading)
}

// decodeReading parses a node payload. node_id defaults to the last topic
// segment (railway/sensor/<node>).
func decodeReading(topic string, payload []byte) (models.SensorReading, error) {
	var reading models.SensorReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return models.SensorReading{}, err
	}
	if reading.NodeID == "" {
		if i := strings.LastIndexByte(topic, '/'); i >= 0 && i < len(topic)-1 {
			reading.NodeID = topic[i+1:]
		}
	}
	if err := reading.Validate(); err != nil {
		return models.SensorReading{}, err
	}
	return reading, nil
}
