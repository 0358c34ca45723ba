package mqtt

import "time"

// Config holds MQTT subscriber configuration.
type Config struct {
	BrokerURL string        `mapstructure:"broker_url"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"` //nolint:gosec // G101: config field name, not a credential
	ClientID  string        `mapstructure:"client_id"`
	Topic     string        `mapstructure:"topic"`
	QoS       byte          `mapstructure:"qos"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns the defaults; an empty BrokerURL disables MQTT.
func DefaultConfig() Config {
	return Config{
		BrokerURL: "",
		ClientID:  "track-tamper-detector",
		Topic:     "railway/sensor/+",
		QoS:       1,
		Timeout:   10 * time.Second,
	}
}
