// Package config loads service settings with Viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"track-tamper-detector/models"
)

// LoadConfig reads configuration from configPath (or tamper.yaml in the
// usual locations), falling back to defaults. TAMPER_* environment
// variables override file values, e.g. TAMPER_SERVER_PORT=9090.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("tamper")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/tamper")
	}

	v.SetEnvPrefix("TAMPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return v, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", []string{"stderr"})

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.reading_ttl", "5m")

	v.SetDefault("analytics.workers", 4)
	v.SetDefault("analytics.queue_size", 10000)
	v.SetDefault("analytics.window_size", 50)
	v.SetDefault("analytics.red_threshold", -0.2)

	v.SetDefault("mqtt.broker_url", "")
	v.SetDefault("mqtt.topic", "railway/sensor/+")
	v.SetDefault("mqtt.client_id", "track-tamper-detector")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.timeout", "10s")

	v.SetDefault("nodes", map[string]any{
		"TRACK_SEC_42": map[string]any{"lat": 28.6139, "lng": 77.2090, "name": "New Delhi Central"},
		"TRACK_SEC_43": map[string]any{"lat": 28.5355, "lng": 77.3910, "name": "Noida Sector 18"},
	})
}

// NodeRegistry maps node ids to their map location.
type NodeRegistry map[string]models.Location

// LoadNodes decodes the "nodes" section.
func LoadNodes(v *viper.Viper) (NodeRegistry, error) {
	nodes := NodeRegistry{}
	if err := v.UnmarshalKey("nodes", &nodes); err != nil {
		return nil, fmt.Errorf("decoding nodes: %w", err)
	}
	// Viper lower-cases keys; node ids are matched case-insensitively.
	out := make(NodeRegistry, len(nodes))
	for id, loc := range nodes {
		out[strings.ToUpper(id)] = loc
	}
	return out, nil
}

// Locate returns the node's location, or models.UnknownLocation.
func (r NodeRegistry) Locate(nodeID string) models.Location {
	if loc, ok := r[strings.ToUpper(nodeID)]; ok {
		return loc
	}
	return models.UnknownLocation
}
