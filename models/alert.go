package models

import "time"

// Alert severities, derived from the scorer confidence.
const (
	SeverityRed    = "RED"
	SeverityYellow = "YELLOW"
)

// Alert lifecycle states.
const (
	AlertActive = "ACTIVE"
	AlertFixed  = "FIXED"
)

// Location places a track node on the map.
type Location struct {
	Lat  float64 `json:"lat" mapstructure:"lat"`
	Lng  float64 `json:"lng" mapstructure:"lng"`
	Name string  `json:"name" mapstructure:"name"`
}

// UnknownLocation is used for nodes missing from the registry.
var UnknownLocation = Location{Lat: 28.6139, Lng: 77.2090, Name: "Unknown"}

// Alert is a tampering incident at a track node. A node has at most one
// alert that is not FIXED; repeat detections only bump LastSeen.
type Alert struct {
	ID             int64     `json:"id"`
	NodeID         string    `json:"nodeId"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	LocationName   string    `json:"locationName"`
	Severity       string    `json:"severity"`
	Status         string    `json:"status"`
	IsConstruction bool      `json:"isConstruction"`
	Timestamp      time.Time `json:"timestamp"`
	LastSeen       time.Time `json:"last_seen"`
}

// NewAlert builds an ACTIVE alert for nodeID at loc.
func NewAlert(nodeID, severity string, loc Location, now time.Time) Alert {
	return Alert{
		NodeID:       nodeID,
		Lat:          loc.Lat,
		Lng:          loc.Lng,
		LocationName: loc.Name,
		Severity:     severity,
		Status:       AlertActive,
		Timestamp:    now,
		LastSeen:     now,
	}
}

// SeverityFor maps an anomalous confidence score to a severity.
func SeverityFor(confidence, redThreshold float64) string {
	if confidence < redThreshold {
		return SeverityRed
	}
	return SeverityYellow
}
