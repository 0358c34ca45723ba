package models

import (
	"math"
	"time"
)

// Classification labels returned by the scorer.
const (
	StatusNormal    = "NORMAL"
	StatusTampering = "TAMPERING DETECTED"
)

// SensorInput is the body accepted by POST /predict.
type SensorInput struct {
	VibrationVal *float64 `json:"vibration_val"`
}

func (in *SensorInput) Validate() error {
	if in.VibrationVal == nil {
		return newValidationError("vibration_val is required")
	}
	if !isFinite(*in.VibrationVal) {
		return newValidationError("vibration_val must be a finite number")
	}
	return nil
}

// Prediction is the scorer result. Confidence is the raw decision score:
// lower (negative) means more anomalous.
type Prediction struct {
	Status     string  `json:"status"`
	IsAnomaly  bool    `json:"is_anomaly"`
	Confidence float64 `json:"confidence"`
}

// SensorReading is a single vibration sample published by a track node.
type SensorReading struct {
	NodeID       string   `json:"node_id"`
	VibrationVal *float64 `json:"vibration_val"`
}

func (r *SensorReading) Validate() error {
	if r.NodeID == "" {
		return newValidationError("node_id is required")
	}
	if r.VibrationVal == nil {
		return newValidationError("vibration_val is required")
	}
	if !isFinite(*r.VibrationVal) {
		return newValidationError("vibration_val must be a finite number")
	}
	return nil
}

// SensorUpdate is a reading enriched with the scorer's verdict.
type SensorUpdate struct {
	NodeID       string    `json:"node_id"`
	VibrationVal float64   `json:"vibration_val"`
	RollingMean  float64   `json:"accel_roll_mean"`
	RollingRMS   float64   `json:"accel_roll_rms"`
	Status       string    `json:"status"`
	IsAnomaly    bool      `json:"is_anomaly"`
	Confidence   float64   `json:"confidence"`
	ProcessedAt  time.Time `json:"processed_at"`
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
