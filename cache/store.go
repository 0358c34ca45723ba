package cache

import (
	"context"

	"track-tamper-detector/models"
)

// Store persists alerts and the latest reading of each node.
type Store interface {
	// RecordAlert stores candidate unless the node already has an alert
	// that is not FIXED, in which case that alert's LastSeen is bumped and
	// it is returned with created == false.
	RecordAlert(ctx context.Context, candidate models.Alert) (alert models.Alert, created bool, err error)
	ListAlerts(ctx context.Context) ([]models.Alert, error)
	MarkConstruction(ctx context.Context, id int64) (models.Alert, error)
	ResolveAlert(ctx context.Context, id int64) (models.Alert, error)

	SaveReading(ctx context.Context, update models.SensorUpdate) error
	// GetReading returns nil, nil when the node has no recent reading.
	GetReading(ctx context.Context, nodeID string) (*models.SensorUpdate, error)

	Close() error
}
