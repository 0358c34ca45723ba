package analytics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"track-tamper-detector/cache"
	"track-tamper-detector/models"
)

// AnomalyCallback is invoked for every reading classified as tampering.
type AnomalyCallback func(nodeID string)

// Locator resolves a node id to its map position.
type Locator func(nodeID string) models.Location

type EngineConfig struct {
	Workers      int
	QueueSize    int
	WindowSize   int
	RedThreshold float64
	StoreTimeout time.Duration
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Workers:      4,
		QueueSize:    10000,
		WindowSize:   50,
		RedThreshold: -0.2,
		StoreTimeout: 2 * time.Second,
	}
}

type nodeState struct {
	mu     sync.Mutex
	window *RollingWindow
}

// AnalyticsEngine scores queued sensor readings on a fixed worker pool,
// keeps the latest enriched reading per node and raises alerts.
type AnalyticsEngine struct {
	cfg       EngineConfig
	detector  *AnomalyDetector
	store     cache.Store
	locate    Locator
	onAnomaly AnomalyCallback
	logger    *zap.Logger

	mu    sync.RWMutex
	nodes map[string]*nodeState

	readingChan chan models.SensorReading
	closeMu     sync.RWMutex
	closed      bool
	wg          sync.WaitGroup

	now func() time.Time
}

func NewAnalyticsEngine(cfg EngineConfig, detector *AnomalyDetector, store cache.Store,
	locate Locator, onAnomaly AnomalyCallback, logger *zap.Logger) *AnalyticsEngine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Workers > 16 {
		cfg.Workers = 16
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.WindowSize < 1 {
		cfg.WindowSize = 50
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 2 * time.Second
	}
	if locate == nil {
		locate = func(string) models.Location { return models.UnknownLocation }
	}

	engine := &AnalyticsEngine{
		cfg:         cfg,
		detector:    detector,
		store:       store,
		locate:      locate,
		onAnomaly:   onAnomaly,
		logger:      logger,
		nodes:       make(map[string]*nodeState),
		readingChan: make(chan models.SensorReading, cfg.QueueSize),
		now:         time.Now,
	}

	logger.Info("starting analytics workers", zap.Int("workers", cfg.Workers))
	for i := 0; i < cfg.Workers; i++ {
		engine.wg.Add(1)
		go engine.processReadings()
	}

	return engine
}

// ProcessReading queues a validated reading. It returns false when the
// queue is full or the engine is closed; the reading is dropped.
func (ae *AnalyticsEngine) ProcessReading(reading models.SensorReading) bool {
	ae.closeMu.RLock()
	defer ae.closeMu.RUnlock()
	if ae.closed {
		return false
	}

	select {
	case ae.readingChan <- reading:
		return true
	default:
		ae.logger.Warn("reading queue is full, dropping reading",
			zap.String("node_id", reading.NodeID))
		return false
	}
}

// Close stops accepting readings and waits for queued ones to finish.
func (ae *AnalyticsEngine) Close() {
	ae.closeMu.Lock()
	if !ae.closed {
		ae.closed = true
		close(ae.readingChan)
	}
	ae.closeMu.Unlock()
	ae.wg.Wait()
}

func (ae *AnalyticsEngine) processReadings() {
	defer ae.wg.Done()
	for reading := range ae.readingChan {
		if _, err := ae.Process(context.Background(), reading); err != nil {
			ae.logger.Error("processing reading failed",
				zap.String("node_id", reading.NodeID), zap.Error(err))
		}
	}
}

// Process classifies one reading synchronously and returns the enriched update.
func (ae *AnalyticsEngine) Process(ctx context.Context, reading models.SensorReading) (models.SensorUpdate, error) {
	if err := reading.Validate(); err != nil {
		return models.SensorUpdate{}, err
	}
	value := *reading.VibrationVal

	prediction, err := ae.detector.Classify(value)
	if err != nil {
		return models.SensorUpdate{}, err
	}

	state := ae.node(reading.NodeID)
	state.mu.Lock()
	state.window.Add(value)
	mean, rms := state.window.Average(), state.window.RMS()
	state.mu.Unlock()

	update := models.SensorUpdate{
		NodeID:       reading.NodeID,
		VibrationVal: value,
		RollingMean:  mean,
		RollingRMS:   rms,
		Status:       prediction.Status,
		IsAnomaly:    prediction.IsAnomaly,
		Confidence:   prediction.Confidence,
		ProcessedAt:  ae.now().UTC(),
	}

	storeCtx, cancel := context.WithTimeout(ctx, ae.cfg.StoreTimeout)
	defer cancel()

	if err := ae.store.SaveReading(storeCtx, update); err != nil {
		ae.logger.Warn("saving reading failed",
			zap.String("node_id", reading.NodeID), zap.Error(err))
	}

	if !prediction.IsAnomaly {
		return update, nil
	}

	severity := models.SeverityFor(prediction.Confidence, ae.cfg.RedThreshold)
	candidate := models.NewAlert(reading.NodeID, severity, ae.locate(reading.NodeID), update.ProcessedAt)
	alert, created, err := ae.store.RecordAlert(storeCtx, candidate)
	if err != nil {
		return update, err
	}

	ae.logger.Warn("tampering detected",
		zap.String("node_id", reading.NodeID),
		zap.Float64("vibration_val", value),
		zap.Float64("confidence", prediction.Confidence),
		zap.String("severity", alert.Severity),
		zap.Int64("alert_id", alert.ID),
		zap.Bool("new_alert", created),
	)

	if ae.onAnomaly != nil {
		ae.onAnomaly(reading.NodeID)
	}
	return update, nil
}

func (ae *AnalyticsEngine) node(nodeID string) *nodeState {
	ae.mu.RLock()
	state, ok := ae.nodes[nodeID]
	ae.mu.RUnlock()
	if ok {
		return state
	}

	ae.mu.Lock()
	defer ae.mu.Unlock()
	if state, ok = ae.nodes[nodeID]; !ok {
		state = &nodeState{window: NewRollingWindow(ae.cfg.WindowSize)}
		ae.nodes[nodeID] = state
	}
	return state
}
