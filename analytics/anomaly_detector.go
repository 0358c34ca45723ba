package analytics

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"track-tamper-detector/models"
)

// TrainFunc fits a fresh model. It must be deterministic.
type TrainFunc func(logger *zap.Logger) (*IsolationForest, error)

// AnomalyDetector classifies single vibration readings against the fitted
// baseline. It starts untrained and becomes trained either through Train or
// lazily on the first Classify; it never goes back.
type AnomalyDetector struct {
	logger  *zap.Logger
	train   TrainFunc
	model   atomic.Pointer[IsolationForest]
	trainMu sync.Mutex

	// OnTrain, when set, is called after every successful fit.
	OnTrain func()
}

func NewAnomalyDetector(logger *zap.Logger) *AnomalyDetector {
	return NewAnomalyDetectorWithTrainer(logger, TrainBaseline)
}

func NewAnomalyDetectorWithTrainer(logger *zap.Logger, train TrainFunc) *AnomalyDetector {
	return &AnomalyDetector{
		logger: logger,
		train:  train,
	}
}

// Train fits a new model and replaces the current one in full.
func (ad *AnomalyDetector) Train() error {
	ad.trainMu.Lock()
	defer ad.trainMu.Unlock()
	return ad.trainLocked()
}

func (ad *AnomalyDetector) trainLocked() error {
	forest, err := ad.train(ad.logger)
	if err != nil {
		return err
	}
	ad.model.Store(forest)
	if ad.OnTrain != nil {
		ad.OnTrain()
	}
	return nil
}

// IsTrained reports whether a model has been fitted.
func (ad *AnomalyDetector) IsTrained() bool {
	return ad.model.Load() != nil
}

func (ad *AnomalyDetector) ensureModel() (*IsolationForest, error) {
	if m := ad.model.Load(); m != nil {
		return m, nil
	}

	ad.trainMu.Lock()
	defer ad.trainMu.Unlock()
	if m := ad.model.Load(); m != nil {
		return m, nil
	}

	ad.logger.Warn("classify called before startup training; training now")
	if err := ad.trainLocked(); err != nil {
		return nil, err
	}
	return ad.model.Load(), nil
}

// Classify scores value. Any float is accepted; the model extrapolates.
func (ad *AnomalyDetector) Classify(value float64) (models.Prediction, error) {
	forest, err := ad.ensureModel()
	if err != nil {
		return models.Prediction{}, err
	}

	label := forest.Predict(value)
	score := forest.DecisionFunction(value)

	status := models.StatusNormal
	if label == Outlier {
		status = models.StatusTampering
	}

	return models.Prediction{
		Status:     status,
		IsAnomaly:  label == Outlier,
		Confidence: score,
	}, nil
}
