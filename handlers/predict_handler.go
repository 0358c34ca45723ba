package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"track-tamper-detector/models"
)

// Classifier scores one vibration reading.
type Classifier interface {
	Classify(value float64) (models.Prediction, error)
}

type PredictHandler struct {
	classifier Classifier
	logger     *zap.Logger
}

func NewPredictHandler(classifier Classifier, logger *zap.Logger) *PredictHandler {
	return &PredictHandler{
		classifier: classifier,
		logger:     logger,
	}
}

// HandlePredict serves POST /predict.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var input models.SensorInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	if err := input.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	prediction, err := h.classifier.Classify(*input.VibrationVal)
	if err != nil {
		h.logger.Error("classification failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "classification failed")
		return
	}

	predictionsTotal.WithLabelValues(prediction.Status).Inc()
	writeJSON(w, http.StatusOK, prediction)
}
