package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"track-tamper-detector/cache"
	"track-tamper-detector/models"
)

// ReadingSink accepts readings for asynchronous scoring.
type ReadingSink interface {
	ProcessReading(reading models.SensorReading) bool
}

type AlertHandler struct {
	store  cache.Store
	sink   ReadingSink
	logger *zap.Logger
}

func NewAlertHandler(store cache.Store, sink ReadingSink, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		store:  store,
		sink:   sink,
		logger: logger,
	}
}

type alertIDRequest struct {
	ID *int64 `json:"id"`
}

type alertResponse struct {
	Success bool         `json:"success"`
	Alert   models.Alert `json:"alert"`
}

// HandleListAlerts serves GET /api/alerts.
func (h *AlertHandler) HandleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.store.ListAlerts(r.Context())
	if err != nil {
		h.logger.Error("listing alerts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load alerts")
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// HandleMarkConstruction serves POST /api/alerts/mark-construction. The
// alert stays ACTIVE; it is only tagged.
func (h *AlertHandler) HandleMarkConstruction(w http.ResponseWriter, r *http.Request) {
	h.updateAlert(w, r, h.store.MarkConstruction)
}

// HandleResolve serves POST /api/alerts/resolve.
func (h *AlertHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	h.updateAlert(w, r, h.store.ResolveAlert)
}

func (h *AlertHandler) updateAlert(w http.ResponseWriter, r *http.Request,
	update func(ctx context.Context, id int64) (models.Alert, error)) {
	var req alertIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == nil {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	alert, err := update(r.Context(), *req.ID)
	if errors.Is(err, models.ErrAlertNotFound) {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}
	if err != nil {
		h.logger.Error("updating alert failed", zap.Int64("alert_id", *req.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to update alert")
		return
	}

	writeJSON(w, http.StatusOK, alertResponse{Success: true, Alert: alert})
}

// HandleSubmitReading serves POST /api/readings.
func (h *AlertHandler) HandleSubmitReading(w http.ResponseWriter, r *http.Request) {
	var reading models.SensorReading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if err := reading.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.sink.ProcessReading(reading) {
		writeError(w, http.StatusServiceUnavailable, "reading queue is full")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"node_id": reading.NodeID,
	})
}

// HandleGetReading serves GET /api/readings/{node_id}.
func (h *AlertHandler) HandleGetReading(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["node_id"]

	update, err := h.store.GetReading(r.Context(), nodeID)
	if err != nil {
		h.logger.Error("loading reading failed", zap.String("node_id", nodeID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get reading")
		return
	}
	if update == nil {
		writeError(w, http.StatusNotFound, "no recent reading for node")
		return
	}

	writeJSON(w, http.StatusOK, update)
}
