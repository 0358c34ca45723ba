package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every endpoint onto a gorilla/mux router.
func NewRouter(predict *PredictHandler, alerts *AlertHandler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/predict", instrument("/predict", predict.HandlePredict)).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/alerts", instrument("/api/alerts", alerts.HandleListAlerts)).Methods(http.MethodGet)
	api.HandleFunc("/alerts/mark-construction",
		instrument("/api/alerts/mark-construction", alerts.HandleMarkConstruction)).Methods(http.MethodPost)
	api.HandleFunc("/alerts/resolve", instrument("/api/alerts/resolve", alerts.HandleResolve)).Methods(http.MethodPost)
	api.HandleFunc("/readings", instrument("/api/readings", alerts.HandleSubmitReading)).Methods(http.MethodPost)
	api.HandleFunc("/readings/{node_id}",
		instrument("/api/readings/{node_id}", alerts.HandleGetReading)).Methods(http.MethodGet)

	r.Path("/metrics").Handler(promhttp.Handler())

	return r
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
