package api

import (
	"net/http"

	"iot-sentinel/internal/middleware"

	"github.com/gorilla/mux"
)

// NewRouter wires the ingestion and security surfaces behind the request
// interceptor. Every route, including ingestion, passes the interceptor
// first.
func NewRouter(h *Handlers, interceptor *middleware.Interceptor, metricsHandler http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(interceptor.Middleware)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Sensor ingestion
	api.HandleFunc("/sensors", h.CreateReading).Methods("POST")
	api.HandleFunc("/sensors", h.GetReadings).Methods("GET")
	api.HandleFunc("/sensors/status", h.SensorStatus).Methods("GET")

	// Security monitoring
	security := api.PathPrefix("/security").Subrouter()
	security.HandleFunc("/events", h.GetEvents).Methods("GET")
	security.HandleFunc("/events/{id}", h.GetEvent).Methods("GET")
	security.HandleFunc("/events/{id}", h.UpdateEventStatus).Methods("PATCH")
	security.HandleFunc("/alerts", h.GetAlerts).Methods("GET")
	security.HandleFunc("/audit-logs", h.GetAuditLog).Methods("GET")
	security.HandleFunc("/summary", h.GetSummary).Methods("GET")
	security.HandleFunc("/statistics", h.GetStatistics).Methods("GET")
	security.HandleFunc("/threat-sources", h.GetThreatSources).Methods("GET")
	security.HandleFunc("/analyze/{sensor_id}", h.AnalyzeSensor).Methods("POST")
	security.HandleFunc("/analyze", h.AnalyzeAll).Methods("POST")
	security.HandleFunc("/model", h.GetModelStatus).Methods("GET")
	security.HandleFunc("/model/train", h.TrainModel).Methods("POST")
	security.HandleFunc("/blocked", h.GetBlockedClients).Methods("GET")
	security.HandleFunc("/blocked/{ip}", h.UnblockClient).Methods("DELETE")
	security.HandleFunc("/stream", h.StreamEvents).Methods("GET")

	// Observability
	router.Handle("/metrics", metricsHandler).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
