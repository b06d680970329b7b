package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"iot-sentinel/internal/detect"
	"iot-sentinel/internal/escalate"
	"iot-sentinel/internal/metrics"
	"iot-sentinel/internal/middleware"
	"iot-sentinel/internal/model"
	"iot-sentinel/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Handlers struct {
	store    *storage.Store
	engine   *detect.Engine
	sink     *escalate.Sink
	guard    *middleware.Guard
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewHandlers(store *storage.Store, engine *detect.Engine, sink *escalate.Sink, guard *middleware.Guard, m *metrics.Metrics, logger *logrus.Logger) *Handlers {
	return &Handlers{
		store:    store,
		engine:   engine,
		sink:     sink,
		guard:    guard,
		metrics:  m,
		logger:   logger,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Ingestion

type sensorReadingRequest struct {
	SensorID    string  `json:"sensor_id" validate:"required"`
	SensorType  string  `json:"sensor_type"`
	Temperature float64 `json:"temperature" validate:"gte=-50,lte=100"`
	Humidity    float64 `json:"humidity" validate:"gte=0,lte=100"`
}

// CreateReading accepts one sensor sample: validate, flood-check,
// persist, then best-effort anomaly detection. A detection failure never
// fails the already-committed ingestion.
func (h *Handlers) CreateReading(w http.ResponseWriter, r *http.Request) {
	var req sensorReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.metrics.ReadingsRejected.WithLabelValues("out_of_range").Inc()
		writeError(w, http.StatusBadRequest, "Sensor values out of valid range")
		return
	}

	clientIP := middleware.ClientIP(r)

	if h.engine.IsFlooding(req.SensorID) {
		h.metrics.ReadingsRejected.WithLabelValues("flooding").Inc()
		h.sink.EscalateFinding(model.AnomalyFinding{
			SensorID:      req.SensorID,
			Kind:          model.AnomalyDataFlooding,
			Severity:      model.SeverityHigh,
			ObservedValue: 1.0,
			ExpectedRange: "Within rate limits",
			Confidence:    1.0,
			DetectedAt:    time.Now().UTC(),
		}, clientIP)
		writeError(w, http.StatusTooManyRequests, "Too many readings from this sensor")
		return
	}

	reading := h.store.AddReading(model.SensorReading{
		SensorID:    req.SensorID,
		SensorType:  req.SensorType,
		Temperature: req.Temperature,
		Humidity:    req.Humidity,
	})
	h.metrics.ReadingsIngested.Inc()

	h.runDetection(reading, clientIP)

	writeJSON(w, http.StatusCreated, reading)
}

// runDetection is the best-effort side channel after ingestion commits.
func (h *Handlers) runDetection(reading model.SensorReading, clientIP string) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Errorf("Anomaly detection panic for sensor %s: %v", reading.SensorID, rec)
		}
	}()

	for _, finding := range h.engine.AnalyzeReading(reading) {
		h.sink.EscalateFinding(finding, clientIP)
	}
}

func (h *Handlers) GetReadings(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	if limit > 1000 {
		limit = 1000
	}
	writeJSON(w, http.StatusOK, h.store.RecentReadings(limit))
}

func (h *Handlers) SensorStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Sensor API is working"})
}

// Security events

func (h *Handlers) GetEvents(w http.ResponseWriter, r *http.Request) {
	filter := storage.EventFilter{
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	}
	if s := r.URL.Query().Get("severity"); s != "" {
		severity, err := model.ParseSeverity(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid severity")
			return
		}
		filter.Severity = severity
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := model.ParseEventStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid status")
			return
		}
		filter.Status = status
	}

	events := h.store.GetEvents(filter)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": events,
		"total": len(events),
	})
}

func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	event := h.store.GetEventByID(mux.Vars(r)["id"])
	if event == nil {
		writeError(w, http.StatusNotFound, "Security event not found")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

type eventStatusUpdate struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handlers) UpdateEventStatus(w http.ResponseWriter, r *http.Request) {
	var update eventStatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	status, err := model.ParseEventStatus(update.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	if !h.store.UpdateEventStatus(mux.Vars(r)["id"], status) {
		writeError(w, http.StatusNotFound, "Security event not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Security event updated successfully"})
}

// Threat alerts and audit log

func (h *Handlers) GetAlerts(w http.ResponseWriter, r *http.Request) {
	var level model.Severity
	if s := r.URL.Query().Get("threat_level"); s != "" {
		parsed, err := model.ParseSeverity(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid threat level")
			return
		}
		level = parsed
	}

	alerts := h.store.GetAlerts(level, queryInt(r, "limit", 100), queryInt(r, "offset", 0))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": alerts,
		"total": len(alerts),
	})
}

func (h *Handlers) GetAuditLog(w http.ResponseWriter, r *http.Request) {
	entries := h.store.GetAuditLog(
		r.URL.Query().Get("action"),
		r.URL.Query().Get("user_id"),
		queryInt(r, "limit", 100),
		queryInt(r, "offset", 0),
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": entries,
		"total": len(entries),
	})
}

// Aggregates

type securitySummary struct {
	TotalEvents        int  `json:"total_events"`
	CriticalEvents     int  `json:"critical_events"`
	HighPriorityEvents int  `json:"high_priority_events"`
	ActiveThreats      int  `json:"active_threats"`
	BlockedIPs         int  `json:"blocked_ips"`
	Last24hEvents      int  `json:"last_24h_events"`
	ModelActive        bool `json:"model_active"`
}

func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, securitySummary{
		TotalEvents:        h.store.CountEvents(),
		CriticalEvents:     h.store.CountEventsBySeverity(model.SeverityCritical),
		HighPriorityEvents: h.store.CountEventsBySeverity(model.SeverityHigh),
		ActiveThreats:      h.store.CountOpenThreats(),
		BlockedIPs:         h.store.CountBlockedIPs(),
		Last24hEvents:      h.store.CountEventsSince(time.Now().Add(-24 * time.Hour)),
		ModelActive:        h.engine.ModelActive(),
	})
}

func (h *Handlers) GetStatistics(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	since := time.Now().Add(-time.Duration(days) * 24 * time.Hour)

	stats := h.store.EventStatisticsSince(since)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"period_days": days,
		"start_date":  since.UTC().Format(time.RFC3339),
		"statistics":  stats,
	})
}

func (h *Handlers) GetThreatSources(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	writeJSON(w, http.StatusOK, h.store.TopThreatSources(limit))
}

// Analysis

func (h *Handlers) AnalyzeSensor(w http.ResponseWriter, r *http.Request) {
	sensorID := mux.Vars(r)["sensor_id"]

	if len(h.store.ReadingsSince(sensorID, time.Time{}, 1, "")) == 0 {
		writeError(w, http.StatusNotFound, "No data found for this sensor")
		return
	}

	clientIP := middleware.ClientIP(r)
	findings := h.engine.AnalyzeSensor(sensorID)
	for _, finding := range findings {
		h.sink.EscalateFinding(finding, clientIP)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sensor_id": sensorID,
		"anomalies": findings,
		"total":     len(findings),
	})
}

func (h *Handlers) AnalyzeAll(w http.ResponseWriter, r *http.Request) {
	clientIP := middleware.ClientIP(r)
	findings, analyzed := h.engine.AnalyzeAll(r.Context())
	for _, finding := range findings {
		h.sink.EscalateFinding(finding, clientIP)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analyzed_sensors":      analyzed,
		"total_anomalies_found": len(findings),
		"timestamp":             time.Now().UTC().Format(time.RFC3339),
	})
}

// Model management

func (h *Handlers) GetModelStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status())
}

func (h *Handlers) TrainModel(w http.ResponseWriter, r *http.Request) {
	// Training is a batch operation; detach it from the request context
	// so a client disconnect cannot abort a retrain midway.
	trained := h.engine.Train(context.Background())
	if trained {
		h.metrics.ModelActive.Set(1)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trained": trained,
		"status":  h.engine.Status(),
	})
}

// Block list management

func (h *Handlers) GetBlockedClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": h.guard.BlockedClients(),
	})
}

func (h *Handlers) UnblockClient(w http.ResponseWriter, r *http.Request) {
	ip := mux.Vars(r)["ip"]
	if !h.guard.Unblock(ip) {
		writeError(w, http.StatusNotFound, "Client is not blocked")
		return
	}
	h.logger.Infof("Operator unblocked %s", ip)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Client unblocked"})
}

// Live event feed

func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	var minSeverity model.Severity
	if s := r.URL.Query().Get("min_severity"); s != "" {
		if parsed, err := model.ParseSeverity(s); err == nil {
			minSeverity = parsed
		}
	}

	sub := &storage.EventSubscriber{
		ID:          strconv.FormatInt(time.Now().UnixNano(), 10),
		Channel:     make(chan model.SecurityEvent, 100),
		MinSeverity: minSeverity,
	}
	h.store.SubscribeEvents(sub)
	defer h.store.UnsubscribeEvents(sub)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-sub.Channel:
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debugf("WebSocket write error: %v", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
