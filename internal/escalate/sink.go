package escalate

import (
	"fmt"

	"iot-sentinel/internal/metrics"
	"iot-sentinel/internal/model"
	"iot-sentinel/internal/storage"

	"github.com/sirupsen/logrus"
)

// Sink is the single write path from detection and traffic analysis into
// persisted security state. Every high or critical event additionally
// produces a threat alert; the mapping is total, never a silent downgrade.
type Sink struct {
	store   *storage.Store
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

func NewSink(store *storage.Store, m *metrics.Metrics, logger *logrus.Logger) *Sink {
	return &Sink{
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// EscalateFinding converts one anomaly finding into a security event.
func (s *Sink) EscalateFinding(finding model.AnomalyFinding, sourceIP string) model.SecurityEvent {
	s.metrics.FindingsTotal.WithLabelValues(string(finding.Kind)).Inc()

	return s.Record(model.SecurityEvent{
		EventType:   "anomaly",
		Severity:    finding.Severity,
		SourceIP:    sourceIP,
		SensorID:    finding.SensorID,
		Description: fmt.Sprintf("Anomaly detected: %s in sensor %s", finding.Kind, finding.SensorID),
		Details: map[string]interface{}{
			"anomaly_type":        string(finding.Kind),
			"observed_value":      finding.ObservedValue,
			"expected_range":      finding.ExpectedRange,
			"confidence":          finding.Confidence,
			"detection_timestamp": finding.DetectedAt,
		},
	}, "", model.ActionLogged)
}

// RecordTraffic persists a traffic-layer violation (rate limiting,
// blocking, scanning, login abuse).
func (s *Sink) RecordTraffic(eventType string, severity model.Severity, sourceIP, endpoint, description string, action model.ActionTaken) model.SecurityEvent {
	return s.Record(model.SecurityEvent{
		EventType:   eventType,
		Severity:    severity,
		SourceIP:    sourceIP,
		Description: description,
		Details: map[string]interface{}{
			"endpoint": endpoint,
		},
	}, endpoint, action)
}

// Record persists the event and, for high/critical severities, the
// derived threat alert. Persistence is best-effort for callers on the
// request path; there is no rollback of already-committed telemetry.
func (s *Sink) Record(event model.SecurityEvent, endpoint string, action model.ActionTaken) model.SecurityEvent {
	if event.Status == "" {
		event.Status = model.StatusOpen
	}
	if action == "" {
		action = model.ActionLogged
	}

	stored := s.store.AddEvent(event)
	s.metrics.EventsTotal.WithLabelValues(stored.EventType, stored.Severity.String()).Inc()
	s.logger.Warnf("SECURITY EVENT [%s] %s: %s", stored.Severity, stored.EventType, stored.Description)

	if stored.Severity.AtLeast(model.SeverityHigh) {
		alert := s.store.AddAlert(model.ThreatAlert{
			AlertType:      stored.EventType,
			ThreatLevel:    stored.Severity,
			SourceIP:       stored.SourceIP,
			TargetEndpoint: endpoint,
			ActionTaken:    action,
			Description:    stored.Description,
			Metadata:       stored.Details,
		})
		s.metrics.AlertsTotal.WithLabelValues(string(alert.ActionTaken)).Inc()
		s.logger.Warnf("THREAT ALERT [%s] %s action=%s", alert.ThreatLevel, alert.AlertType, alert.ActionTaken)
	}

	return stored
}
