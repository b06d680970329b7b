package detect

import (
	"fmt"
	"time"

	"iot-sentinel/internal/config"
	"iot-sentinel/internal/model"
)

// Confidence per tier is fixed: critical matches are near-certain,
// warnings leave room for seasonal extremes.
const (
	criticalConfidence = 0.95
	warningConfidence  = 0.75
)

// ThresholdClassifier evaluates a single reading against fixed bands.
// Stateless; temperature and humidity are checked independently and each
// can contribute at most one finding, highest tier first.
type ThresholdClassifier struct {
	temperature config.Band
	humidity    config.Band
}

func NewThresholdClassifier(thresholds config.ThresholdsConfig) *ThresholdClassifier {
	return &ThresholdClassifier{
		temperature: thresholds.Temperature,
		humidity:    thresholds.Humidity,
	}
}

func (c *ThresholdClassifier) Name() string {
	return "threshold_classifier"
}

// Check returns zero, one or two findings for the reading.
func (c *ThresholdClassifier) Check(reading model.SensorReading) []model.AnomalyFinding {
	findings := make([]model.AnomalyFinding, 0, 2)

	if f := c.checkTemperature(reading); f != nil {
		findings = append(findings, *f)
	}
	if f := c.checkHumidity(reading); f != nil {
		findings = append(findings, *f)
	}
	return findings
}

func (c *ThresholdClassifier) checkTemperature(reading model.SensorReading) *model.AnomalyFinding {
	var (
		kind       model.AnomalyKind
		severity   model.Severity
		confidence float64
	)

	switch {
	case reading.Temperature >= c.temperature.CriticalHigh:
		kind, severity, confidence = model.AnomalyCriticalTempHigh, model.SeverityCritical, criticalConfidence
	case reading.Temperature <= c.temperature.CriticalLow:
		kind, severity, confidence = model.AnomalyCriticalTempLow, model.SeverityCritical, criticalConfidence
	case reading.Temperature >= c.temperature.WarningHigh:
		kind, severity, confidence = model.AnomalyHighTempWarning, model.SeverityHigh, warningConfidence
	case reading.Temperature <= c.temperature.WarningLow:
		kind, severity, confidence = model.AnomalyLowTempWarning, model.SeverityHigh, warningConfidence
	default:
		return nil
	}

	return &model.AnomalyFinding{
		SensorID:      reading.SensorID,
		Kind:          kind,
		Severity:      severity,
		ObservedValue: reading.Temperature,
		ExpectedRange: fmt.Sprintf("%.1f°C - %.1f°C", c.temperature.NormalLow, c.temperature.NormalHigh),
		Confidence:    confidence,
		DetectedAt:    time.Now().UTC(),
	}
}

func (c *ThresholdClassifier) checkHumidity(reading model.SensorReading) *model.AnomalyFinding {
	var (
		kind       model.AnomalyKind
		severity   model.Severity
		confidence float64
	)

	switch {
	case reading.Humidity >= c.humidity.CriticalHigh:
		kind, severity, confidence = model.AnomalyCriticalHumidityHigh, model.SeverityCritical, criticalConfidence
	case reading.Humidity <= c.humidity.CriticalLow:
		kind, severity, confidence = model.AnomalyCriticalHumidityLow, model.SeverityCritical, criticalConfidence
	case reading.Humidity >= c.humidity.WarningHigh:
		kind, severity, confidence = model.AnomalyHighHumidityWarning, model.SeverityHigh, warningConfidence
	case reading.Humidity <= c.humidity.WarningLow:
		kind, severity, confidence = model.AnomalyLowHumidityWarning, model.SeverityHigh, warningConfidence
	default:
		return nil
	}

	return &model.AnomalyFinding{
		SensorID:      reading.SensorID,
		Kind:          kind,
		Severity:      severity,
		ObservedValue: reading.Humidity,
		ExpectedRange: fmt.Sprintf("%.1f%% - %.1f%%", c.humidity.NormalLow, c.humidity.NormalHigh),
		Confidence:    confidence,
		DetectedAt:    time.Now().UTC(),
	}
}
