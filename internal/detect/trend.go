package detect

import (
	"fmt"
	"math"
	"time"

	"iot-sentinel/internal/config"
	"iot-sentinel/internal/model"
)

const trendConfidence = 0.85

// TrendDetector flags abrupt deviation from a sensor's own recent
// average. History comes from the orchestrator: the sensor's readings
// from the trailing window, newest-first, current reading excluded.
// Fewer than two prior readings means no findings, not an error.
type TrendDetector struct {
	tempDelta     float64
	humidityDelta float64
}

func NewTrendDetector(cfg config.DetectionConfig) *TrendDetector {
	return &TrendDetector{
		tempDelta:     cfg.TrendTempDelta,
		humidityDelta: cfg.TrendHumidityDelta,
	}
}

func (d *TrendDetector) Name() string {
	return "trend_detector"
}

func (d *TrendDetector) Check(reading model.SensorReading, history []model.SensorReading) []model.AnomalyFinding {
	if len(history) < 2 {
		return nil
	}

	var tempSum, humiditySum float64
	for i := range history {
		tempSum += history[i].Temperature
		humiditySum += history[i].Humidity
	}
	avgTemp := tempSum / float64(len(history))
	avgHumidity := humiditySum / float64(len(history))

	findings := make([]model.AnomalyFinding, 0, 2)

	if math.Abs(reading.Temperature-avgTemp) > d.tempDelta {
		findings = append(findings, model.AnomalyFinding{
			SensorID:      reading.SensorID,
			Kind:          model.AnomalyRapidTempChange,
			Severity:      model.SeverityHigh,
			ObservedValue: reading.Temperature,
			ExpectedRange: fmt.Sprintf("Within ±%.0f°C of recent average (%.1f°C)", d.tempDelta, avgTemp),
			Confidence:    trendConfidence,
			DetectedAt:    time.Now().UTC(),
		})
	}

	if math.Abs(reading.Humidity-avgHumidity) > d.humidityDelta {
		findings = append(findings, model.AnomalyFinding{
			SensorID:      reading.SensorID,
			Kind:          model.AnomalyRapidHumidityChange,
			Severity:      model.SeverityHigh,
			ObservedValue: reading.Humidity,
			ExpectedRange: fmt.Sprintf("Within ±%.0f%% of recent average (%.1f%%)", d.humidityDelta, avgHumidity),
			Confidence:    trendConfidence,
			DetectedAt:    time.Now().UTC(),
		})
	}

	return findings
}
