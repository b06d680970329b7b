package detect

import (
	"math"
	"time"

	"iot-sentinel/internal/model"
)

const (
	patternMinHistory    = 10
	replayMatchThreshold = 5
	integralThreshold    = 8
	replayConfidence     = 0.80
	precisionConfidence  = 0.70
)

// PatternDetector scans a sensor's recent history for replay and
// spoofed-precision signatures. History is the sensor's last hour of
// readings, newest-first. Fewer than ten readings means no findings.
type PatternDetector struct{}

func NewPatternDetector() *PatternDetector {
	return &PatternDetector{}
}

func (d *PatternDetector) Name() string {
	return "pattern_detector"
}

func (d *PatternDetector) Check(sensorID string, history []model.SensorReading) []model.AnomalyFinding {
	if len(history) < patternMinHistory {
		return nil
	}

	findings := make([]model.AnomalyFinding, 0, 2)

	// Replay signature: later readings exactly matching the newest one.
	newest := history[0]
	identical := 0
	for i := 1; i < len(history); i++ {
		if history[i].Temperature == newest.Temperature && history[i].Humidity == newest.Humidity {
			identical++
		}
	}
	if identical >= replayMatchThreshold {
		findings = append(findings, model.AnomalyFinding{
			SensorID:      sensorID,
			Kind:          model.AnomalyIdenticalReadings,
			Severity:      model.SeverityMedium,
			ObservedValue: newest.Temperature,
			ExpectedRange: "Variable readings expected",
			Confidence:    replayConfidence,
			DetectedAt:    time.Now().UTC(),
		})
	}

	// Unrealistic precision: real sensors produce fractional values.
	integral := 0
	for i := 0; i < patternMinHistory; i++ {
		r := history[i]
		if math.Trunc(r.Temperature) == r.Temperature && math.Trunc(r.Humidity) == r.Humidity {
			integral++
		}
	}
	if integral >= integralThreshold {
		findings = append(findings, model.AnomalyFinding{
			SensorID:      sensorID,
			Kind:          model.AnomalyUnrealisticPrecision,
			Severity:      model.SeverityMedium,
			ObservedValue: newest.Temperature,
			ExpectedRange: "Natural sensor variation expected",
			Confidence:    precisionConfidence,
			DetectedAt:    time.Now().UTC(),
		})
	}

	return findings
}
