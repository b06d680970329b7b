package detect

import (
	"context"
	"sync/atomic"
	"time"

	"iot-sentinel/internal/config"
	"iot-sentinel/internal/model"

	"github.com/sirupsen/logrus"
)

// TelemetrySource is the read-only view of the telemetry store the
// detection engine needs.
type TelemetrySource interface {
	ReadingsSince(sensorID string, since time.Time, limit int, excludeID string) []model.SensorReading
	AllReadingsSince(since time.Time) []model.SensorReading
	SensorIDsSince(since time.Time) []string
	CountReadingsSince(sensorID string, since time.Time) int
}

// Engine composes the detectors into per-reading and per-sensor analysis.
// The learned model, once trained, supersedes threshold classification;
// the trend detector always runs because it catches short-horizon
// dynamics the model's hourly/daily features miss.
type Engine struct {
	cfg       config.DetectionConfig
	source    TelemetrySource
	threshold *ThresholdClassifier
	trend     *TrendDetector
	pattern   *PatternDetector
	model     atomic.Pointer[OutlierModel]
	logger    *logrus.Logger
}

func NewEngine(cfg config.Config, source TelemetrySource, logger *logrus.Logger) *Engine {
	return &Engine{
		cfg:       cfg.Detection,
		source:    source,
		threshold: NewThresholdClassifier(cfg.Thresholds),
		trend:     NewTrendDetector(cfg.Detection),
		pattern:   NewPatternDetector(),
		logger:    logger,
	}
}

// AnalyzeReading classifies one reading. With a trained model the learned
// scorer replaces the threshold bands; the trend detector runs either way.
func (e *Engine) AnalyzeReading(reading model.SensorReading) []model.AnomalyFinding {
	findings := make([]model.AnomalyFinding, 0)

	if m := e.model.Load(); m != nil {
		if f := m.Check(reading, time.Now()); f != nil {
			findings = append(findings, *f)
		}
	} else {
		findings = append(findings, e.threshold.Check(reading)...)
	}

	findings = append(findings, e.trendFindings(reading)...)
	return findings
}

func (e *Engine) trendFindings(reading model.SensorReading) []model.AnomalyFinding {
	since := time.Now().Add(-time.Duration(e.cfg.TrendWindowMinutes) * time.Minute)
	history := e.source.ReadingsSince(reading.SensorID, since, e.cfg.TrendHistoryCap, reading.ID)
	return e.trend.Check(reading, history)
}

// AnalyzeSensor audits one sensor: its most recent readings are each
// re-classified, then the pattern detector runs once over the last hour.
func (e *Engine) AnalyzeSensor(sensorID string) []model.AnomalyFinding {
	findings := make([]model.AnomalyFinding, 0)

	recent := e.source.ReadingsSince(sensorID, time.Time{}, e.cfg.AuditSampleSize, "")
	for i := range recent {
		findings = append(findings, e.AnalyzeReading(recent[i])...)
	}

	patternSince := time.Now().Add(-time.Duration(e.cfg.PatternWindowMinutes) * time.Minute)
	patternHistory := e.source.ReadingsSince(sensorID, patternSince, 0, "")
	findings = append(findings, e.pattern.Check(sensorID, patternHistory)...)

	return findings
}

// AnalyzeAll audits every sensor seen in the trailing 24 hours.
// Returns the findings plus the number of sensors analyzed.
func (e *Engine) AnalyzeAll(ctx context.Context) ([]model.AnomalyFinding, int) {
	sensorIDs := e.source.SensorIDsSince(time.Now().Add(-24 * time.Hour))

	findings := make([]model.AnomalyFinding, 0)
	analyzed := 0
	for _, sensorID := range sensorIDs {
		if ctx.Err() != nil {
			break
		}
		findings = append(findings, e.AnalyzeSensor(sensorID)...)
		analyzed++
	}
	return findings, analyzed
}

// IsFlooding reports whether a sensor exceeded the per-minute ingest
// budget, a denial-of-service signature independent of value anomalies.
func (e *Engine) IsFlooding(sensorID string) bool {
	count := e.source.CountReadingsSince(sensorID, time.Now().Add(-time.Minute))
	return count > e.cfg.FloodReadingsPerMin
}

// Train fits a fresh model snapshot on the trailing training window and
// publishes it atomically. In-flight inference keeps the prior snapshot.
// With fewer rows than the minimum the model stays as it was and the
// engine reports false: rule-based classification remains in effect.
func (e *Engine) Train(ctx context.Context) bool {
	since := time.Now().Add(-time.Duration(e.cfg.TrainingWindowDays) * 24 * time.Hour)
	readings := e.source.AllReadingsSince(since)

	if len(readings) < e.cfg.MinTrainingSize {
		e.logger.Warnf("Skipping model training: %d readings available, %d required", len(readings), e.cfg.MinTrainingSize)
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	snapshot := TrainOutlierModel(readings)
	e.model.Store(snapshot)
	e.logger.Infof("Outlier model trained on %d readings", snapshot.TrainingSize())
	return true
}

// ModelActive reports whether learned scoring is in effect.
func (e *Engine) ModelActive() bool {
	return e.model.Load() != nil
}

// ModelStatus describes the current snapshot for the query surface.
type ModelStatus struct {
	Active       bool       `json:"active"`
	TrainingSize int        `json:"training_size,omitempty"`
	TrainedAt    *time.Time `json:"trained_at,omitempty"`
}

func (e *Engine) Status() ModelStatus {
	m := e.model.Load()
	if m == nil {
		return ModelStatus{Active: false}
	}
	trainedAt := m.TrainedAt()
	return ModelStatus{
		Active:       true,
		TrainingSize: m.TrainingSize(),
		TrainedAt:    &trainedAt,
	}
}
