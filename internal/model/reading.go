package model

import "time"

// SensorReading is one environmental sample from a field device.
// Immutable once stored.
type SensorReading struct {
	ID          string    `json:"id"`
	SensorID    string    `json:"sensor_id"`
	SensorType  string    `json:"sensor_type"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"`
}

// AnomalyKind identifies what a detector flagged.
type AnomalyKind string

const (
	AnomalyCriticalTempHigh     AnomalyKind = "critical_temperature_high"
	AnomalyCriticalTempLow      AnomalyKind = "critical_temperature_low"
	AnomalyHighTempWarning      AnomalyKind = "high_temperature_warning"
	AnomalyLowTempWarning       AnomalyKind = "low_temperature_warning"
	AnomalyCriticalHumidityHigh AnomalyKind = "critical_humidity_high"
	AnomalyCriticalHumidityLow  AnomalyKind = "critical_humidity_low"
	AnomalyHighHumidityWarning  AnomalyKind = "high_humidity_warning"
	AnomalyLowHumidityWarning   AnomalyKind = "low_humidity_warning"
	AnomalyRapidTempChange      AnomalyKind = "rapid_temperature_change"
	AnomalyRapidHumidityChange  AnomalyKind = "rapid_humidity_change"
	AnomalyIdenticalReadings    AnomalyKind = "identical_readings_pattern"
	AnomalyUnrealisticPrecision AnomalyKind = "unrealistic_precision_pattern"
	AnomalyLearnedOutlier       AnomalyKind = "learned_outlier"
	AnomalyDataFlooding         AnomalyKind = "data_flooding"
)

// AnomalyFinding is the transient output of one detector for one reading
// or one sensor history. It is consumed by the escalation sink and never
// persisted directly.
type AnomalyFinding struct {
	SensorID      string      `json:"sensor_id"`
	Kind          AnomalyKind `json:"anomaly_kind"`
	Severity      Severity    `json:"severity"`
	ObservedValue float64     `json:"observed_value"`
	ExpectedRange string      `json:"expected_range"`
	Confidence    float64     `json:"confidence"`
	DetectedAt    time.Time   `json:"detected_at"`
}
