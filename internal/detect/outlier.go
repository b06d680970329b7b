package detect

import (
	"math"
	"math/rand"
	"time"

	"iot-sentinel/internal/model"
)

const outlierSeed = 42

// standardScaler standardizes features to zero mean and unit variance.
// Parameters are fixed at fit time and reused for every inference.
type standardScaler struct {
	mean   []float64
	stddev []float64
}

func fitScaler(data [][]float64) *standardScaler {
	cols := len(data[0])
	s := &standardScaler{
		mean:   make([]float64, cols),
		stddev: make([]float64, cols),
	}

	for _, row := range data {
		for j, v := range row {
			s.mean[j] += v
		}
	}
	n := float64(len(data))
	for j := range s.mean {
		s.mean[j] /= n
	}

	for _, row := range data {
		for j, v := range row {
			d := v - s.mean[j]
			s.stddev[j] += d * d
		}
	}
	for j := range s.stddev {
		s.stddev[j] = math.Sqrt(s.stddev[j] / n)
		if s.stddev[j] == 0 {
			s.stddev[j] = 1 // constant column, leave values centered
		}
	}

	return s
}

func (s *standardScaler) transform(row []float64) []float64 {
	scaled := make([]float64, len(row))
	for j, v := range row {
		scaled[j] = (v - s.mean[j]) / s.stddev[j]
	}
	return scaled
}

func (s *standardScaler) transformAll(data [][]float64) [][]float64 {
	scaled := make([][]float64, len(data))
	for i := range data {
		scaled[i] = s.transform(data[i])
	}
	return scaled
}

// OutlierModel is one immutable trained snapshot: forest, scaler and the
// training score distribution used for confidence calibration. Published
// atomically by the engine; never mutated after construction.
type OutlierModel struct {
	forest         *isolationForest
	scaler         *standardScaler
	trainingScores []float64
	trainedAt      time.Time
	trainingSize   int
}

// TrainOutlierModel fits a snapshot on historical readings. Caller is
// responsible for enforcing the minimum training set size.
func TrainOutlierModel(readings []model.SensorReading) *OutlierModel {
	data := make([][]float64, len(readings))
	for i, r := range readings {
		data[i] = featureVector(r.Temperature, r.Humidity, r.Timestamp)
	}

	scaler := fitScaler(data)
	scaled := scaler.transformAll(data)

	rng := rand.New(rand.NewSource(outlierSeed))
	forest := fitForest(scaled, rng)

	scores := make([]float64, len(scaled))
	for i := range scaled {
		scores[i] = forest.Score(scaled[i])
	}

	return &OutlierModel{
		forest:         forest,
		scaler:         scaler,
		trainingScores: scores,
		trainedAt:      time.Now().UTC(),
		trainingSize:   len(readings),
	}
}

// Check scores one reading at the given wall time. Returns nil when the
// model considers the reading normal.
func (m *OutlierModel) Check(reading model.SensorReading, now time.Time) *model.AnomalyFinding {
	features := m.scaler.transform(featureVector(reading.Temperature, reading.Humidity, now))

	if !m.forest.Predict(features) {
		return nil
	}

	score := m.forest.Score(features)
	confidence := m.confidence(score)

	return &model.AnomalyFinding{
		SensorID:      reading.SensorID,
		Kind:          model.AnomalyLearnedOutlier,
		Severity:      model.SeverityMedium,
		ObservedValue: reading.Temperature,
		ExpectedRange: "Normal operating conditions",
		Confidence:    confidence,
		DetectedAt:    now.UTC(),
	}
}

// confidence calibrates a score against the anomalous slice of the
// training distribution: scores deeper into the tail than most training
// anomalies get confidence near 1. A clean training set (no anomalous
// scores at all) degenerates to 1.0.
func (m *OutlierModel) confidence(score float64) float64 {
	anomalous := make([]float64, 0)
	for _, s := range m.trainingScores {
		if s < 0 {
			anomalous = append(anomalous, s)
		}
	}
	if len(anomalous) == 0 {
		return 1.0
	}

	confidence := 1 - percentileOfScore(anomalous, score)/100
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// TrainedAt reports when this snapshot was fit.
func (m *OutlierModel) TrainedAt() time.Time {
	return m.trainedAt
}

// TrainingSize reports the number of readings the snapshot was fit on.
func (m *OutlierModel) TrainingSize() int {
	return m.trainingSize
}

// percentileOfScore is the rank percentile of score within values:
// the mean of the strict and weak percentile ranks.
func percentileOfScore(values []float64, score float64) float64 {
	var less, lessEqual int
	for _, v := range values {
		if v < score {
			less++
		}
		if v <= score {
			lessEqual++
		}
	}
	return float64(less+lessEqual) / (2 * float64(len(values))) * 100
}

func featureVector(temperature, humidity float64, ts time.Time) []float64 {
	return []float64{
		temperature,
		humidity,
		float64(ts.Hour()),
		float64(ts.Weekday()),
	}
}
