package detect

import (
	"testing"

	"iot-sentinel/internal/config"
	"iot-sentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClassifier() *ThresholdClassifier {
	cfg := config.Default()
	return NewThresholdClassifier(cfg.Thresholds)
}

func reading(temp, humidity float64) model.SensorReading {
	return model.SensorReading{
		SensorID:    "s1",
		SensorType:  "temperature",
		Temperature: temp,
		Humidity:    humidity,
	}
}

func TestThresholdClassifier(t *testing.T) {
	c := testClassifier()

	t.Run("NormalReading", func(t *testing.T) {
		findings := c.Check(reading(22.0, 55.0))
		assert.Empty(t, findings)
	})

	t.Run("CriticalTemperatureHigh", func(t *testing.T) {
		for _, temp := range []float64{45.0, 50.0, 80.0, 100.0} {
			findings := c.Check(reading(temp, 55.0))
			require.Len(t, findings, 1, "temp %.1f", temp)
			assert.Equal(t, model.AnomalyCriticalTempHigh, findings[0].Kind)
			assert.Equal(t, model.SeverityCritical, findings[0].Severity)
			assert.Equal(t, 0.95, findings[0].Confidence)
			assert.Equal(t, temp, findings[0].ObservedValue)
		}
	})

	t.Run("TiersAreMutuallyExclusive", func(t *testing.T) {
		// 50°C is above both critical_high and warning_high; only the
		// critical tier may fire.
		findings := c.Check(reading(50.0, 55.0))
		require.Len(t, findings, 1)
		assert.Equal(t, model.AnomalyCriticalTempHigh, findings[0].Kind)
		for _, f := range findings {
			assert.NotEqual(t, model.AnomalyHighTempWarning, f.Kind)
		}
	})

	t.Run("WarningTemperatureHigh", func(t *testing.T) {
		findings := c.Check(reading(36.0, 55.0))
		require.Len(t, findings, 1)
		assert.Equal(t, model.AnomalyHighTempWarning, findings[0].Kind)
		assert.Equal(t, model.SeverityHigh, findings[0].Severity)
		assert.Equal(t, 0.75, findings[0].Confidence)
	})

	t.Run("CriticalTemperatureLow", func(t *testing.T) {
		findings := c.Check(reading(-15.0, 55.0))
		require.Len(t, findings, 1)
		assert.Equal(t, model.AnomalyCriticalTempLow, findings[0].Kind)
		assert.Equal(t, model.SeverityCritical, findings[0].Severity)
	})

	t.Run("WarningTemperatureLow", func(t *testing.T) {
		findings := c.Check(reading(3.0, 55.0))
		require.Len(t, findings, 1)
		assert.Equal(t, model.AnomalyLowTempWarning, findings[0].Kind)
	})

	t.Run("HumidityBands", func(t *testing.T) {
		cases := []struct {
			humidity float64
			kind     model.AnomalyKind
			severity model.Severity
		}{
			{96.0, model.AnomalyCriticalHumidityHigh, model.SeverityCritical},
			{10.0, model.AnomalyCriticalHumidityLow, model.SeverityCritical},
			{90.0, model.AnomalyHighHumidityWarning, model.SeverityHigh},
			{20.0, model.AnomalyLowHumidityWarning, model.SeverityHigh},
		}
		for _, tc := range cases {
			findings := c.Check(reading(22.0, tc.humidity))
			require.Len(t, findings, 1, "humidity %.1f", tc.humidity)
			assert.Equal(t, tc.kind, findings[0].Kind)
			assert.Equal(t, tc.severity, findings[0].Severity)
		}
	})

	t.Run("TemperatureAndHumidityIndependent", func(t *testing.T) {
		findings := c.Check(reading(50.0, 96.0))
		require.Len(t, findings, 2)
		assert.Equal(t, model.AnomalyCriticalTempHigh, findings[0].Kind)
		assert.Equal(t, model.AnomalyCriticalHumidityHigh, findings[1].Kind)
	})

	t.Run("Idempotent", func(t *testing.T) {
		r := reading(50.0, 96.0)
		first := c.Check(r)
		second := c.Check(r)
		require.Len(t, second, len(first))
		for i := range first {
			assert.Equal(t, first[i].Kind, second[i].Kind)
			assert.Equal(t, first[i].Severity, second[i].Severity)
			assert.Equal(t, first[i].Confidence, second[i].Confidence)
			assert.Equal(t, first[i].ObservedValue, second[i].ObservedValue)
		}
	})
}
