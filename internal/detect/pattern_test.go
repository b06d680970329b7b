package detect

import (
	"testing"

	"iot-sentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func varied(n int) []model.SensorReading {
	readings := make([]model.SensorReading, n)
	for i := range readings {
		readings[i] = model.SensorReading{
			SensorID:    "s1",
			Temperature: 20.0 + float64(i)*0.3 + 0.1,
			Humidity:    50.0 + float64(i)*0.2 + 0.1,
		}
	}
	return readings
}

func TestPatternDetector(t *testing.T) {
	d := NewPatternDetector()

	t.Run("InsufficientHistory", func(t *testing.T) {
		assert.Nil(t, d.Check("s1", varied(9)))
	})

	t.Run("VariedReadings", func(t *testing.T) {
		assert.Empty(t, d.Check("s1", varied(12)))
	})

	t.Run("IdenticalReadings", func(t *testing.T) {
		history := varied(12)
		// Five later readings exactly match the newest.
		for i := 1; i <= 5; i++ {
			history[i].Temperature = history[0].Temperature
			history[i].Humidity = history[0].Humidity
		}
		findings := d.Check("s1", history)
		require.Len(t, findings, 1)
		assert.Equal(t, model.AnomalyIdenticalReadings, findings[0].Kind)
		assert.Equal(t, model.SeverityMedium, findings[0].Severity)
		assert.Equal(t, 0.80, findings[0].Confidence)
	})

	t.Run("FourMatchesBelowThreshold", func(t *testing.T) {
		history := varied(12)
		for i := 1; i <= 4; i++ {
			history[i].Temperature = history[0].Temperature
			history[i].Humidity = history[0].Humidity
		}
		assert.Empty(t, d.Check("s1", history))
	})

	t.Run("UnrealisticPrecision", func(t *testing.T) {
		history := varied(12)
		// Eight of the ten newest readings carry whole-number values.
		for i := 0; i < 8; i++ {
			history[i].Temperature = float64(20 + i)
			history[i].Humidity = float64(50 + i)
		}
		findings := d.Check("s1", history)
		require.Len(t, findings, 1)
		assert.Equal(t, model.AnomalyUnrealisticPrecision, findings[0].Kind)
		assert.Equal(t, 0.70, findings[0].Confidence)
	})

	t.Run("SevenIntegralBelowThreshold", func(t *testing.T) {
		history := varied(12)
		for i := 0; i < 7; i++ {
			history[i].Temperature = float64(20 + i)
			history[i].Humidity = float64(50 + i)
		}
		assert.Empty(t, d.Check("s1", history))
	})

	t.Run("BothSignatures", func(t *testing.T) {
		history := make([]model.SensorReading, 12)
		for i := range history {
			history[i] = model.SensorReading{SensorID: "s1", Temperature: 25.0, Humidity: 60.0}
		}
		findings := d.Check("s1", history)
		require.Len(t, findings, 2)
		assert.Equal(t, model.AnomalyIdenticalReadings, findings[0].Kind)
		assert.Equal(t, model.AnomalyUnrealisticPrecision, findings[1].Kind)
	})
}
