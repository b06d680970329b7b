package middleware

import (
	"net/http"
	"testing"

	"iot-sentinel/internal/escalate"
	"iot-sentinel/internal/metrics"
	"iot-sentinel/internal/model"
	"iot-sentinel/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trafficEnv struct {
	store    *storage.Store
	guard    *Guard
	analyzer *TrafficAnalyzer
}

func newTrafficEnv(t *testing.T) *trafficEnv {
	t.Helper()
	logger := quietLogger()
	store := storage.NewStore(storage.Limits{
		MaxReadings: 1000, MaxEvents: 1000, MaxAlerts: 1000, MaxAuditLog: 1000,
	}, logger)
	sink := escalate.NewSink(store, metrics.New(), logger)
	guard := testGuard(defaultSuspicion())
	return &trafficEnv{
		store:    store,
		guard:    guard,
		analyzer: NewTrafficAnalyzer(defaultSuspicion(), guard, sink, logger),
	}
}

func (e *trafficEnv) eventsOfType(eventType string) []model.SecurityEvent {
	matched := make([]model.SecurityEvent, 0)
	for _, ev := range e.store.GetEvents(storage.EventFilter{Limit: 1000}) {
		if ev.EventType == eventType {
			matched = append(matched, ev)
		}
	}
	return matched
}

func TestTrafficAnalyzerFailedLogins(t *testing.T) {
	t.Run("WarnsAtFiveFailures", func(t *testing.T) {
		env := newTrafficEnv(t)
		for i := 0; i < 4; i++ {
			env.analyzer.Analyze("10.0.0.1", "/auth/login", "", http.StatusUnauthorized)
		}
		assert.Empty(t, env.eventsOfType("suspicious_login"))

		env.analyzer.Analyze("10.0.0.1", "/auth/login", "", http.StatusUnauthorized)
		events := env.eventsOfType("suspicious_login")
		require.Len(t, events, 1)
		assert.Equal(t, model.SeverityHigh, events[0].Severity)
		assert.Equal(t, "10.0.0.1", events[0].SourceIP)

		// High severity derives a threat alert.
		alerts := env.store.GetAlerts("", 0, 0)
		require.Len(t, alerts, 1)
		assert.Equal(t, "suspicious_login", alerts[0].AlertType)
		assert.Equal(t, "10.0.0.1", alerts[0].SourceIP)
	})

	t.Run("BlocksAtTenFailures", func(t *testing.T) {
		env := newTrafficEnv(t)
		for i := 0; i < 10; i++ {
			env.analyzer.Analyze("10.0.0.1", "/auth/login", "", http.StatusUnauthorized)
		}

		assert.True(t, env.guard.IsBlocked("10.0.0.1"))
		events := env.eventsOfType("ip_blocked")
		require.Len(t, events, 1)
		assert.Equal(t, model.SeverityCritical, events[0].Severity)

		// Further failures do not re-record the block.
		env.analyzer.Analyze("10.0.0.1", "/auth/login", "", http.StatusUnauthorized)
		assert.Len(t, env.eventsOfType("ip_blocked"), 1)
	})

	t.Run("SuccessfulLoginIgnored", func(t *testing.T) {
		env := newTrafficEnv(t)
		for i := 0; i < 10; i++ {
			env.analyzer.Analyze("10.0.0.1", "/auth/login", "", http.StatusOK)
		}
		assert.Empty(t, env.eventsOfType("suspicious_login"))
		assert.False(t, env.guard.IsBlocked("10.0.0.1"))
	})

	t.Run("UnauthorizedElsewhereIgnored", func(t *testing.T) {
		env := newTrafficEnv(t)
		for i := 0; i < 10; i++ {
			env.analyzer.Analyze("10.0.0.1", "/api/v1/sensors", "", http.StatusUnauthorized)
		}
		assert.Empty(t, env.eventsOfType("suspicious_login"))
	})
}

func TestTrafficAnalyzerScanning(t *testing.T) {
	env := newTrafficEnv(t)
	for i := 0; i < 19; i++ {
		env.analyzer.Analyze("10.0.0.1", "/nonexistent", "", http.StatusNotFound)
	}
	assert.Empty(t, env.eventsOfType("potential_scanning"))

	env.analyzer.Analyze("10.0.0.1", "/nonexistent", "", http.StatusNotFound)
	events := env.eventsOfType("potential_scanning")
	require.Len(t, events, 1)
	assert.Equal(t, model.SeverityMedium, events[0].Severity)

	// Medium severity never derives an alert.
	assert.Empty(t, env.store.GetAlerts("", 0, 0))
}

func TestTrafficAnalyzerUserAgent(t *testing.T) {
	t.Run("KnownSignatures", func(t *testing.T) {
		for _, agent := range []string{"curl/8.5.0", "Wget/1.21", "Googlebot/2.1", "my-crawler", "nmap scanner", "SpiderMonkey"} {
			env := newTrafficEnv(t)
			env.analyzer.Analyze("10.0.0.1", "/api/v1/sensors", agent, http.StatusOK)
			events := env.eventsOfType("suspicious_user_agent")
			require.Len(t, events, 1, "agent %q", agent)
			assert.Equal(t, model.SeverityLow, events[0].Severity)
		}
	})

	t.Run("SingleEventPerRequest", func(t *testing.T) {
		env := newTrafficEnv(t)
		env.analyzer.Analyze("10.0.0.1", "/api/v1/sensors", "curl bot crawler", http.StatusOK)
		assert.Len(t, env.eventsOfType("suspicious_user_agent"), 1)
	})

	t.Run("EveryMatchRecorded", func(t *testing.T) {
		env := newTrafficEnv(t)
		env.analyzer.Analyze("10.0.0.1", "/api/v1/sensors", "curl/8.5.0", http.StatusOK)
		env.analyzer.Analyze("10.0.0.1", "/api/v1/sensors", "curl/8.5.0", http.StatusOK)
		assert.Len(t, env.eventsOfType("suspicious_user_agent"), 2)
	})

	t.Run("BenignAgentIgnored", func(t *testing.T) {
		env := newTrafficEnv(t)
		env.analyzer.Analyze("10.0.0.1", "/api/v1/sensors", "Mozilla/5.0 (X11; Linux x86_64)", http.StatusOK)
		assert.Empty(t, env.eventsOfType("suspicious_user_agent"))
	})
}
