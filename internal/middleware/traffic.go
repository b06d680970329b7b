package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"iot-sentinel/internal/config"
	"iot-sentinel/internal/escalate"
	"iot-sentinel/internal/model"

	"github.com/sirupsen/logrus"
)

const loginEndpoint = "/auth/login"

var suspiciousAgents = []string{"bot", "crawler", "spider", "scanner", "curl", "wget"}

// TrafficAnalyzer runs cross-request heuristics after every completed
// request: failed-authentication bursts, 404 scanning, and suspicious
// client signatures.
type TrafficAnalyzer struct {
	cfg    config.SuspicionConfig
	guard  *Guard
	sink   *escalate.Sink
	logger *logrus.Logger
}

func NewTrafficAnalyzer(cfg config.SuspicionConfig, guard *Guard, sink *escalate.Sink, logger *logrus.Logger) *TrafficAnalyzer {
	return &TrafficAnalyzer{
		cfg:    cfg,
		guard:  guard,
		sink:   sink,
		logger: logger,
	}
}

// Analyze inspects one completed request. Event writes happen here,
// after the in-memory counters have been updated.
func (a *TrafficAnalyzer) Analyze(client, endpoint, userAgent string, statusCode int) {
	if endpoint == loginEndpoint && statusCode == http.StatusUnauthorized {
		failures := a.guard.RaiseSuspicion(client + ":failed_login")
		if failures >= a.cfg.FailedLoginWarn {
			a.sink.RecordTraffic("suspicious_login", model.SeverityHigh, client, loginEndpoint,
				fmt.Sprintf("Multiple failed login attempts from %s", client), model.ActionLogged)
		}
		if failures >= a.cfg.FailedLoginBlock {
			if a.guard.Block(client) {
				a.sink.RecordTraffic("ip_blocked", model.SeverityCritical, client, loginEndpoint,
					fmt.Sprintf("IP blocked due to %d failed login attempts", failures), model.ActionBlocked)
			}
		}
	}

	if statusCode == http.StatusNotFound {
		misses := a.guard.RaiseSuspicion(client + ":404s")
		if misses >= a.cfg.ScanThreshold {
			a.sink.RecordTraffic("potential_scanning", model.SeverityMedium, client, endpoint,
				fmt.Sprintf("Potential scanning behavior: %d 404 responses", misses), model.ActionLogged)
		}
	}

	lowered := strings.ToLower(userAgent)
	for _, agent := range suspiciousAgents {
		if strings.Contains(lowered, agent) {
			truncated := userAgent
			if len(truncated) > 100 {
				truncated = truncated[:100]
			}
			a.sink.RecordTraffic("suspicious_user_agent", model.SeverityLow, client, endpoint,
				fmt.Sprintf("Suspicious User-Agent detected: %s", truncated), model.ActionLogged)
			break
		}
	}
}
