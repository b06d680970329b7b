package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"iot-sentinel/internal/escalate"
	"iot-sentinel/internal/metrics"
	"iot-sentinel/internal/model"

	"github.com/sirupsen/logrus"
)

// UserResolver maps a request to a user identity for the audit trail.
// Credential mechanics live elsewhere; an empty string means anonymous.
type UserResolver func(r *http.Request) string

// Interceptor wraps every inbound request: block list and rate limit
// ahead of the handler, audit logging and traffic pattern analysis after
// it. Event persistence always happens after the in-memory decision.
type Interceptor struct {
	guard       *Guard
	analyzer    *TrafficAnalyzer
	sink        *escalate.Sink
	audit       AuditWriter
	metrics     *metrics.Metrics
	logger      *logrus.Logger
	resolveUser UserResolver
}

// AuditWriter is the persistence surface for per-request audit entries.
type AuditWriter interface {
	AddAuditEntry(entry model.AuditLogEntry)
}

func NewInterceptor(guard *Guard, analyzer *TrafficAnalyzer, sink *escalate.Sink, audit AuditWriter, m *metrics.Metrics, logger *logrus.Logger) *Interceptor {
	return &Interceptor{
		guard:    guard,
		analyzer: analyzer,
		sink:     sink,
		audit:    audit,
		metrics:  m,
		logger:   logger,
	}
}

// SetUserResolver installs the audit-trail user lookup.
func (i *Interceptor) SetUserResolver(resolver UserResolver) {
	i.resolveUser = resolver
}

// Middleware returns the mux-compatible wrapper.
func (i *Interceptor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := ClientIP(r)
		endpoint := r.URL.Path
		start := time.Now()

		decision := i.guard.Check(client, endpoint)

		switch decision.Verdict {
		case VerdictBlocked:
			i.metrics.BlockedTotal.Inc()
			writeJSONError(w, http.StatusForbidden, "IP address blocked due to suspicious activity")
			return

		case VerdictRateLimited:
			i.metrics.RateLimitedTotal.Inc()
			i.sink.RecordTraffic("rate_limit_exceeded", model.SeverityMedium, client, endpoint,
				fmt.Sprintf("Rate limit exceeded for endpoint %s", endpoint), model.ActionRateLimited)
			if decision.NewlyBlocked {
				i.sink.RecordTraffic("ip_blocked", model.SeverityHigh, client, endpoint,
					"IP blocked due to repeated rate limit violations", model.ActionBlocked)
			}
			writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		elapsed := time.Since(start)
		i.writeAuditEntry(r, recorder, client, elapsed)
		i.analyzer.Analyze(client, endpoint, r.UserAgent(), recorder.status)
	})
}

func (i *Interceptor) writeAuditEntry(r *http.Request, recorder *statusRecorder, client string, elapsed time.Duration) {
	userID := ""
	if i.resolveUser != nil {
		userID = i.resolveUser(r)
	}

	i.audit.AddAuditEntry(model.AuditLogEntry{
		UserID:     userID,
		Action:     "api_call",
		Endpoint:   r.URL.Path,
		Method:     r.Method,
		SourceIP:   client,
		UserAgent:  r.UserAgent(),
		StatusCode: recorder.status,
		Success:    recorder.status < 400,
		Details: map[string]interface{}{
			"query":            r.URL.RawQuery,
			"response_time_ms": elapsed.Milliseconds(),
			"content_length":   recorder.written,
		},
	})
}

// ClientIP resolves the client identity: first X-Forwarded-For hop, then
// X-Real-IP, then the transport peer address, else the shared "unknown"
// sentinel.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if r.RemoteAddr != "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.written += int64(n)
	return n, err
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, message)
}
