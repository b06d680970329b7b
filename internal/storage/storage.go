package storage

import (
	"strings"
	"sync"
	"time"

	"iot-sentinel/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store is the in-memory telemetry and security store. Readings are
// append-only; events mutate only through status transitions.
type Store struct {
	mu          sync.RWMutex
	readings    []model.SensorReading
	events      []model.SecurityEvent
	alerts      []model.ThreatAlert
	auditLog    []model.AuditLogEntry
	maxReadings int
	maxEvents   int
	maxAlerts   int
	maxAuditLog int
	logger      *logrus.Logger

	eventSubs   map[*EventSubscriber]bool
	eventSubsMu sync.RWMutex
}

// EventSubscriber receives security events as they are stored.
type EventSubscriber struct {
	ID          string
	Channel     chan model.SecurityEvent
	MinSeverity model.Severity
}

type Limits struct {
	MaxReadings int
	MaxEvents   int
	MaxAlerts   int
	MaxAuditLog int
}

func NewStore(limits Limits, logger *logrus.Logger) *Store {
	return &Store{
		readings:    make([]model.SensorReading, 0),
		events:      make([]model.SecurityEvent, 0),
		alerts:      make([]model.ThreatAlert, 0),
		auditLog:    make([]model.AuditLogEntry, 0),
		maxReadings: limits.MaxReadings,
		maxEvents:   limits.MaxEvents,
		maxAlerts:   limits.MaxAlerts,
		maxAuditLog: limits.MaxAuditLog,
		logger:      logger,
		eventSubs:   make(map[*EventSubscriber]bool),
	}
}

// Reading methods

func (s *Store) AddReading(reading model.SensorReading) model.SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	reading.ID = uuid.NewString()
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now().UTC()
	}

	s.readings = append(s.readings, reading)
	if len(s.readings) > s.maxReadings {
		s.readings = s.readings[len(s.readings)-s.maxReadings:]
	}

	return reading
}

// ReadingsSince returns readings for one sensor newer than since,
// newest-first, capped at limit (0 = no cap). excludeID skips the
// reading being analyzed so it never counts as its own history.
func (s *Store) ReadingsSince(sensorID string, since time.Time, limit int, excludeID string) []model.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.SensorReading, 0)
	for i := len(s.readings) - 1; i >= 0; i-- {
		r := s.readings[i]
		if r.SensorID != sensorID || r.ID == excludeID {
			continue
		}
		if r.Timestamp.Before(since) {
			continue
		}
		result = append(result, r)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

// AllReadingsSince returns every reading newer than since, any sensor.
func (s *Store) AllReadingsSince(since time.Time) []model.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.SensorReading, 0)
	for i := range s.readings {
		if !s.readings[i].Timestamp.Before(since) {
			result = append(result, s.readings[i])
		}
	}
	return result
}

// RecentReadings returns the newest readings across all sensors.
func (s *Store) RecentReadings(limit int) []model.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.SensorReading, 0, limit)
	for i := len(s.readings) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.readings[i])
	}
	return result
}

// CountReadingsSince counts one sensor's readings newer than since.
func (s *Store) CountReadingsSince(sensorID string, since time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for i := len(s.readings) - 1; i >= 0; i-- {
		r := s.readings[i]
		if r.Timestamp.Before(since) {
			break
		}
		if r.SensorID == sensorID {
			count++
		}
	}
	return count
}

// SensorIDsSince returns the distinct sensor ids seen after since.
func (s *Store) SensorIDsSince(since time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	ids := make([]string, 0)
	for i := range s.readings {
		r := s.readings[i]
		if r.Timestamp.Before(since) || seen[r.SensorID] {
			continue
		}
		seen[r.SensorID] = true
		ids = append(ids, r.SensorID)
	}
	return ids
}

// Security event methods

func (s *Store) AddEvent(event model.SecurityEvent) model.SecurityEvent {
	s.mu.Lock()

	event.ID = uuid.NewString()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Status == "" {
		event.Status = model.StatusOpen
	}

	s.events = append(s.events, event)
	if len(s.events) > s.maxEvents {
		s.events = s.events[len(s.events)-s.maxEvents:]
	}

	s.mu.Unlock()

	s.notifyEventSubscribers(event)
	return event
}

// EventFilter narrows GetEvents results. Zero values match everything.
type EventFilter struct {
	Severity model.Severity
	Status   model.EventStatus
	Limit    int
	Offset   int
}

func (s *Store) GetEvents(filter EventFilter) []model.SecurityEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter.Limit <= 0 {
		filter.Limit = 100
	}

	result := make([]model.SecurityEvent, 0)
	skipped := 0
	for i := len(s.events) - 1; i >= 0 && len(result) < filter.Limit; i-- {
		e := s.events[i]
		if filter.Severity != "" && e.Severity != filter.Severity {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		result = append(result, e)
	}
	return result
}

func (s *Store) GetEventByID(id string) *model.SecurityEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.events {
		if s.events[i].ID == id {
			event := s.events[i]
			return &event
		}
	}
	return nil
}

// UpdateEventStatus transitions an event's triage status. Resolved
// events get a resolved_at stamp.
func (s *Store) UpdateEventStatus(id string, status model.EventStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		if s.events[i].ID != id {
			continue
		}
		s.events[i].Status = status
		if status == model.StatusResolved {
			now := time.Now().UTC()
			s.events[i].ResolvedAt = &now
		}
		return true
	}
	return false
}

func (s *Store) CountEventsBySeverity(severity model.Severity) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for i := range s.events {
		if s.events[i].Severity == severity {
			count++
		}
	}
	return count
}

// CountOpenThreats counts open events at high severity or above.
func (s *Store) CountOpenThreats() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for i := range s.events {
		e := s.events[i]
		if e.Status == model.StatusOpen && e.Severity.AtLeast(model.SeverityHigh) {
			count++
		}
	}
	return count
}

func (s *Store) CountEvents() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *Store) CountEventsSince(since time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].CreatedAt.Before(since) {
			break
		}
		count++
	}
	return count
}

// EventStatistics aggregates events created after since.
type EventStatistics struct {
	BySeverity map[string]int `json:"by_severity"`
	ByType     map[string]int `json:"by_type"`
	ByDay      map[string]int `json:"by_day"`
}

func (s *Store) EventStatisticsSince(since time.Time) EventStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := EventStatistics{
		BySeverity: make(map[string]int),
		ByType:     make(map[string]int),
		ByDay:      make(map[string]int),
	}
	for i := range s.events {
		e := s.events[i]
		if e.CreatedAt.Before(since) {
			continue
		}
		stats.BySeverity[e.Severity.String()]++
		stats.ByType[e.EventType]++
		stats.ByDay[e.CreatedAt.Format("2006-01-02")]++
	}
	return stats
}

// ThreatSource is one origin IP ranked by event volume.
type ThreatSource struct {
	SourceIP    string         `json:"source_ip"`
	EventCount  int            `json:"event_count"`
	MaxSeverity model.Severity `json:"max_severity"`
}

func (s *Store) TopThreatSources(limit int) []ThreatSource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byIP := make(map[string]*ThreatSource)
	for i := range s.events {
		e := s.events[i]
		if e.SourceIP == "" {
			continue
		}
		src, ok := byIP[e.SourceIP]
		if !ok {
			src = &ThreatSource{SourceIP: e.SourceIP, MaxSeverity: e.Severity}
			byIP[e.SourceIP] = src
		}
		src.EventCount++
		if e.Severity.AtLeast(src.MaxSeverity) {
			src.MaxSeverity = e.Severity
		}
	}

	result := make([]ThreatSource, 0, len(byIP))
	for _, src := range byIP {
		result = append(result, *src)
	}
	// Insertion sort by count descending; the map is small.
	for i := 1; i < len(result); i++ {
		for j := i; j > 0 && result[j].EventCount > result[j-1].EventCount; j-- {
			result[j], result[j-1] = result[j-1], result[j]
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// Threat alert methods

func (s *Store) AddAlert(alert model.ThreatAlert) model.ThreatAlert {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert.ID = uuid.NewString()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	s.alerts = append(s.alerts, alert)
	if len(s.alerts) > s.maxAlerts {
		s.alerts = s.alerts[len(s.alerts)-s.maxAlerts:]
	}
	return alert
}

func (s *Store) GetAlerts(threatLevel model.Severity, limit, offset int) []model.ThreatAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	result := make([]model.ThreatAlert, 0)
	skipped := 0
	for i := len(s.alerts) - 1; i >= 0 && len(result) < limit; i-- {
		a := s.alerts[i]
		if threatLevel != "" && a.ThreatLevel != threatLevel {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		result = append(result, a)
	}
	return result
}

// CountBlockedIPs counts distinct source IPs with a blocked alert.
func (s *Store) CountBlockedIPs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for i := range s.alerts {
		a := s.alerts[i]
		if a.ActionTaken == model.ActionBlocked && a.SourceIP != "" {
			seen[a.SourceIP] = true
		}
	}
	return len(seen)
}

// Audit log methods

func (s *Store) AddAuditEntry(entry model.AuditLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = uuid.NewString()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.auditLog = append(s.auditLog, entry)
	if len(s.auditLog) > s.maxAuditLog {
		s.auditLog = s.auditLog[len(s.auditLog)-s.maxAuditLog:]
	}
}

func (s *Store) GetAuditLog(action, userID string, limit, offset int) []model.AuditLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	result := make([]model.AuditLogEntry, 0)
	skipped := 0
	for i := len(s.auditLog) - 1; i >= 0 && len(result) < limit; i-- {
		entry := s.auditLog[i]
		if action != "" && !strings.EqualFold(entry.Action, action) {
			continue
		}
		if userID != "" && entry.UserID != userID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		result = append(result, entry)
	}
	return result
}

// Subscriber methods

func (s *Store) SubscribeEvents(sub *EventSubscriber) {
	s.eventSubsMu.Lock()
	defer s.eventSubsMu.Unlock()
	s.eventSubs[sub] = true
}

func (s *Store) UnsubscribeEvents(sub *EventSubscriber) {
	s.eventSubsMu.Lock()
	defer s.eventSubsMu.Unlock()
	delete(s.eventSubs, sub)
	close(sub.Channel)
}

func (s *Store) notifyEventSubscribers(event model.SecurityEvent) {
	s.eventSubsMu.RLock()
	defer s.eventSubsMu.RUnlock()

	for sub := range s.eventSubs {
		if sub.MinSeverity != "" && !event.Severity.AtLeast(sub.MinSeverity) {
			continue
		}
		select {
		case sub.Channel <- event:
		default:
			// Channel full, skip
		}
	}
}
