package model

import "fmt"

// Severity is the closed set of severities used by findings, security
// events and threat alerts. Ordering: low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// ParseSeverity validates a severity string.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is equal to or more severe than other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

func (s Severity) String() string {
	return string(s)
}

// EventStatus is the triage state of a security event.
type EventStatus string

const (
	StatusOpen          EventStatus = "open"
	StatusInvestigating EventStatus = "investigating"
	StatusResolved      EventStatus = "resolved"
	StatusFalsePositive EventStatus = "false_positive"
)

// ParseEventStatus validates a status string.
func ParseEventStatus(s string) (EventStatus, error) {
	switch EventStatus(s) {
	case StatusOpen, StatusInvestigating, StatusResolved, StatusFalsePositive:
		return EventStatus(s), nil
	}
	return "", fmt.Errorf("unknown event status %q", s)
}

// ActionTaken is the protective action recorded on a threat alert.
type ActionTaken string

const (
	ActionBlocked     ActionTaken = "blocked"
	ActionRateLimited ActionTaken = "rate_limited"
	ActionLogged      ActionTaken = "logged"
	ActionQuarantined ActionTaken = "quarantined"
)
