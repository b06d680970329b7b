package model

import "time"

// SecurityEvent is a persisted record of a finding or traffic violation,
// subject to operator triage. Mutated only via status transitions.
type SecurityEvent struct {
	ID          string                 `json:"id"`
	EventType   string                 `json:"event_type"`
	Severity    Severity               `json:"severity"`
	SourceIP    string                 `json:"source_ip,omitempty"`
	SensorID    string                 `json:"sensor_id,omitempty"`
	UserID      string                 `json:"user_id,omitempty"`
	Description string                 `json:"description"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Status      EventStatus            `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
	ResolvedAt  *time.Time             `json:"resolved_at,omitempty"`
}

// ThreatAlert is the derived escalation record created for every
// high/critical security event. Append-only.
type ThreatAlert struct {
	ID             string                 `json:"id"`
	AlertType      string                 `json:"alert_type"`
	ThreatLevel    Severity               `json:"threat_level"`
	SourceIP       string                 `json:"source_ip,omitempty"`
	TargetEndpoint string                 `json:"target_endpoint,omitempty"`
	ActionTaken    ActionTaken            `json:"action_taken"`
	Description    string                 `json:"description"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// AuditLogEntry records one completed HTTP request.
type AuditLogEntry struct {
	ID         string                 `json:"id"`
	UserID     string                 `json:"user_id,omitempty"`
	Action     string                 `json:"action"`
	Endpoint   string                 `json:"endpoint"`
	Method     string                 `json:"method"`
	SourceIP   string                 `json:"source_ip"`
	UserAgent  string                 `json:"user_agent,omitempty"`
	StatusCode int                    `json:"status_code"`
	Success    bool                   `json:"success"`
	Details    map[string]interface{} `json:"details,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}
