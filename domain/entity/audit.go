package entity

import "time"

type AuditEvent string

const (
	AuditIndicatorAccepted AuditEvent = "indicator_accepted"
	AuditIncidentOpened    AuditEvent = "incident_opened"
	AuditSeverityAssigned  AuditEvent = "severity_assigned"
	AuditSeverityRaised    AuditEvent = "severity_raised"
	AuditPlaybookSelected  AuditEvent = "playbook_selected"
	AuditEvidenceCaptured  AuditEvent = "evidence_captured"
	AuditEvidenceFailed    AuditEvent = "evidence_failed"
	AuditActionExecuted    AuditEvent = "action_executed"
	AuditActionSkipped     AuditEvent = "action_skipped"
	AuditActionFailed      AuditEvent = "action_failed"
	AuditEscalated         AuditEvent = "escalated"
	AuditResolved          AuditEvent = "resolved"
	AuditClosed            AuditEvent = "closed"
	AuditReportExported    AuditEvent = "report_exported"
)

// AuditEntry is one line of the append-only incident timeline. Entries are
// written once and never updated.
type AuditEntry struct {
	IncidentID string     `json:"incident_id" dynamo:"incident_id,hash"`
	CreatedAt  time.Time  `json:"created_at" dynamo:"created_at,range"`
	ID         string     `json:"id" dynamo:"id"`
	Event      AuditEvent `json:"event" dynamo:"event"`
	Actor      string     `json:"actor" dynamo:"actor"`
	Action     string     `json:"action" dynamo:"action"`
	Target     string     `json:"target" dynamo:"target"`
	Outcome    string     `json:"outcome" dynamo:"outcome"`
	Detail     string     `json:"detail" dynamo:"detail"`
}

// ActionKey identifies an executed action for idempotency checks.
func (e *AuditEntry) ActionKey() string {
	return e.Action + "|" + e.Target
}
