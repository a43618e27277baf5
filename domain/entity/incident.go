package entity

import "time"

type IncidentStatus string

const (
	IncidentStatusOpen          IncidentStatus = "open"
	IncidentStatusContained     IncidentStatus = "contained"
	IncidentStatusContainFailed IncidentStatus = "contain_failed"
	IncidentStatusResolved      IncidentStatus = "resolved"
	IncidentStatusClosed        IncidentStatus = "closed"
)

// Active reports whether the incident still accepts indicators and
// escalation checks.
func (s IncidentStatus) Active() bool {
	return s != IncidentStatusResolved && s != IncidentStatusClosed
}

type Incident struct {
	ID             string           `json:"id" dynamo:"id,hash"`
	CorrelationKey string           `json:"correlation_key" dynamo:"correlation_key"`
	Category       IncidentCategory `json:"category" dynamo:"category"`
	Asset          string           `json:"asset" dynamo:"asset"`
	Severity       Severity         `json:"severity" dynamo:"severity"`
	Score          float64          `json:"score" dynamo:"score"`
	Status         IncidentStatus   `json:"status" dynamo:"status"`
	PlaybookID     string           `json:"playbook_id" dynamo:"playbook_id"`
	Indicators     []Indicator      `json:"indicators" dynamo:"indicators"`
	Evidence       []EvidenceItem   `json:"evidence" dynamo:"evidence"`
	Escalated      bool             `json:"escalated" dynamo:"escalated"`
	ReportURL      string           `json:"report_url" dynamo:"report_url"`
	OpenedAt       time.Time        `json:"opened_at" dynamo:"opened_at"`
	ContainedAt    time.Time        `json:"contained_at" dynamo:"contained_at"`
	ResolvedAt     time.Time        `json:"resolved_at" dynamo:"resolved_at"`
	ClosedAt       time.Time        `json:"closed_at" dynamo:"closed_at"`
}
