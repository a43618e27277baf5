package entity

import "time"

// EvidenceItem points at one volatile-state bundle captured before
// containment ran against the asset.
type EvidenceItem struct {
	ID         string    `json:"id" dynamo:"id"`
	Asset      string    `json:"asset" dynamo:"asset"`
	StorageURL string    `json:"storage_url" dynamo:"storage_url"`
	CapturedAt time.Time `json:"captured_at" dynamo:"captured_at"`
}

// EvidenceBundle is the payload uploaded to object storage. Processes and
// connections are snapshotted as the EDR returned them; remediation may
// destroy both within seconds.
type EvidenceBundle struct {
	IncidentID  string           `json:"incident_id"`
	Asset       string           `json:"asset"`
	CapturedAt  time.Time        `json:"captured_at"`
	Processes   []HostProcess    `json:"processes"`
	Connections []HostConnection `json:"connections"`
}

type HostProcess struct {
	PID         int    `json:"pid"`
	Name        string `json:"name"`
	CommandLine string `json:"command_line"`
	User        string `json:"user"`
	SHA256      string `json:"sha256"`
}

type HostConnection struct {
	Protocol   string `json:"protocol"`
	LocalAddr  string `json:"local_addr"`
	RemoteAddr string `json:"remote_addr"`
	State      string `json:"state"`
	PID        int    `json:"pid"`
}
