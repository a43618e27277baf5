package entity

type ActionKind string

const (
	ActionIsolateHost    ActionKind = "isolate_host"
	ActionKillProcess    ActionKind = "kill_process"
	ActionDisableAccount ActionKind = "disable_account"
	ActionBlockIP        ActionKind = "block_ip"
	ActionBlockDomain    ActionKind = "block_domain"
	ActionNotify         ActionKind = "notify"
)

// PlaybookAction is one step of a playbook, executed in order.
type PlaybookAction struct {
	Kind ActionKind `mapstructure:"kind" validate:"required,oneof=isolate_host kill_process disable_account block_ip block_domain notify"`
	// Critical aborts the remaining steps when this one fails.
	Critical bool   `mapstructure:"critical"`
	Message  string `mapstructure:"message"`
}

// Playbook maps an incident category and severity to an ordered action
// sequence. Selection prefers an exact severity match, then a playbook whose
// min_severity the incident meets, then the default playbook.
type Playbook struct {
	ID          string           `mapstructure:"id" validate:"required"`
	Description string           `mapstructure:"description"`
	Category    string           `mapstructure:"category"`
	Severity    string           `mapstructure:"severity" validate:"omitempty,oneof=info low medium high critical"`
	MinSeverity string           `mapstructure:"min_severity" validate:"omitempty,oneof=info low medium high critical"`
	Default     bool             `mapstructure:"default"`
	Disabled    bool             `mapstructure:"disabled"`
	Actions     []PlaybookAction `mapstructure:"actions" validate:"required,min=1,dive"`
}
