package entity

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRanks = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

func (s Severity) Rank() int {
	return severityRanks[s]
}

func (s Severity) Valid() bool {
	_, ok := severityRanks[s]
	return ok
}

// AtLeast reports whether s is the same or a more severe level than other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// SeverityRule maps a classification score range to a severity level.
// Rules come from the config file and are evaluated highest threshold first.
type SeverityRule struct {
	Severity  string  `mapstructure:"severity" validate:"required,oneof=info low medium high critical"`
	Threshold float64 `mapstructure:"threshold" validate:"gte=0"`
	// SLAMinutes is the containment deadline used by the escalation ticker.
	SLAMinutes int  `mapstructure:"sla_minutes" validate:"gte=0"`
	Disabled   bool `mapstructure:"disabled"`
}

// CategoryWeight is the per-category base score contribution.
type CategoryWeight struct {
	Category string  `mapstructure:"category" validate:"required"`
	Weight   float64 `mapstructure:"weight" validate:"gte=0"`
}

// IndicatorWeight is the per-indicator-type score contribution.
type IndicatorWeight struct {
	Type   string  `mapstructure:"type" validate:"required"`
	Weight float64 `mapstructure:"weight" validate:"gte=0"`
}
