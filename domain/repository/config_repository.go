package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/soclab/quell/domain/entity"
	"github.com/spf13/viper"
)

func NewConfigRepository(path string) (*Config, error) {
	viper.SetConfigFile(path)

	viper.AutomaticEnv()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	err := viper.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}

	var c Config
	err = viper.Unmarshal(&c)
	if err != nil {
		return nil, fmt.Errorf("unmarshal config error: %w", err)
	}
	valid := validator.New()
	if err = valid.Struct(c); err != nil {
		return nil, fmt.Errorf("validate config error: %w", err)
	}

	return &c, nil
}

type Config struct {
	ListenAddr                string                   `mapstructure:"listen_addr"`
	DedupWindowMinutes        int                      `mapstructure:"dedup_window_minutes" validate:"gte=0"`
	EscalationIntervalMinutes int                      `mapstructure:"escalation_interval_minutes" validate:"gte=0"`
	AnnouncementChannelList   []string                 `mapstructure:"announcement_channels"`
	EscalationMention         string                   `mapstructure:"escalation_mention" validate:"omitempty,oneof=here channel none"`
	PlaybookList              []entity.Playbook        `mapstructure:"playbooks" validate:"required,dive"`
	SeverityRuleList          []entity.SeverityRule    `mapstructure:"severity_rules" validate:"required,dive"`
	CategoryWeightList        []entity.CategoryWeight  `mapstructure:"category_weights" validate:"dive"`
	IndicatorWeightList       []entity.IndicatorWeight `mapstructure:"indicator_weights" validate:"dive"`
	EDR                       ResponderConfig          `mapstructure:"edr"`
	Identity                  ResponderConfig          `mapstructure:"identity"`
	Firewall                  ResponderConfig          `mapstructure:"firewall"`
	Evidence                  EvidenceConfig           `mapstructure:"evidence"`
	Confluence                ConfluenceConfig         `mapstructure:"confluence"`
}

// ResponderConfig points at one external containment surface.
type ResponderConfig struct {
	Endpoint       string `mapstructure:"endpoint" validate:"omitempty,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
}

type EvidenceConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

type ConfluenceConfig struct {
	AncestorID string `mapstructure:"ancestor_id"`
	Space      string `mapstructure:"space"`
	Domain     string `mapstructure:"domain"`
}

func (c *Config) Playbooks(_ context.Context) []entity.Playbook {
	var playbooks []entity.Playbook
	for _, p := range c.PlaybookList {
		if p.Disabled {
			continue
		}
		playbooks = append(playbooks, p)
	}
	return playbooks
}

func (c *Config) PlaybookByID(_ context.Context, id string) (*entity.Playbook, error) {
	for _, p := range c.PlaybookList {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("playbook not found")
}

func (c *Config) SeverityRules(_ context.Context) []entity.SeverityRule {
	var rules []entity.SeverityRule
	for _, r := range c.SeverityRuleList {
		if r.Disabled {
			continue
		}
		rules = append(rules, r)
	}
	return rules
}

func (c *Config) CategoryWeights(_ context.Context) []entity.CategoryWeight {
	return c.CategoryWeightList
}

func (c *Config) IndicatorWeights(_ context.Context) []entity.IndicatorWeight {
	return c.IndicatorWeightList
}

func (c *Config) AnnouncementChannels(_ context.Context) []string {
	return c.AnnouncementChannelList
}

func (c *Config) DedupWindow() time.Duration {
	if c.DedupWindowMinutes == 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.DedupWindowMinutes) * time.Minute
}

func (c *Config) EscalationInterval() time.Duration {
	if c.EscalationIntervalMinutes == 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.EscalationIntervalMinutes) * time.Minute
}

// ContainmentSLA returns the containment deadline for the severity, or zero
// when the level has no SLA configured.
func (c *Config) ContainmentSLA(severity entity.Severity) time.Duration {
	for _, r := range c.SeverityRuleList {
		if r.Disabled {
			continue
		}
		if entity.Severity(r.Severity) == severity {
			return time.Duration(r.SLAMinutes) * time.Minute
		}
	}
	return 0
}
