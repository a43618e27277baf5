// Package playbook selects the action sequence for an incident.
package playbook

import (
	"context"
	"fmt"

	"github.com/soclab/quell/domain/entity"
	"github.com/soclab/quell/domain/repository"
)

var ErrNoPlaybook = fmt.Errorf("no playbook matches")

type Selector struct {
	repository repository.PlaybookRepository
}

func NewSelector(repository repository.PlaybookRepository) *Selector {
	return &Selector{repository: repository}
}

// Select returns the playbook for (category, severity). An exact severity
// match wins over a min_severity match, which wins over the default
// playbook. Disabled playbooks never match.
func (s *Selector) Select(ctx context.Context, category entity.IncidentCategory, severity entity.Severity) (*entity.Playbook, error) {
	playbooks := s.repository.Playbooks(ctx)

	var rangeMatch *entity.Playbook
	var fallback *entity.Playbook
	for i := range playbooks {
		p := &playbooks[i]
		if p.Category == string(category) && p.Severity == string(severity) {
			return p, nil
		}
		if p.Category == string(category) && p.MinSeverity != "" &&
			severity.AtLeast(entity.Severity(p.MinSeverity)) {
			// prefer the tightest min_severity bound
			if rangeMatch == nil || entity.Severity(p.MinSeverity).Rank() > entity.Severity(rangeMatch.MinSeverity).Rank() {
				rangeMatch = p
			}
		}
		if p.Default && fallback == nil {
			fallback = p
		}
	}

	if rangeMatch != nil {
		return rangeMatch, nil
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, ErrNoPlaybook
}
