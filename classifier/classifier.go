// Package classifier maps indicator sets to severity levels using the
// configured thresholds.
package classifier

import (
	"context"
	"fmt"
	"sort"

	"github.com/soclab/quell/domain/entity"
	"github.com/soclab/quell/domain/repository"
)

type Classifier struct {
	repository repository.SeverityRuleRepository
}

func New(repository repository.SeverityRuleRepository) *Classifier {
	return &Classifier{repository: repository}
}

// Classify scores the indicator set and returns the severity whose threshold
// the score meets. Scoring is additive per indicator, so an incident that
// gains indicators can only keep or raise its severity.
func (c *Classifier) Classify(ctx context.Context, indicators []entity.Indicator) (entity.Severity, float64, error) {
	rules := c.repository.SeverityRules(ctx)
	if len(rules) == 0 {
		return "", 0, fmt.Errorf("no severity rules configured")
	}

	categoryWeights := map[string]float64{}
	for _, w := range c.repository.CategoryWeights(ctx) {
		categoryWeights[w.Category] = w.Weight
	}
	indicatorWeights := map[string]float64{}
	for _, w := range c.repository.IndicatorWeights(ctx) {
		indicatorWeights[w.Type] = w.Weight
	}

	var score float64
	for _, indicator := range indicators {
		weight := categoryWeights[string(indicator.Category)] + indicatorWeights[string(indicator.Type)]
		if weight == 0 {
			weight = 1
		}
		confidence := indicator.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.5
		}
		score += weight * confidence
	}

	sorted := make([]entity.SeverityRule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Threshold > sorted[j].Threshold
	})

	for _, rule := range sorted {
		if score >= rule.Threshold {
			return entity.Severity(rule.Severity), score, nil
		}
	}
	return entity.SeverityInfo, score, nil
}
