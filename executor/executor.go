// Package executor carries out playbook actions against the external
// containment surfaces.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Songmu/retry"
	"github.com/google/uuid"
	"github.com/soclab/quell/domain/entity"
	"github.com/soclab/quell/domain/repository"
	"github.com/soclab/quell/metrics"
	"github.com/soclab/quell/responder"
)

// Announcer posts a containment notification. Implemented by the handler's
// Slack notifier; nil when the service runs headless.
type Announcer interface {
	Announce(ctx context.Context, incident *entity.Incident, message string) error
}

type Executor struct {
	repository repository.AuditRepository
	edr        responder.EDRClienter
	identity   responder.IdentityClienter
	firewall   responder.FirewallClienter
	announcer  Announcer
}

func New(
	repository repository.AuditRepository,
	edr responder.EDRClienter,
	identity responder.IdentityClienter,
	firewall responder.FirewallClienter,
	announcer Announcer,
) *Executor {
	return &Executor{
		repository: repository,
		edr:        edr,
		identity:   identity,
		firewall:   firewall,
		announcer:  announcer,
	}
}

// Result summarizes one playbook run.
type Result struct {
	Executed int
	Skipped  int
	Failed   int
	// Aborted is set when a critical action failed and the remaining
	// steps were not attempted.
	Aborted bool
}

func (r Result) Contained() bool {
	return r.Failed == 0 && !r.Aborted
}

type target struct {
	action string
	value  string
}

// Execute runs the playbook actions in order. Actions already completed for
// this incident are skipped; every attempt lands in the audit store either
// way.
func (e *Executor) Execute(ctx context.Context, incident *entity.Incident, pb *entity.Playbook) (*Result, error) {
	done, err := e.completedActions(ctx, incident.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load executed actions: %w", err)
	}

	result := &Result{}
	for _, action := range pb.Actions {
		targets, err := e.targetsFor(incident, action)
		if err != nil {
			e.audit(ctx, incident.ID, entity.AuditActionFailed, string(action.Kind), "", "error", err.Error())
			metrics.ActionsExecuted.WithLabelValues(string(action.Kind), "error").Inc()
			result.Failed++
			if action.Critical {
				result.Aborted = true
				return result, nil
			}
			continue
		}

		for _, t := range targets {
			key := t.action + "|" + t.value
			if done[key] {
				slog.Info("Action already executed, skipping",
					slog.String("incident_id", incident.ID),
					slog.String("action", t.action),
					slog.String("target", t.value))
				e.audit(ctx, incident.ID, entity.AuditActionSkipped, t.action, t.value, "skipped", "already executed")
				metrics.ActionsExecuted.WithLabelValues(t.action, "skipped").Inc()
				result.Skipped++
				continue
			}

			err := retry.Retry(3, 2*time.Second, func() error {
				return e.run(ctx, incident, action.Kind, t.value, action.Message)
			})
			if err != nil {
				slog.Error("Action failed",
					slog.String("incident_id", incident.ID),
					slog.String("action", t.action),
					slog.String("target", t.value),
					slog.Any("err", err))
				e.audit(ctx, incident.ID, entity.AuditActionFailed, t.action, t.value, "error", err.Error())
				metrics.ActionsExecuted.WithLabelValues(t.action, "error").Inc()
				result.Failed++
				if action.Critical {
					result.Aborted = true
					return result, nil
				}
				continue
			}

			e.audit(ctx, incident.ID, entity.AuditActionExecuted, t.action, t.value, "success", "")
			metrics.ActionsExecuted.WithLabelValues(t.action, "success").Inc()
			done[key] = true
			result.Executed++
		}
	}
	return result, nil
}

func (e *Executor) run(ctx context.Context, incident *entity.Incident, kind entity.ActionKind, value, message string) error {
	switch kind {
	case entity.ActionIsolateHost:
		if e.edr == nil {
			return fmt.Errorf("edr responder is not configured")
		}
		return e.edr.IsolateHost(ctx, value)
	case entity.ActionKillProcess:
		if e.edr == nil {
			return fmt.Errorf("edr responder is not configured")
		}
		return e.edr.KillProcess(ctx, incident.Asset, value)
	case entity.ActionDisableAccount:
		if e.identity == nil {
			return fmt.Errorf("identity responder is not configured")
		}
		return e.identity.DisableAccount(ctx, value)
	case entity.ActionBlockIP:
		if e.firewall == nil {
			return fmt.Errorf("firewall responder is not configured")
		}
		return e.firewall.BlockIP(ctx, value)
	case entity.ActionBlockDomain:
		if e.firewall == nil {
			return fmt.Errorf("firewall responder is not configured")
		}
		return e.firewall.BlockDomain(ctx, value)
	case entity.ActionNotify:
		if e.announcer == nil {
			return nil
		}
		return e.announcer.Announce(ctx, incident, message)
	}
	return fmt.Errorf("unknown action kind: %s", kind)
}

// targetsFor derives the concrete targets of one playbook step from the
// incident's indicator set.
func (e *Executor) targetsFor(incident *entity.Incident, action entity.PlaybookAction) ([]target, error) {
	name := string(action.Kind)
	switch action.Kind {
	case entity.ActionIsolateHost:
		return []target{{action: name, value: incident.Asset}}, nil
	case entity.ActionNotify:
		return []target{{action: name, value: "announcement_channels"}}, nil
	case entity.ActionKillProcess:
		targets := uniqueTargets(name, incident.Indicators, entity.IndicatorTypeHash)
		if len(targets) == 0 {
			return nil, fmt.Errorf("no process hash indicator for kill_process")
		}
		return targets, nil
	case entity.ActionDisableAccount:
		targets := uniqueTargets(name, incident.Indicators, entity.IndicatorTypeAccount, entity.IndicatorTypeEmail)
		if len(targets) == 0 {
			return nil, fmt.Errorf("no account indicator for disable_account")
		}
		return targets, nil
	case entity.ActionBlockIP:
		targets := uniqueTargets(name, incident.Indicators, entity.IndicatorTypeIP)
		if len(targets) == 0 {
			return nil, fmt.Errorf("no ip indicator for block_ip")
		}
		return targets, nil
	case entity.ActionBlockDomain:
		targets := uniqueTargets(name, incident.Indicators, entity.IndicatorTypeDomain, entity.IndicatorTypeURL)
		if len(targets) == 0 {
			return nil, fmt.Errorf("no domain indicator for block_domain")
		}
		return targets, nil
	}
	return nil, fmt.Errorf("unknown action kind: %s", action.Kind)
}

func uniqueTargets(action string, indicators []entity.Indicator, types ...entity.IndicatorType) []target {
	seen := map[string]bool{}
	var targets []target
	for _, indicator := range indicators {
		for _, t := range types {
			if indicator.Type == t && !seen[indicator.Value] {
				seen[indicator.Value] = true
				targets = append(targets, target{action: action, value: indicator.Value})
			}
		}
	}
	return targets
}

func (e *Executor) completedActions(ctx context.Context, incidentID string) (map[string]bool, error) {
	entries, err := e.repository.Timeline(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	done := map[string]bool{}
	for _, entry := range entries {
		if entry.Event == entity.AuditActionExecuted {
			done[entry.ActionKey()] = true
		}
	}
	return done, nil
}

func (e *Executor) audit(ctx context.Context, incidentID string, event entity.AuditEvent, action, targetValue, outcome, detail string) {
	entry := &entity.AuditEntry{
		IncidentID: incidentID,
		CreatedAt:  time.Now().UTC(),
		ID:         uuid.NewString(),
		Event:      event,
		Actor:      "executor",
		Action:     action,
		Target:     targetValue,
		Outcome:    outcome,
		Detail:     detail,
	}
	if err := e.repository.AppendAuditEntry(ctx, entry); err != nil {
		slog.Error("Failed to append audit entry", slog.Any("err", err))
	}
}
