package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soclab/quell/classifier"
	"github.com/soclab/quell/domain/entity"
	"github.com/soclab/quell/domain/repository"
	"github.com/soclab/quell/evidence"
	"github.com/soclab/quell/executor"
	"github.com/soclab/quell/ingest"
	"github.com/soclab/quell/metrics"
	"github.com/soclab/quell/playbook"
	"github.com/soclab/quell/presentation/report"
)

func timeNow() time.Time {
	return time.Now().UTC()
}

// ErrStatusConflict marks lifecycle requests rejected because of the
// incident's current status, as opposed to store failures.
var ErrStatusConflict = errors.New("status conflict")

// Notifierer is the notification surface the engine uses. Nil when the
// service runs without Slack.
type Notifierer interface {
	IncidentOpened(incident *entity.Incident) error
	SeverityRaised(incident *entity.Incident, previous entity.Severity) error
	ContainmentCompleted(incident *entity.Incident, executed, skipped int) error
	ContainmentFailed(incident *entity.Incident, failed int) error
	Escalation(incident *entity.Incident, elapsed string) error
	IncidentResolved(incident *entity.Incident) error
	IncidentClosed(incident *entity.Incident) error
}

// Engine runs the containment pipeline: dedup, correlate, classify,
// evidence, playbook, execute, audit, notify.
type Engine struct {
	mu         sync.Mutex
	repository repository.Repository
	config     *repository.Config
	classifier *classifier.Classifier
	selector   *playbook.Selector
	executor   *executor.Executor
	collector  *evidence.Collector
	deduper    *ingest.Deduper
	notifier   Notifierer
	ai         repository.AIRepositorier
	exporter   repository.ReportExporter
}

func NewEngine(
	repo repository.Repository,
	config *repository.Config,
	cls *classifier.Classifier,
	selector *playbook.Selector,
	exec *executor.Executor,
	collector *evidence.Collector,
	deduper *ingest.Deduper,
	notifier Notifierer,
	ai repository.AIRepositorier,
	exporter repository.ReportExporter,
) *Engine {
	return &Engine{
		repository: repo,
		config:     config,
		classifier: cls,
		selector:   selector,
		executor:   exec,
		collector:  collector,
		deduper:    deduper,
		notifier:   notifier,
		ai:         ai,
		exporter:   exporter,
	}
}

// HandleIndicator runs one normalized indicator through the pipeline and
// reports whether it was accepted (false means deduplicated).
func (e *Engine) HandleIndicator(ctx context.Context, indicator *entity.Indicator) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deduper != nil && e.deduper.Seen(indicator) {
		metrics.IndicatorsIngested.WithLabelValues(indicator.Source, "deduplicated").Inc()
		return false, nil
	}
	metrics.IndicatorsIngested.WithLabelValues(indicator.Source, "accepted").Inc()

	incident, err := e.repository.FindOpenIncidentByKey(ctx, indicator.CorrelationKey())
	if err != nil {
		return false, fmt.Errorf("failed to FindOpenIncidentByKey: %w", err)
	}

	opened := incident == nil
	if opened {
		incident = &entity.Incident{
			ID:             uuid.NewString(),
			CorrelationKey: indicator.CorrelationKey(),
			Category:       indicator.Category,
			Asset:          indicator.Asset,
			Status:         entity.IncidentStatusOpen,
			OpenedAt:       timeNow(),
		}
	}
	incident.Indicators = append(incident.Indicators, *indicator)

	e.audit(ctx, incident.ID, entity.AuditIndicatorAccepted, "ingest", indicator.Value,
		"accepted", fmt.Sprintf("source=%s type=%s", indicator.Source, indicator.Type))

	previous := incident.Severity
	severity, score, err := e.classifier.Classify(ctx, incident.Indicators)
	if err != nil {
		return false, fmt.Errorf("failed to classify: %w", err)
	}
	incident.Score = score
	// severity never drops once assigned
	if opened {
		incident.Severity = severity
		e.audit(ctx, incident.ID, entity.AuditSeverityAssigned, "classifier", string(severity),
			"assigned", fmt.Sprintf("score=%.2f", score))
	} else if severity.Rank() > previous.Rank() {
		incident.Severity = severity
		e.audit(ctx, incident.ID, entity.AuditSeverityRaised, "classifier", string(severity),
			"raised", fmt.Sprintf("previous=%s score=%.2f", previous, score))
	}

	if err := e.repository.SaveIncident(ctx, incident); err != nil {
		return false, fmt.Errorf("failed to SaveIncident: %w", err)
	}

	if opened {
		slog.Info("Incident opened",
			slog.String("incident_id", incident.ID),
			slog.String("category", string(incident.Category)),
			slog.String("asset", incident.Asset),
			slog.String("severity", string(incident.Severity)))
		e.audit(ctx, incident.ID, entity.AuditIncidentOpened, "engine", incident.Asset,
			"opened", string(incident.Category))
		if e.notifier != nil {
			if err := e.notifier.IncidentOpened(incident); err != nil {
				slog.Error("Failed to notify incident opened", slog.Any("err", err))
			}
		}
	} else if incident.Severity != previous {
		if e.notifier != nil {
			if err := e.notifier.SeverityRaised(incident, previous); err != nil {
				slog.Error("Failed to notify severity raised", slog.Any("err", err))
			}
		}
	}

	if err := e.contain(ctx, incident); err != nil {
		return false, err
	}

	metrics.IncidentsProcessed.WithLabelValues(
		string(incident.Category), string(incident.Severity), string(incident.Status)).Inc()
	return true, nil
}

// contain selects the playbook, captures evidence and executes the actions.
// Re-running is safe: executed actions are skipped via the audit store.
func (e *Engine) contain(ctx context.Context, incident *entity.Incident) error {
	pb, err := e.selector.Select(ctx, incident.Category, incident.Severity)
	if err != nil {
		if err == playbook.ErrNoPlaybook {
			incident.Status = entity.IncidentStatusContainFailed
			e.audit(ctx, incident.ID, entity.AuditPlaybookSelected, "selector", "",
				"error", "no playbook matches")
			return e.repository.SaveIncident(ctx, incident)
		}
		return fmt.Errorf("failed to select playbook: %w", err)
	}

	if incident.PlaybookID != pb.ID {
		incident.PlaybookID = pb.ID
		e.audit(ctx, incident.ID, entity.AuditPlaybookSelected, "selector", pb.ID,
			"selected", pb.Description)
	}

	if e.playbookDestructive(pb) && len(incident.Evidence) == 0 {
		item, err := e.collector.Capture(ctx, incident)
		if err != nil {
			// containment still runs; losing evidence is better than
			// losing the asset
			slog.Warn("Evidence capture failed",
				slog.String("incident_id", incident.ID), slog.Any("err", err))
			e.audit(ctx, incident.ID, entity.AuditEvidenceFailed, "collector",
				incident.Asset, "error", err.Error())
		} else {
			incident.Evidence = append(incident.Evidence, *item)
			e.audit(ctx, incident.ID, entity.AuditEvidenceCaptured, "collector",
				incident.Asset, "captured", item.StorageURL)
		}
	}

	result, err := e.executor.Execute(ctx, incident, pb)
	if err != nil {
		return fmt.Errorf("failed to execute playbook: %w", err)
	}

	if result.Contained() {
		if incident.ContainedAt.IsZero() {
			incident.ContainedAt = timeNow()
			metrics.ContainmentSeconds.WithLabelValues(
				string(incident.Category), string(incident.Severity)).
				Observe(incident.ContainedAt.Sub(incident.OpenedAt).Seconds())
		}
		incident.Status = entity.IncidentStatusContained
		if e.notifier != nil {
			if err := e.notifier.ContainmentCompleted(incident, result.Executed, result.Skipped); err != nil {
				slog.Error("Failed to notify containment completed", slog.Any("err", err))
			}
		}
	} else {
		incident.Status = entity.IncidentStatusContainFailed
		if e.notifier != nil {
			if err := e.notifier.ContainmentFailed(incident, result.Failed); err != nil {
				slog.Error("Failed to notify containment failed", slog.Any("err", err))
			}
		}
	}

	return e.repository.SaveIncident(ctx, incident)
}

func (e *Engine) playbookDestructive(pb *entity.Playbook) bool {
	for _, action := range pb.Actions {
		if action.Kind != entity.ActionNotify {
			return true
		}
	}
	return false
}

// Resolve marks an active incident resolved.
func (e *Engine) Resolve(ctx context.Context, incidentID, actor string) (*entity.Incident, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	incident, err := e.repository.FindIncidentByID(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to FindIncidentByID: %w", err)
	}
	if incident == nil {
		return nil, nil
	}
	if !incident.Status.Active() {
		return nil, fmt.Errorf("incident %s is already %s: %w", incidentID, incident.Status, ErrStatusConflict)
	}

	incident.Status = entity.IncidentStatusResolved
	incident.ResolvedAt = timeNow()
	if err := e.repository.SaveIncident(ctx, incident); err != nil {
		return nil, fmt.Errorf("failed to SaveIncident: %w", err)
	}
	e.audit(ctx, incident.ID, entity.AuditResolved, actor, "", "resolved", "")

	if e.notifier != nil {
		if err := e.notifier.IncidentResolved(incident); err != nil {
			slog.Error("Failed to notify incident resolved", slog.Any("err", err))
		}
	}
	return incident, nil
}

// Close closes a resolved incident and produces the post-incident report.
func (e *Engine) Close(ctx context.Context, incidentID, actor string) (*entity.Incident, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	incident, err := e.repository.FindIncidentByID(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to FindIncidentByID: %w", err)
	}
	if incident == nil {
		return nil, nil
	}
	if incident.Status == entity.IncidentStatusClosed {
		return nil, fmt.Errorf("incident %s is already closed: %w", incidentID, ErrStatusConflict)
	}
	if incident.Status != entity.IncidentStatusResolved {
		return nil, fmt.Errorf("incident %s must be resolved before closing: %w", incidentID, ErrStatusConflict)
	}

	incident.Status = entity.IncidentStatusClosed
	incident.ClosedAt = timeNow()

	if url, err := e.exportReport(ctx, incident); err != nil {
		slog.Error("Failed to export report", slog.Any("err", err))
	} else if url != "" {
		incident.ReportURL = url
		e.audit(ctx, incident.ID, entity.AuditReportExported, "engine", url, "exported", "")
	}

	if err := e.repository.SaveIncident(ctx, incident); err != nil {
		return nil, fmt.Errorf("failed to SaveIncident: %w", err)
	}
	e.audit(ctx, incident.ID, entity.AuditClosed, actor, "", "closed", "")

	if e.notifier != nil {
		if err := e.notifier.IncidentClosed(incident); err != nil {
			slog.Error("Failed to notify incident closed", slog.Any("err", err))
		}
	}
	return incident, nil
}

// Timeline returns the incident's audit entries in time order.
func (e *Engine) Timeline(ctx context.Context, incidentID string) ([]entity.AuditEntry, error) {
	return e.repository.Timeline(ctx, incidentID)
}

func (e *Engine) ActiveIncidents(ctx context.Context) ([]entity.Incident, error) {
	return e.repository.ActiveIncidents(ctx)
}

// CheckEscalations flags active incidents past their containment SLA.
func (e *Engine) CheckEscalations(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	candidates, err := e.repository.ActiveIncidents(ctx)
	if err != nil {
		slog.Error("Failed to list active incidents", slog.Any("err", err))
		return
	}

	for i := range candidates {
		candidate := &candidates[i]
		if candidate.Escalated || !candidate.ContainedAt.IsZero() {
			continue
		}
		sla := e.config.ContainmentSLA(candidate.Severity)
		if sla == 0 {
			continue
		}
		elapsed := time.Since(candidate.OpenedAt)
		if elapsed < sla {
			continue
		}

		// the listing can lag behind resolve/close; never save a stale snapshot
		incident, err := e.repository.FindIncidentByID(ctx, candidate.ID)
		if err != nil {
			slog.Error("Failed to reload incident",
				slog.String("incident_id", candidate.ID), slog.Any("err", err))
			continue
		}
		if incident == nil || incident.Escalated || !incident.Status.Active() || !incident.ContainedAt.IsZero() {
			continue
		}

		incident.Escalated = true
		if err := e.repository.SaveIncident(ctx, incident); err != nil {
			slog.Error("Failed to save escalated incident", slog.Any("err", err))
			continue
		}
		elapsedStr := fmt.Sprintf("%dh%02dm", int(elapsed.Hours()), int(elapsed.Minutes())%60)
		e.audit(ctx, incident.ID, entity.AuditEscalated, "engine", "",
			"escalated", fmt.Sprintf("elapsed=%s sla=%s", elapsedStr, sla))
		metrics.Escalations.WithLabelValues(string(incident.Severity)).Inc()
		slog.Warn("Incident escalated",
			slog.String("incident_id", incident.ID),
			slog.String("severity", string(incident.Severity)),
			slog.String("elapsed", elapsedStr))
		if e.notifier != nil {
			if err := e.notifier.Escalation(incident, elapsedStr); err != nil {
				slog.Error("Failed to notify escalation", slog.Any("err", err))
			}
		}
	}
}

func (e *Engine) exportReport(ctx context.Context, incident *entity.Incident) (string, error) {
	entries, err := e.repository.Timeline(ctx, incident.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load timeline: %w", err)
	}

	timeline := formatTimeline(entries)
	summary := "Generated without AI assistance; complete manually."
	rootCause := summary
	followUps := summary
	if e.ai != nil {
		prepared, err := e.ai.PrepareTimelineForReport(entries)
		if err != nil {
			slog.Warn("Failed to prepare timeline for report", slog.Any("err", err))
			prepared = timeline
		}
		if s, err := e.ai.SummarizeIncident(incident, prepared); err == nil {
			summary = s
		} else {
			slog.Warn("Failed to generate summary", slog.Any("err", err))
		}
		if s, err := e.ai.GenerateRootCause(incident, prepared); err == nil {
			rootCause = s
		} else {
			slog.Warn("Failed to generate root cause", slog.Any("err", err))
		}
		if s, err := e.ai.GenerateFollowUps(incident, prepared); err == nil {
			followUps = s
		} else {
			slog.Warn("Failed to generate follow-ups", slog.Any("err", err))
		}
	}

	var evidenceLines []string
	for _, item := range incident.Evidence {
		evidenceLines = append(evidenceLines,
			fmt.Sprintf("- %s (%s, captured %s)", item.StorageURL, item.Asset,
				item.CapturedAt.Format("2006-01-02 15:04:05")))
	}
	evidenceText := strings.Join(evidenceLines, "\n")
	if evidenceText == "" {
		evidenceText = "No evidence bundles were captured."
	}

	playbookText := "No playbook was selected."
	if incident.PlaybookID != "" {
		playbookText = incident.PlaybookID
		if pb, err := e.repository.PlaybookByID(ctx, incident.PlaybookID); err == nil && pb.Description != "" {
			playbookText = fmt.Sprintf("%s: %s", pb.ID, pb.Description)
		}
	}

	title := fmt.Sprintf("Post-Incident Report: %s on %s (%s)",
		incident.Category, incident.Asset, incident.OpenedAt.Format("2006-01-02"))
	body := report.Render(
		title,
		incident.OpenedAt.Format("2006-01-02 15:04:05"),
		incident.ClosedAt.Format("2006-01-02 15:04:05"),
		string(incident.Category),
		incident.Asset,
		string(incident.Severity),
		string(incident.Status),
		playbookText,
		summary,
		rootCause,
		followUps,
		evidenceText,
		timeline,
	)

	if e.exporter == nil {
		slog.Info("No report exporter configured, skipping export",
			slog.String("incident_id", incident.ID))
		return "", nil
	}
	return e.exporter.ExportReport(ctx, title, body)
}

func formatTimeline(entries []entity.AuditEntry) string {
	var builder strings.Builder
	for _, entry := range entries {
		builder.WriteString(fmt.Sprintf("- %s `%s` %s",
			entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.Event, entry.Actor))
		if entry.Action != "" {
			builder.WriteString(fmt.Sprintf(" %s→%s (%s)", entry.Action, entry.Target, entry.Outcome))
		}
		if entry.Detail != "" {
			builder.WriteString(": " + entry.Detail)
		}
		builder.WriteString("\n")
	}
	return builder.String()
}

func (e *Engine) audit(ctx context.Context, incidentID string, event entity.AuditEvent, actor, targetValue, outcome, detail string) {
	entry := &entity.AuditEntry{
		IncidentID: incidentID,
		CreatedAt:  timeNow(),
		ID:         uuid.NewString(),
		Event:      event,
		Actor:      actor,
		Target:     targetValue,
		Outcome:    outcome,
		Detail:     detail,
	}
	if err := e.repository.AppendAuditEntry(ctx, entry); err != nil {
		slog.Error("Failed to append audit entry", slog.Any("err", err))
	}
}
