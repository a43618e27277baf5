package repository

import (
	"context"

	"github.com/soclab/quell/domain/entity"
)

type IncidentRepository interface {
	FindIncidentByID(context.Context, string) (*entity.Incident, error)
	FindOpenIncidentByKey(context.Context, string) (*entity.Incident, error)
	SaveIncident(context.Context, *entity.Incident) error
	ActiveIncidents(context.Context) ([]entity.Incident, error)
}

type AuditRepository interface {
	AppendAuditEntry(context.Context, *entity.AuditEntry) error
	Timeline(context.Context, string) ([]entity.AuditEntry, error)
}

type PlaybookRepository interface {
	Playbooks(context.Context) []entity.Playbook
	PlaybookByID(context.Context, string) (*entity.Playbook, error)
}

type SeverityRuleRepository interface {
	SeverityRules(context.Context) []entity.SeverityRule
	CategoryWeights(context.Context) []entity.CategoryWeight
	IndicatorWeights(context.Context) []entity.IndicatorWeight
	AnnouncementChannels(context.Context) []string
}

type Repository interface {
	IncidentRepository
	AuditRepository
	PlaybookRepository
	SeverityRuleRepository
}

type RepositoryFacade struct {
	IncidentRepository
	AuditRepository
	PlaybookRepository
	SeverityRuleRepository
}

// EvidenceStorer uploads one evidence bundle and returns its storage URL.
type EvidenceStorer interface {
	PutEvidenceBundle(context.Context, *entity.EvidenceBundle) (string, error)
}

// ReportExporter publishes a post-incident report and returns its URL.
type ReportExporter interface {
	ExportReport(context.Context, string, string) (string, error)
}

func NewRepository(
	incidentRepository IncidentRepository,
	auditRepository AuditRepository,
	playbookRepository PlaybookRepository,
	severityRuleRepository SeverityRuleRepository,
) Repository {
	return RepositoryFacade{
		IncidentRepository:     incidentRepository,
		AuditRepository:        auditRepository,
		PlaybookRepository:     playbookRepository,
		SeverityRuleRepository: severityRuleRepository,
	}
}
