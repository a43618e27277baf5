package repository

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/guregu/dynamo/v2"
	"github.com/soclab/quell/domain/entity"
)

var incidentsTable = "incidents"
var auditTable = "incident_audit"

func init() {
	if os.Getenv("DYNAMO_INCIDENTS_TABLE") != "" {
		incidentsTable = os.Getenv("DYNAMO_INCIDENTS_TABLE")
	}
	if os.Getenv("DYNAMO_AUDIT_TABLE") != "" {
		auditTable = os.Getenv("DYNAMO_AUDIT_TABLE")
	}
}

func NewDynamoDBRepository() (*DynamoDBRepository, error) {
	var db *dynamo.DB
	if os.Getenv("DYNAMO_LOCAL") != "" {
		cfg, err := config.LoadDefaultConfig(context.TODO(),
			config.WithRegion("dummy"),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "dummy")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}
		db = dynamo.New(cfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String("http://localhost:8000")
		},
		)

		err = setupDdbSchema(db)
		if err != nil {
			return nil, fmt.Errorf("failed to setup schema: %v", err)
		}
	} else {
		cfg, err := config.LoadDefaultConfig(context.TODO())
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}
		db = dynamo.New(cfg)
	}

	return &DynamoDBRepository{db: db}, nil
}

func setupDdbSchema(db *dynamo.DB) error {
	tables := map[string]interface{}{
		incidentsTable: entity.Incident{},
		auditTable:     entity.AuditEntry{},
	}
	for name, model := range tables {
		t := db.Table(name)
		_, err := t.Describe().Run(context.TODO())
		if err == nil {
			continue
		}

		input := db.CreateTable(name, model).
			Provision(10, 10)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := input.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

type DynamoDBRepository struct {
	db *dynamo.DB
}

func (r *DynamoDBRepository) FindIncidentByID(ctx context.Context, id string) (*entity.Incident, error) {
	incident := &entity.Incident{}
	err := r.db.Table(incidentsTable).Get("id", id).One(ctx, incident)
	if err != nil {
		if err == dynamo.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return incident, nil
}

// FindOpenIncidentByKey returns the active incident sharing the correlation
// key, or nil when every incident with that key is resolved or closed.
func (r *DynamoDBRepository) FindOpenIncidentByKey(ctx context.Context, key string) (*entity.Incident, error) {
	var incidents []entity.Incident
	err := r.db.Table(incidentsTable).Scan().Filter("'correlation_key' = ?", key).All(ctx, &incidents)
	if err != nil {
		return nil, err
	}
	for _, incident := range incidents {
		if incident.Status.Active() {
			return &incident, nil
		}
	}
	return nil, nil
}

func (r *DynamoDBRepository) SaveIncident(ctx context.Context, incident *entity.Incident) error {
	return r.db.Table(incidentsTable).Put(incident).Run(ctx)
}

// ActiveIncidents returns incidents with no resolved_at or closed_at yet.
func (r *DynamoDBRepository) ActiveIncidents(ctx context.Context) ([]entity.Incident, error) {
	var incidents []entity.Incident
	t := time.Time{}
	err := r.db.Table(incidentsTable).Scan().Filter("'closed_at' = ? AND 'resolved_at' = ?", t, t).All(ctx, &incidents)
	if err != nil {
		return nil, err
	}
	return incidents, nil
}

// AppendAuditEntry writes one timeline entry. Entries are never updated or
// deleted afterwards.
func (r *DynamoDBRepository) AppendAuditEntry(ctx context.Context, entry *entity.AuditEntry) error {
	return r.db.Table(auditTable).Put(entry).Run(ctx)
}

func (r *DynamoDBRepository) Timeline(ctx context.Context, incidentID string) ([]entity.AuditEntry, error) {
	var entries []entity.AuditEntry
	err := r.db.Table(auditTable).Get("incident_id", incidentID).All(ctx, &entries)
	if err != nil {
		if err == dynamo.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}
