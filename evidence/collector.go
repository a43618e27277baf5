// Package evidence snapshots volatile host state before containment can
// destroy it.
package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/soclab/quell/domain/entity"
	"github.com/soclab/quell/domain/repository"
	"github.com/soclab/quell/responder"
)

type Collector struct {
	edr    responder.EDRClienter
	storer repository.EvidenceStorer
}

func NewCollector(edr responder.EDRClienter, storer repository.EvidenceStorer) *Collector {
	return &Collector{edr: edr, storer: storer}
}

// Capture snapshots processes and network connections of the incident's
// asset and uploads the bundle. It must run before any destructive action;
// the engine enforces that ordering.
func (c *Collector) Capture(ctx context.Context, incident *entity.Incident) (*entity.EvidenceItem, error) {
	if c.edr == nil || c.storer == nil {
		return nil, fmt.Errorf("evidence collection is not configured")
	}

	capturedAt := time.Now().UTC()
	bundle := &entity.EvidenceBundle{
		IncidentID: incident.ID,
		Asset:      incident.Asset,
		CapturedAt: capturedAt,
	}

	processes, err := c.edr.ListProcesses(ctx, incident.Asset)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot processes: %w", err)
	}
	bundle.Processes = processes

	connections, err := c.edr.ListConnections(ctx, incident.Asset)
	if err != nil {
		// keep the process snapshot; half a bundle beats none
		slog.Warn("Failed to snapshot connections", slog.Any("asset", incident.Asset), slog.Any("err", err))
	} else {
		bundle.Connections = connections
	}

	url, err := c.storer.PutEvidenceBundle(ctx, bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to store evidence bundle: %w", err)
	}

	return &entity.EvidenceItem{
		ID:         uuid.NewString(),
		Asset:      incident.Asset,
		StorageURL: url,
		CapturedAt: capturedAt,
	}, nil
}
