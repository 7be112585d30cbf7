package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/viralforge/dbfleet/internal/domain"
)

// StartScan registers a pending scan for a server. The record starts in the
// pending state and only transition calls move it forward.
func (s *Service) StartScan(ctx context.Context, req StartScanRequest) (domain.ScanRecord, error) {
	if req.ServerID == uuid.Nil {
		return domain.ScanRecord{}, fmt.Errorf("%w: server_id is required", domain.ErrInvalidInput)
	}

	scan := domain.ScanRecord{
		ScanID:    uuid.New(),
		ServerID:  req.ServerID,
		Status:    domain.ScanPending,
		StartedAt: s.nowFn(),
	}
	if err := s.scans.Create(ctx, scan); err != nil {
		return domain.ScanRecord{}, err
	}

	slog.Default().InfoContext(ctx, "scan registered",
		"service", "dbfleet",
		"module", "application",
		"layer", "application",
		"operation", "start_scan",
		"outcome", "success",
		"scan_id", scan.ScanID,
		"server_id", scan.ServerID,
	)
	return scan, nil
}

// MarkScanRunning moves a pending scan to running and stamps the actual
// start time. Any other current state reports ErrConflict.
func (s *Service) MarkScanRunning(ctx context.Context, scanID uuid.UUID) error {
	return s.scans.MarkRunning(ctx, scanID, s.nowFn())
}

// CompleteScan moves a running scan to its terminal completed state along
// with the discovery counts.
func (s *Service) CompleteScan(ctx context.Context, scanID uuid.UUID, req CompleteScanRequest) error {
	return s.scans.Complete(ctx, scanID, s.nowFn(), req.UsersFound, req.RolesFound, req.TablesFound)
}

// FailScan moves a running scan to its terminal failed state and records the
// failure message.
func (s *Service) FailScan(ctx context.Context, scanID uuid.UUID, message string) error {
	return s.scans.Fail(ctx, scanID, s.nowFn(), message)
}

func (s *Service) GetScan(ctx context.Context, scanID uuid.UUID) (domain.ScanRecord, error) {
	return s.scans.Get(ctx, scanID)
}

// ListScans returns scan history, newest first, optionally narrowed to one
// server.
func (s *Service) ListScans(ctx context.Context, serverID *uuid.UUID, limit int) ([]domain.ScanRecord, error) {
	if serverID != nil && *serverID != uuid.Nil {
		return s.scans.ListByServer(ctx, *serverID, limit)
	}
	return s.scans.ListRecent(ctx, limit)
}
