// workers/audit_export.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-trust-system/models"
	"wallet-trust-system/repository"

	"go.uber.org/zap"
)

// ObjectUploader stores an object and returns where it landed.
type ObjectUploader interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// AuditSnapshot is one export: every relationship and transfer changed in [From, To).
type AuditSnapshot struct {
	From          time.Time                  `json:"from"`
	To            time.Time                  `json:"to"`
	Relationships []models.TrustRelationship `json:"relationships"`
	Transfers     []models.Transfer          `json:"transfers"`
}

// AuditExporter uploads incremental snapshots. The window only advances after a
// successful upload so a failed run is retried with the same start.
type AuditExporter struct {
	Trusts    repository.TrustStore
	Transfers repository.TransferStore
	Uploader  ObjectUploader
	Logger    *zap.Logger

	since time.Time
}

func NewAuditExporter(trusts repository.TrustStore, transfers repository.TransferStore, uploader ObjectUploader, since time.Time, logger *zap.Logger) *AuditExporter {
	return &AuditExporter{
		Trusts:    trusts,
		Transfers: transfers,
		Uploader:  uploader,
		Logger:    logger,
		since:     since.UTC(),
	}
}

// RunOnce exports changes since the last successful run. It returns the object
// key, or "" when there was nothing to export.
func (e *AuditExporter) RunOnce(ctx context.Context, now time.Time) (string, error) {
	now = now.UTC()
	rels, err := e.Trusts.GetChangedSince(ctx, e.since)
	if err != nil {
		return "", fmt.Errorf("failed to load trust changes: %w", err)
	}
	transfers, err := e.Transfers.GetByFilter(ctx, repository.TransferFilter{UpdatedSince: e.since})
	if err != nil {
		return "", fmt.Errorf("failed to load transfer changes: %w", err)
	}
	if len(rels) == 0 && len(transfers) == 0 {
		e.since = now
		return "", nil
	}

	body, err := json.Marshal(AuditSnapshot{
		From:          e.since,
		To:            now,
		Relationships: rels,
		Transfers:     transfers,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode audit snapshot: %w", err)
	}

	key := fmt.Sprintf("audit/%s/%s.json", now.Format("2006-01-02"), now.Format("20060102T150405Z"))
	location, err := e.Uploader.PutObject(ctx, key, body, "application/json")
	if err != nil {
		return "", err
	}

	e.Logger.Info("[AUDIT] exported snapshot",
		zap.String("location", location),
		zap.Int("relationships", len(rels)),
		zap.Int("transfers", len(transfers)),
	)
	e.since = now
	return key, nil
}

// Run is the scheduler entry point.
func (e *AuditExporter) Run(ctx context.Context) {
	if _, err := e.RunOnce(ctx, time.Now()); err != nil {
		e.Logger.Error("[AUDIT] export failed", zap.Error(err))
	}
}
