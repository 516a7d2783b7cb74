package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keywarden/keywarden/internal/metrics"
	"github.com/keywarden/keywarden/internal/model"
)

// DefaultAuditWriteTimeout bounds a single audit insert.
const DefaultAuditWriteTimeout = 5 * time.Second

// AuditService appends and reads the request audit trail.
type AuditService struct {
	store   AuditStore
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAuditService creates an AuditService. m may be nil; a non-positive
// timeout selects DefaultAuditWriteTimeout.
func NewAuditService(st AuditStore, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *AuditService {
	if timeout <= 0 {
		timeout = DefaultAuditWriteTimeout
	}
	return &AuditService{
		store:   st,
		timeout: timeout,
		metrics: m,
		logger:  logger,
	}
}

// Record appends one entry for a completed request. credentialID is nil when
// the request was not authenticated. Failures are logged and counted, never
// returned: a broken audit sink must not fail the request it describes.
//
// The write is detached from ctx's cancellation so a client that hangs up
// after receiving its response still gets audited.
func (a *AuditService) Record(ctx context.Context, credentialID *int64, endpoint, method string, status int, source string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	entry := &model.AuditEntry{
		CredentialID:  credentialID,
		Endpoint:      endpoint,
		Method:        method,
		StatusCode:    status,
		SourceAddress: source,
		Timestamp:     time.Now().UTC(),
	}
	if err := a.store.CreateAuditEntry(ctx, entry); err != nil {
		a.metrics.RecordAuditFailure()
		a.logger.Error("failed to write audit entry",
			"endpoint", endpoint,
			"method", method,
			"status", status,
			"error", err,
		)
		return
	}
	a.metrics.RecordAuditEntry()
}

// List returns audit entries matching f, newest first, along with the total
// number of matches, for an admin caller.
func (a *AuditService) List(ctx context.Context, caller *model.Credential, f model.AuditFilter) ([]model.AuditEntry, int64, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, 0, err
	}
	entries, err := a.store.ListAuditEntries(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	total, err := a.store.CountAuditEntries(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}
	return entries, total, nil
}
