package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// AppendAudit records one audit entry. Callers treat the write as
// fire-and-forget; the returned error is for their logs only.
func (s *Store) AppendAudit(ctx context.Context, entry persistence.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (method, endpoint, outcome, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.Method,
		entry.Endpoint,
		entry.Outcome,
		entry.Detail,
		entry.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append audit entry: %w", err)
	}
	return nil
}
