package application

import "context"

// AuditEntry describes one mutation attempt for the append-only audit log.
type AuditEntry struct {
	Method   string
	Endpoint string
	Outcome  string
	Detail   string
}

// AuditRecorder appends audit entries. The booking flow never reads them
// back and never lets a failed append fail the primary operation.
type AuditRecorder interface {
	Append(ctx context.Context, entry AuditEntry) error
}
