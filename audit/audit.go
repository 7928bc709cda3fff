// Package audit appends the immutable per-transition action trail. Entries
// are never updated or individually deleted; they only cascade away with
// their parent agreement.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one recorded lifecycle action.
type Entry struct {
	ID          string
	AgreementID string
	Action      string
	PerformedBy string
	RecordedAt  time.Time
}

// Recorder writes and reads the audit log.
type Recorder struct {
	pool *pgxpool.Pool
}

func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record appends one entry. It satisfies the workflow engine's
// AuditRecorder contract.
func (r *Recorder) Record(ctx context.Context, agreementID, action, performedBy string) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO audit_logs (agreement_id, action, performed_by)
VALUES ($1, $2, $3)`,
		agreementID, action, performedBy)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// ListByAgreement returns the agreement's trail in recording order.
func (r *Recorder) ListByAgreement(ctx context.Context, agreementID string) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, agreement_id, action, performed_by, recorded_at
FROM audit_logs
WHERE agreement_id = $1
ORDER BY recorded_at ASC`, agreementID)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AgreementID, &e.Action, &e.PerformedBy, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
