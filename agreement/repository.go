package agreement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// agreementColumns deliberately excludes the PDF byte columns; documents can
// run to megabytes and are fetched by GetPDF only when a caller asks.
const agreementColumns = `id, creator_id, title, agreement_type, start_date, end_date, terms,
       payment_amount::text, jurisdiction, recipient_name, recipient_email, status,
       sent_at, signed_at, rejected_at, created_at, updated_at`

// Repository is the pgx-backed record store for agreements and their
// dependent signature rows.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAgreement(row pgx.Row) (Agreement, error) {
	var (
		a         Agreement
		amount    string
		statusRaw string
	)
	err := row.Scan(
		&a.ID, &a.CreatorID, &a.Title, &a.AgreementType, &a.StartDate, &a.EndDate, &a.Terms,
		&amount, &a.Jurisdiction, &a.RecipientName, &a.RecipientEmail, &statusRaw,
		&a.SentAt, &a.SignedAt, &a.RejectedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agreement{}, ErrNotFound
		}
		return Agreement{}, fmt.Errorf("agreement: scan: %w", err)
	}
	a.Status = Status(statusRaw)
	a.PaymentAmount, err = decimal.NewFromString(amount)
	if err != nil {
		return Agreement{}, fmt.Errorf("agreement: parse payment amount %q: %w", amount, err)
	}
	return a, nil
}

// Insert creates a new draft owned by the creator.
func (r *Repository) Insert(ctx context.Context, creatorID string, p CreateParams) (Agreement, error) {
	const q = `
INSERT INTO agreements (creator_id, title, agreement_type, start_date, end_date, terms,
                        payment_amount, jurisdiction, recipient_name, recipient_email, status)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, 'draft')
RETURNING ` + agreementColumns

	row := r.pool.QueryRow(ctx, q,
		creatorID, p.Title, p.AgreementType, p.StartDate, p.EndDate, p.Terms,
		p.PaymentAmount.String(), p.Jurisdiction, p.RecipientName, p.RecipientEmail,
	)
	a, err := scanAgreement(row)
	if err != nil {
		return Agreement{}, fmt.Errorf("agreement: insert: %w", err)
	}
	return a, nil
}

// GetByID loads an agreement regardless of ownership. Used by the
// id-scoped signing endpoints.
func (r *Repository) GetByID(ctx context.Context, id string) (Agreement, error) {
	return scanAgreement(r.pool.QueryRow(ctx,
		`SELECT `+agreementColumns+` FROM agreements WHERE id = $1`, id))
}

// GetOwned loads an agreement only when the creator owns it.
func (r *Repository) GetOwned(ctx context.Context, id, creatorID string) (Agreement, error) {
	return scanAgreement(r.pool.QueryRow(ctx,
		`SELECT `+agreementColumns+` FROM agreements WHERE id = $1 AND creator_id = $2`, id, creatorID))
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]Agreement, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("agreement: list: %w", err)
	}
	defer rows.Close()

	items := []Agreement{}
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *Repository) ListByCreator(ctx context.Context, creatorID string) ([]Agreement, error) {
	return r.list(ctx,
		`SELECT `+agreementColumns+` FROM agreements WHERE creator_id = $1 ORDER BY created_at DESC`,
		creatorID)
}

// ListSignedByCreator returns only the creator's signed documents: the
// recipient gets their copy by email, never through this listing.
func (r *Repository) ListSignedByCreator(ctx context.Context, creatorID string) ([]Agreement, error) {
	return r.list(ctx,
		`SELECT `+agreementColumns+` FROM agreements
		 WHERE creator_id = $1 AND status = 'signed' ORDER BY signed_at DESC`,
		creatorID)
}

// UpdateDraft applies field edits conditionally on the row still being a
// draft owned by the creator. It reports false when the condition no longer
// holds.
func (r *Repository) UpdateDraft(ctx context.Context, id, creatorID string, p UpdateParams) (Agreement, bool, error) {
	var amount *string
	if p.PaymentAmount != nil {
		s := p.PaymentAmount.String()
		amount = &s
	}

	const q = `
UPDATE agreements SET
    title           = COALESCE($3::text, title),
    agreement_type  = COALESCE($4::text, agreement_type),
    start_date      = COALESCE($5::date, start_date),
    end_date        = COALESCE($6::date, end_date),
    terms           = COALESCE($7::text, terms),
    payment_amount  = COALESCE($8::numeric, payment_amount),
    jurisdiction    = COALESCE($9::text, jurisdiction),
    recipient_name  = COALESCE($10::text, recipient_name),
    recipient_email = COALESCE($11::text, recipient_email),
    updated_at      = now()
WHERE id = $1 AND creator_id = $2 AND status = 'draft'
RETURNING ` + agreementColumns

	a, err := scanAgreement(r.pool.QueryRow(ctx, q,
		id, creatorID,
		p.Title, p.AgreementType, p.StartDate, p.EndDate, p.Terms,
		amount, p.Jurisdiction, p.RecipientName, p.RecipientEmail,
	))
	if errors.Is(err, ErrNotFound) {
		return Agreement{}, false, nil
	}
	if err != nil {
		return Agreement{}, false, fmt.Errorf("agreement: update draft: %w", err)
	}
	return a, true, nil
}

// Delete removes the agreement. Signatures, audit entries, and
// notifications cascade through their foreign keys.
func (r *Repository) Delete(ctx context.Context, id, creatorID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM agreements WHERE id = $1 AND creator_id = $2`, id, creatorID)
	if err != nil {
		return false, fmt.Errorf("agreement: delete: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSent commits the draft -> pending transition together with the
// rendered unsigned PDF. The status predicate makes concurrent senders
// race safely: exactly one update affects a row.
func (r *Repository) MarkSent(ctx context.Context, id string, pdf []byte, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE agreements
SET status = 'pending', sent_at = $2, unsigned_pdf = $3, updated_at = $2
WHERE id = $1 AND status = 'draft'`,
		id, at, pdf)
	if err != nil {
		return false, fmt.Errorf("agreement: mark sent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SaveSignature commits the pending -> signed transition, the signed PDF,
// and the signature record in one transaction. The signature row exists only
// if the conditional status update won.
func (r *Repository) SaveSignature(ctx context.Context, sig Signature, pdf []byte) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("agreement: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
UPDATE agreements
SET status = 'signed', signed_at = $2, signed_pdf = $3, updated_at = $2
WHERE id = $1 AND status = 'pending'`,
		sig.AgreementID, sig.SignedAt, pdf)
	if err != nil {
		return false, fmt.Errorf("agreement: mark signed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO signatures (agreement_id, signer_name, signature_method, signature_payload, origin_ip, signed_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		sig.AgreementID, sig.SignerName, string(sig.Method), sig.Payload, sig.OriginIP, sig.SignedAt,
	); err != nil {
		return false, fmt.Errorf("agreement: insert signature: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("agreement: commit signature: %w", err)
	}
	return true, nil
}

// MarkRejected commits the pending -> rejected transition. No PDF changes.
func (r *Repository) MarkRejected(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE agreements
SET status = 'rejected', rejected_at = $2, updated_at = $2
WHERE id = $1 AND status = 'pending'`,
		id, at)
	if err != nil {
		return false, fmt.Errorf("agreement: mark rejected: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetPDF returns the stored bytes for the requested variant, or ErrNotFound
// when the variant has not been produced for this agreement.
func (r *Repository) GetPDF(ctx context.Context, id string, variant PDFVariant) ([]byte, error) {
	column := "unsigned_pdf"
	if variant == VariantSigned {
		column = "signed_pdf"
	}

	var pdf []byte
	err := r.pool.QueryRow(ctx,
		`SELECT `+column+` FROM agreements WHERE id = $1`, id).Scan(&pdf)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("agreement: fetch pdf: %w", err)
	}
	if len(pdf) == 0 {
		return nil, ErrNotFound
	}
	return pdf, nil
}

// GetCreator resolves the identity block rendered into documents and emails.
func (r *Repository) GetCreator(ctx context.Context, userID string) (Creator, error) {
	var c Creator
	err := r.pool.QueryRow(ctx,
		`SELECT id, full_name, email FROM users WHERE id = $1`, userID).
		Scan(&c.ID, &c.Name, &c.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return Creator{}, fmt.Errorf("agreement: creator %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return Creator{}, fmt.Errorf("agreement: fetch creator: %w", err)
	}
	return c, nil
}
