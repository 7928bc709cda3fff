package agreement

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// TestRepository_Integration connects to a real PostgreSQL via DATABASE_URL and
// verifies the conditional-update transitions end to end, including the
// exactly-one-winner race behavior.
func TestRepository_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	if !tableExists(ctx, t, pool, "agreements") || !tableExists(ctx, t, pool, "signatures") {
		t.Skip("database schema missing; apply migrations/ to run integration test")
	}

	var creatorID string
	if err := pool.QueryRow(ctx,
		`INSERT INTO users (email, full_name, password_hash) VALUES ($1, $2, 'x') RETURNING id`,
		fmt.Sprintf("casey+%d@example.com", time.Now().UnixNano()), "Casey Creator").Scan(&creatorID); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		// Agreements, signatures, audit entries, and notifications cascade.
		pool.Exec(ctx2, `DELETE FROM users WHERE id = $1`, creatorID)
	})

	repo := NewRepository(pool)

	params := CreateParams{
		Title:          "Photography Services",
		AgreementType:  "Service Agreement",
		StartDate:      time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Terms:          "The provider will deliver edited photographs.",
		PaymentAmount:  decimal.RequireFromString("1500.50"),
		Jurisdiction:   "California",
		RecipientName:  "Riley Recipient",
		RecipientEmail: "riley@example.com",
	}

	a, err := repo.Insert(ctx, creatorID, params)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if a.Status != StatusDraft {
		t.Fatalf("expected draft got %s", a.Status)
	}
	if !a.PaymentAmount.Equal(params.PaymentAmount) {
		t.Fatalf("expected amount %s got %s", params.PaymentAmount, a.PaymentAmount)
	}

	// Draft edits apply; ownership is enforced.
	title := "Photography Services (Revised)"
	updated, ok, err := repo.UpdateDraft(ctx, a.ID, creatorID, UpdateParams{Title: &title})
	if err != nil || !ok {
		t.Fatalf("update draft: ok=%v err=%v", ok, err)
	}
	if updated.Title != title {
		t.Fatalf("expected updated title, got %q", updated.Title)
	}
	if _, ok, _ := repo.UpdateDraft(ctx, a.ID, "00000000-0000-0000-0000-000000000000", UpdateParams{Title: &title}); ok {
		t.Fatal("update must not apply for a foreign creator")
	}

	// draft -> pending stores the unsigned document.
	sentAt := time.Now().UTC()
	unsigned := []byte("%PDF-unsigned")
	if ok, err := repo.MarkSent(ctx, a.ID, unsigned, sentAt); err != nil || !ok {
		t.Fatalf("mark sent: ok=%v err=%v", ok, err)
	}
	if ok, _ := repo.MarkSent(ctx, a.ID, unsigned, sentAt); ok {
		t.Fatal("second mark sent must lose the status predicate")
	}

	pdf, err := repo.GetPDF(ctx, a.ID, VariantUnsigned)
	if err != nil {
		t.Fatalf("get unsigned pdf: %v", err)
	}
	if string(pdf) != string(unsigned) {
		t.Fatal("unsigned pdf roundtrip mismatch")
	}
	if _, err := repo.GetPDF(ctx, a.ID, VariantSigned); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for absent signed pdf, got %v", err)
	}

	// Concurrent sign and reject: exactly one transition wins.
	signedAt := time.Now().UTC()
	sig := Signature{
		AgreementID: a.ID,
		SignerName:  "Riley Recipient",
		Method:      MethodTyped,
		Payload:     "Riley Recipient",
		OriginIP:    "203.0.113.7",
		SignedAt:    signedAt,
	}

	var (
		wg       sync.WaitGroup
		signOK   bool
		rejectOK bool
		signErr  error
		rejErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		signOK, signErr = repo.SaveSignature(ctx, sig, []byte("%PDF-signed"))
	}()
	go func() {
		defer wg.Done()
		rejectOK, rejErr = repo.MarkRejected(ctx, a.ID, signedAt)
	}()
	wg.Wait()

	if signErr != nil || rejErr != nil {
		t.Fatalf("transition errors: sign=%v reject=%v", signErr, rejErr)
	}
	if signOK == rejectOK {
		t.Fatalf("expected exactly one winner: sign=%v reject=%v", signOK, rejectOK)
	}

	final, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	var sigCount int
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM signatures WHERE agreement_id = $1`, a.ID).Scan(&sigCount); err != nil {
		t.Fatalf("count signatures: %v", err)
	}

	switch final.Status {
	case StatusSigned:
		if !signOK || sigCount != 1 {
			t.Fatalf("signed outcome inconsistent: signOK=%v signatures=%d", signOK, sigCount)
		}
		if _, err := repo.GetPDF(ctx, a.ID, VariantSigned); err != nil {
			t.Fatalf("signed pdf should be stored: %v", err)
		}
	case StatusRejected:
		if !rejectOK || sigCount != 0 {
			t.Fatalf("rejected outcome inconsistent: rejectOK=%v signatures=%d", rejectOK, sigCount)
		}
	default:
		t.Fatalf("unexpected final status %s", final.Status)
	}

	// Deleting the agreement cascades to the signature rows.
	if ok, err := repo.Delete(ctx, a.ID, creatorID); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM signatures WHERE agreement_id = $1`, a.ID).Scan(&sigCount); err != nil {
		t.Fatalf("recount signatures: %v", err)
	}
	if sigCount != 0 {
		t.Fatalf("expected cascade to remove signatures, got %d", sigCount)
	}
	if _, err := repo.GetByID(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, name).Scan(&exists)
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
