package agreement

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"consentra/document"
	"consentra/email"
)

// Store is the record-store surface the workflow engine needs. Implemented
// by Repository; faked in tests.
type Store interface {
	Insert(ctx context.Context, creatorID string, p CreateParams) (Agreement, error)
	GetByID(ctx context.Context, id string) (Agreement, error)
	GetOwned(ctx context.Context, id, creatorID string) (Agreement, error)
	ListByCreator(ctx context.Context, creatorID string) ([]Agreement, error)
	ListSignedByCreator(ctx context.Context, creatorID string) ([]Agreement, error)
	UpdateDraft(ctx context.Context, id, creatorID string, p UpdateParams) (Agreement, bool, error)
	Delete(ctx context.Context, id, creatorID string) (bool, error)
	MarkSent(ctx context.Context, id string, pdf []byte, at time.Time) (bool, error)
	SaveSignature(ctx context.Context, sig Signature, pdf []byte) (bool, error)
	MarkRejected(ctx context.Context, id string, at time.Time) (bool, error)
	GetPDF(ctx context.Context, id string, variant PDFVariant) ([]byte, error)
	GetCreator(ctx context.Context, userID string) (Creator, error)
}

// Renderer produces the document snapshots. Implemented by
// document.Renderer.
type Renderer interface {
	Unsigned(snap document.Snapshot, creator document.Party) ([]byte, error)
	Signed(snap document.Snapshot, creator document.Party, sig document.Signature) ([]byte, error)
}

// AuditRecorder appends one immutable action record per transition.
type AuditRecorder interface {
	Record(ctx context.Context, agreementID, action, performedBy string) error
}

// Notifier records an in-app notification row for a user.
type Notifier interface {
	Notify(ctx context.Context, userID, agreementID, kind, title, message string) error
}

// Service is the workflow engine: it guards status transitions, renders
// documents before persisting, and orchestrates best-effort side effects
// after the transition has been committed.
type Service struct {
	store        Store
	renderer     Renderer
	audit        AuditRecorder
	notifier     Notifier
	mail          email.Dispatcher
	logger        *slog.Logger
	signingBase   string
	emailTimeout  time.Duration
	renderTimeout time.Duration
	now           func() time.Time
}

func NewService(store Store, renderer Renderer, audit AuditRecorder, notifier Notifier, mail email.Dispatcher, logger *slog.Logger, signingBaseURL string) *Service {
	return &Service{
		store:         store,
		renderer:      renderer,
		audit:         audit,
		notifier:      notifier,
		mail:          mail,
		logger:        logger,
		signingBase:   signingBaseURL,
		emailTimeout:  30 * time.Second,
		renderTimeout: 15 * time.Second,
		now:           time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithEmailTimeout(d time.Duration) *Service {
	s.emailTimeout = d
	return s
}

func (s *Service) WithRenderTimeout(d time.Duration) *Service {
	s.renderTimeout = d
	return s
}

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Create validates and stores a new draft.
func (s *Service) Create(ctx context.Context, creatorID string, p CreateParams) (Agreement, error) {
	if err := validateCreate(p); err != nil {
		return Agreement{}, err
	}
	a, err := s.store.Insert(ctx, creatorID, p)
	if err != nil {
		return Agreement{}, &PersistenceError{Op: "create", Err: err}
	}
	return a, nil
}

func validateCreate(p CreateParams) error {
	switch {
	case p.Title == "":
		return &ValidationError{Field: "title", Reason: "required"}
	case p.AgreementType == "":
		return &ValidationError{Field: "agreement_type", Reason: "required"}
	case p.Terms == "":
		return &ValidationError{Field: "terms", Reason: "required"}
	case p.Jurisdiction == "":
		return &ValidationError{Field: "jurisdiction", Reason: "required"}
	case p.RecipientName == "":
		return &ValidationError{Field: "recipient_name", Reason: "required"}
	case p.StartDate.IsZero() || p.EndDate.IsZero():
		return &ValidationError{Field: "dates", Reason: "start and end dates are required"}
	case !p.EndDate.After(p.StartDate):
		return &ValidationError{Field: "end_date", Reason: "must be after start date"}
	case p.PaymentAmount.LessThanOrEqual(decimal.Zero):
		return &ValidationError{Field: "payment_amount", Reason: "must be positive"}
	case !emailShape.MatchString(p.RecipientEmail):
		return &ValidationError{Field: "recipient_email", Reason: "not a valid email address"}
	}
	return nil
}

// Update edits draft fields. Any status other than draft refuses the edit.
func (s *Service) Update(ctx context.Context, id, creatorID string, p UpdateParams) (Agreement, error) {
	current, err := s.store.GetOwned(ctx, id, creatorID)
	if err != nil {
		return Agreement{}, err
	}
	if current.Status != StatusDraft {
		return Agreement{}, &InvalidStateError{Current: current.Status, Operation: "update"}
	}
	if err := validateUpdate(current, p); err != nil {
		return Agreement{}, err
	}

	updated, ok, err := s.store.UpdateDraft(ctx, id, creatorID, p)
	if err != nil {
		return Agreement{}, &PersistenceError{Op: "update", Err: err}
	}
	if !ok {
		// Lost a race with a concurrent Send.
		return Agreement{}, &InvalidStateError{Current: StatusPending, Operation: "update"}
	}
	return updated, nil
}

func validateUpdate(current Agreement, p UpdateParams) error {
	start, end := current.StartDate, current.EndDate
	if p.StartDate != nil {
		start = *p.StartDate
	}
	if p.EndDate != nil {
		end = *p.EndDate
	}
	if !end.After(start) {
		return &ValidationError{Field: "end_date", Reason: "must be after start date"}
	}
	if p.PaymentAmount != nil && p.PaymentAmount.LessThanOrEqual(decimal.Zero) {
		return &ValidationError{Field: "payment_amount", Reason: "must be positive"}
	}
	if p.RecipientEmail != nil && !emailShape.MatchString(*p.RecipientEmail) {
		return &ValidationError{Field: "recipient_email", Reason: "not a valid email address"}
	}
	return nil
}

// Get returns a creator-owned agreement.
func (s *Service) Get(ctx context.Context, id, creatorID string) (Agreement, error) {
	return s.store.GetOwned(ctx, id, creatorID)
}

// List returns all agreements owned by the creator, newest first.
func (s *Service) List(ctx context.Context, creatorID string) ([]Agreement, error) {
	return s.store.ListByCreator(ctx, creatorID)
}

// ListSigned returns the creator's signed documents.
func (s *Service) ListSigned(ctx context.Context, creatorID string) ([]Agreement, error) {
	return s.store.ListSignedByCreator(ctx, creatorID)
}

// Delete removes an agreement and cascades to its signatures, audit
// entries, and notifications.
func (s *Service) Delete(ctx context.Context, id, creatorID string) error {
	ok, err := s.store.Delete(ctx, id, creatorID)
	if err != nil {
		return &PersistenceError{Op: "delete", Err: err}
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// FetchForSigning returns the redacted projection for the unauthenticated
// signing page. Terminal agreements are still returned so the page can show
// their outcome; only a missing row is an error.
func (s *Service) FetchForSigning(ctx context.Context, id string) (Redacted, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Redacted{}, err
	}
	return a.Redact(), nil
}

// FetchPDF returns the stored bytes of the requested document variant.
func (s *Service) FetchPDF(ctx context.Context, id string, variant PDFVariant) ([]byte, error) {
	if !variant.Valid() {
		return nil, &ValidationError{Field: "variant", Reason: `must be "unsigned" or "signed"`}
	}
	return s.store.GetPDF(ctx, id, variant)
}

func snapshotOf(a Agreement) document.Snapshot {
	return document.Snapshot{
		ID:             a.ID,
		Title:          a.Title,
		AgreementType:  a.AgreementType,
		Terms:          a.Terms,
		PaymentAmount:  a.PaymentAmount,
		Jurisdiction:   a.Jurisdiction,
		RecipientName:  a.RecipientName,
		RecipientEmail: a.RecipientEmail,
		StartDate:      a.StartDate,
		EndDate:        a.EndDate,
		CreatedAt:      a.CreatedAt,
	}
}
