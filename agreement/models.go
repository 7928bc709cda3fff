package agreement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Agreement mirrors the agreements table. The stored status and PDF bytes
// are the single source of truth for the lifecycle; side effects never feed
// back into them.
type Agreement struct {
	ID             string
	CreatorID      string
	Title          string
	AgreementType  string
	StartDate      time.Time
	EndDate        time.Time
	Terms          string
	PaymentAmount  decimal.Decimal
	Jurisdiction   string
	RecipientName  string
	RecipientEmail string
	Status         Status
	UnsignedPDF    []byte
	SignedPDF      []byte
	SentAt         *time.Time
	SignedAt       *time.Time
	RejectedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SignatureMethod is how the recipient captured their signature.
type SignatureMethod string

const (
	MethodTyped    SignatureMethod = "typed"
	MethodDrawn    SignatureMethod = "drawn"
	MethodUploaded SignatureMethod = "uploaded"
)

func (m SignatureMethod) Valid() bool {
	switch m {
	case MethodTyped, MethodDrawn, MethodUploaded:
		return true
	default:
		return false
	}
}

// Signature is the immutable record created when an agreement is signed.
type Signature struct {
	ID          string
	AgreementID string
	SignerName  string
	Method      SignatureMethod
	Payload     string
	OriginIP    string
	SignedAt    time.Time
}

// CreateParams contains the caller-supplied fields for a new draft.
type CreateParams struct {
	Title          string
	AgreementType  string
	StartDate      time.Time
	EndDate        time.Time
	Terms          string
	PaymentAmount  decimal.Decimal
	Jurisdiction   string
	RecipientName  string
	RecipientEmail string
}

// UpdateParams carries optional draft field edits; nil means keep current.
type UpdateParams struct {
	Title          *string
	AgreementType  *string
	StartDate      *time.Time
	EndDate        *time.Time
	Terms          *string
	PaymentAmount  *decimal.Decimal
	Jurisdiction   *string
	RecipientName  *string
	RecipientEmail *string
}

// SignParams is the recipient's signing submission.
type SignParams struct {
	SignerName string
	Method     SignatureMethod
	Payload    string
	OriginIP   string
}

// Redacted is the projection returned to the unauthenticated signing page.
// It excludes the creator's identity and the raw PDF bytes.
type Redacted struct {
	ID            string
	Title         string
	AgreementType string
	Terms         string
	PaymentAmount decimal.Decimal
	Jurisdiction  string
	RecipientName string
	StartDate     time.Time
	EndDate       time.Time
	Status        Status
	CreatedAt     time.Time
}

// Redact strips creator identity and document bytes from an agreement.
func (a Agreement) Redact() Redacted {
	return Redacted{
		ID:            a.ID,
		Title:         a.Title,
		AgreementType: a.AgreementType,
		Terms:         a.Terms,
		PaymentAmount: a.PaymentAmount,
		Jurisdiction:  a.Jurisdiction,
		RecipientName: a.RecipientName,
		StartDate:     a.StartDate,
		EndDate:       a.EndDate,
		Status:        a.Status,
		CreatedAt:     a.CreatedAt,
	}
}

// PDFVariant selects which stored document snapshot to fetch.
type PDFVariant string

const (
	VariantUnsigned PDFVariant = "unsigned"
	VariantSigned   PDFVariant = "signed"
)

func (v PDFVariant) Valid() bool {
	return v == VariantUnsigned || v == VariantSigned
}

// Creator is the identity block rendered into documents and emails.
type Creator struct {
	ID    string
	Name  string
	Email string
}
