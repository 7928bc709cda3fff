package agreement

import (
	"context"
	"errors"
	"fmt"

	"consentra/document"
	"consentra/email"
)

const (
	ActionSent     = "sent"
	ActionSigned   = "signed"
	ActionRejected = "rejected"
)

// Send performs the draft -> pending transition: render the unsigned PDF,
// commit it with the new status, then dispatch the review email, audit
// entry, and creator notification.
//
// Email is the one side effect whose failure is surfaced: the recipient has
// no other way to discover the agreement, so an undelivered review email is
// reported as ErrEmailUndeliverable even though the transition itself has
// already been committed.
func (s *Service) Send(ctx context.Context, id, creatorID string) (Agreement, error) {
	a, err := s.store.GetOwned(ctx, id, creatorID)
	if err != nil {
		return Agreement{}, err
	}
	if a.Status != StatusDraft {
		return Agreement{}, &InvalidStateError{Current: a.Status, Operation: "send"}
	}

	creator, err := s.store.GetCreator(ctx, creatorID)
	if err != nil {
		return Agreement{}, err
	}

	pdf, err := s.render(ctx, func() ([]byte, error) {
		return s.renderer.Unsigned(snapshotOf(a), document.Party{Name: creator.Name, Email: creator.Email})
	})
	if err != nil {
		return Agreement{}, &RenderError{Err: err}
	}

	sentAt := s.now().UTC()
	ok, err := s.store.MarkSent(ctx, id, pdf, sentAt)
	if err != nil {
		return Agreement{}, &PersistenceError{Op: "send", Err: err}
	}
	if !ok {
		return Agreement{}, s.concurrentLoser(ctx, id, "send")
	}
	a.Status = StatusPending
	a.SentAt = &sentAt
	a.UpdatedAt = sentAt
	a.UnsignedPDF = pdf

	results := s.dispatchStages(ctx, a.ID, []stage{
		{name: "email", run: func(ctx context.Context) error {
			link := email.SigningLink(s.signingBase, a.ID)
			msg := email.Message{
				To:      a.RecipientEmail,
				Subject: fmt.Sprintf("Agreement for Review: %s", a.AgreementType),
				HTML:    email.ReviewRequestBody(a.RecipientName, creator.Name, a.Title, link),
				Attachments: []email.Attachment{
					{Filename: fmt.Sprintf("Agreement_%s.pdf", a.ID), Content: pdf, ContentType: "application/pdf"},
				},
			}
			return s.send(ctx, msg)
		}},
		{name: "audit", run: func(ctx context.Context) error {
			return s.audit.Record(ctx, a.ID, ActionSent, creator.Email)
		}},
		{name: "notify", run: func(ctx context.Context) error {
			return s.notifier.Notify(ctx, a.CreatorID, a.ID, ActionSent, "Agreement Sent",
				fmt.Sprintf("Your agreement %q was sent to %s.", a.Title, a.RecipientName))
		}},
	})
	if results["email"] != nil {
		return a, ErrEmailUndeliverable
	}
	return a, nil
}

// Sign performs the pending -> signed transition: derive the hash-bearing
// signed PDF, commit it with the signature record, then dispatch the audit
// entry, both signed-copy emails, and the creator's notifications. All
// post-commit failures are logged, never surfaced: the recipient has done
// their part and the stored state is the truth.
func (s *Service) Sign(ctx context.Context, id string, p SignParams) (Agreement, error) {
	if err := validateSign(p); err != nil {
		return Agreement{}, err
	}
	if p.OriginIP == "" {
		p.OriginIP = "unknown"
	}

	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Agreement{}, err
	}
	if a.Status != StatusPending {
		return Agreement{}, &InvalidStateError{Current: a.Status, Operation: "sign"}
	}

	creator, err := s.store.GetCreator(ctx, a.CreatorID)
	if err != nil {
		return Agreement{}, err
	}

	signedAt := s.now().UTC()
	pdf, err := s.render(ctx, func() ([]byte, error) {
		return s.renderer.Signed(snapshotOf(a),
			document.Party{Name: creator.Name, Email: creator.Email},
			document.Signature{
				SignerName: p.SignerName,
				Method:     string(p.Method),
				Payload:    p.Payload,
				OriginIP:   p.OriginIP,
				SignedAt:   signedAt,
			})
	})
	if err != nil {
		return Agreement{}, &RenderError{Err: err}
	}

	sig := Signature{
		AgreementID: a.ID,
		SignerName:  p.SignerName,
		Method:      p.Method,
		Payload:     p.Payload,
		OriginIP:    p.OriginIP,
		SignedAt:    signedAt,
	}
	ok, err := s.store.SaveSignature(ctx, sig, pdf)
	if err != nil {
		return Agreement{}, &PersistenceError{Op: "sign", Err: err}
	}
	if !ok {
		return Agreement{}, s.concurrentLoser(ctx, id, "sign")
	}
	a.Status = StatusSigned
	a.SignedAt = &signedAt
	a.UpdatedAt = signedAt
	a.SignedPDF = pdf

	attachment := email.Attachment{
		Filename:    fmt.Sprintf("agreement_%s_signed.pdf", a.ID),
		Content:     pdf,
		ContentType: "application/pdf",
	}
	subject := fmt.Sprintf("Agreement Signed: %s", a.AgreementType)

	s.dispatchStages(ctx, a.ID, []stage{
		{name: "audit", run: func(ctx context.Context) error {
			return s.audit.Record(ctx, a.ID, ActionSigned, p.SignerName)
		}},
		{name: "email-creator", run: func(ctx context.Context) error {
			return s.send(ctx, email.Message{
				To:          creator.Email,
				Subject:     subject,
				HTML:        email.SignedCopyBody(creator.Name, a.Title),
				Attachments: []email.Attachment{attachment},
			})
		}},
		{name: "email-recipient", run: func(ctx context.Context) error {
			return s.send(ctx, email.Message{
				To:          a.RecipientEmail,
				Subject:     subject,
				HTML:        email.SignedCopyBody(a.RecipientName, a.Title),
				Attachments: []email.Attachment{attachment},
			})
		}},
		{name: "notify-signed", run: func(ctx context.Context) error {
			return s.notifier.Notify(ctx, a.CreatorID, a.ID, ActionSigned, "Agreement Signed",
				fmt.Sprintf("Your agreement %q has been signed by %s.", a.Title, a.RecipientName))
		}},
		{name: "notify-pdf-ready", run: func(ctx context.Context) error {
			return s.notifier.Notify(ctx, a.CreatorID, a.ID, "pdf_ready", "Signed Document Ready",
				fmt.Sprintf("The signed PDF for %q is now available in Documents.", a.Title))
		}},
	})

	return a, nil
}

func validateSign(p SignParams) error {
	switch {
	case p.SignerName == "":
		return &ValidationError{Field: "signer_name", Reason: "required"}
	case !p.Method.Valid():
		return &ValidationError{Field: "signature_method", Reason: `must be "typed", "drawn", or "uploaded"`}
	case p.Payload == "":
		return &ValidationError{Field: "signature_payload", Reason: "required"}
	}
	return nil
}

// Reject performs the pending -> rejected transition. No document is
// regenerated; side-effect failures are logged only.
func (s *Service) Reject(ctx context.Context, id, reason string) (Agreement, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Agreement{}, err
	}
	if a.Status != StatusPending {
		return Agreement{}, &InvalidStateError{Current: a.Status, Operation: "reject"}
	}

	creator, err := s.store.GetCreator(ctx, a.CreatorID)
	if err != nil {
		return Agreement{}, err
	}

	rejectedAt := s.now().UTC()
	ok, err := s.store.MarkRejected(ctx, id, rejectedAt)
	if err != nil {
		return Agreement{}, &PersistenceError{Op: "reject", Err: err}
	}
	if !ok {
		return Agreement{}, s.concurrentLoser(ctx, id, "reject")
	}
	a.Status = StatusRejected
	a.RejectedAt = &rejectedAt
	a.UpdatedAt = rejectedAt

	message := fmt.Sprintf("Your agreement %q was rejected by %s.", a.Title, a.RecipientName)
	if reason != "" {
		message = fmt.Sprintf("%s Reason: %s", message, reason)
	}

	s.dispatchStages(ctx, a.ID, []stage{
		{name: "audit", run: func(ctx context.Context) error {
			return s.audit.Record(ctx, a.ID, ActionRejected, a.RecipientName)
		}},
		{name: "email", run: func(ctx context.Context) error {
			return s.send(ctx, email.Message{
				To:      creator.Email,
				Subject: fmt.Sprintf("Agreement Rejected: %s", a.AgreementType),
				HTML:    email.RejectionNoticeBody(creator.Name, a.RecipientName, a.Title),
			})
		}},
		{name: "notify", run: func(ctx context.Context) error {
			return s.notifier.Notify(ctx, a.CreatorID, a.ID, ActionRejected, "Agreement Rejected", message)
		}},
	})

	return a, nil
}

// render runs one renderer call under the configured timeout. Rendering is a
// pure in-memory transformation with no cancellation hook of its own, so an
// overrunning call is abandoned and the transition aborted before anything
// has been persisted.
func (s *Service) render(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.renderTimeout)
	defer cancel()

	type result struct {
		pdf []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		pdf, err := fn()
		done <- result{pdf, err}
	}()

	select {
	case res := <-done:
		return res.pdf, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// concurrentLoser builds the InvalidStateError for a conditional update that
// affected no rows. The current status is re-read for an accurate report;
// if even that fails, the row was deleted out from under us.
func (s *Service) concurrentLoser(ctx context.Context, id, op string) error {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return &InvalidStateError{Current: "unknown", Operation: op}
	}
	return &InvalidStateError{Current: current.Status, Operation: op}
}
