package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"consentra/agreement"
)

const dateLayout = "2006-01-02"

type createAgreementRequest struct {
	Title          string          `json:"title"`
	AgreementType  string          `json:"agreement_type"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	Terms          string          `json:"terms"`
	PaymentAmount  decimal.Decimal `json:"payment_amount"`
	Jurisdiction   string          `json:"jurisdiction"`
	RecipientName  string          `json:"recipient_name"`
	RecipientEmail string          `json:"recipient_email"`
}

type updateAgreementRequest struct {
	Title          *string          `json:"title"`
	AgreementType  *string          `json:"agreement_type"`
	StartDate      *string          `json:"start_date"`
	EndDate        *string          `json:"end_date"`
	Terms          *string          `json:"terms"`
	PaymentAmount  *decimal.Decimal `json:"payment_amount"`
	Jurisdiction   *string          `json:"jurisdiction"`
	RecipientName  *string          `json:"recipient_name"`
	RecipientEmail *string          `json:"recipient_email"`
}

type agreementResponse struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	AgreementType  string          `json:"agreement_type"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	Terms          string          `json:"terms"`
	PaymentAmount  decimal.Decimal `json:"payment_amount"`
	Jurisdiction   string          `json:"jurisdiction"`
	RecipientName  string          `json:"recipient_name"`
	RecipientEmail string          `json:"recipient_email"`
	Status         string          `json:"status"`
	SentAt         *time.Time      `json:"sent_at"`
	SignedAt       *time.Time      `json:"signed_at"`
	RejectedAt     *time.Time      `json:"rejected_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toAgreementResponse(a agreement.Agreement) agreementResponse {
	return agreementResponse{
		ID:             a.ID,
		Title:          a.Title,
		AgreementType:  a.AgreementType,
		StartDate:      a.StartDate.Format(dateLayout),
		EndDate:        a.EndDate.Format(dateLayout),
		Terms:          a.Terms,
		PaymentAmount:  a.PaymentAmount,
		Jurisdiction:   a.Jurisdiction,
		RecipientName:  a.RecipientName,
		RecipientEmail: a.RecipientEmail,
		Status:         string(a.Status),
		SentAt:         a.SentAt,
		SignedAt:       a.SignedAt,
		RejectedAt:     a.RejectedAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be formatted %s", field, dateLayout)
	}
	return t, nil
}

func (s *Server) handleCreateAgreement(w http.ResponseWriter, r *http.Request) {
	var req createAgreementRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := agreement.CreateParams{
		Title:          req.Title,
		AgreementType:  req.AgreementType,
		Terms:          req.Terms,
		PaymentAmount:  req.PaymentAmount,
		Jurisdiction:   req.Jurisdiction,
		RecipientName:  req.RecipientName,
		RecipientEmail: req.RecipientEmail,
	}

	var err error
	if req.StartDate != "" {
		if params.StartDate, err = parseDate("start_date", req.StartDate); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.EndDate != "" {
		if params.EndDate, err = parseDate("end_date", req.EndDate); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	a, err := s.agreements.Create(r.Context(), userIDFrom(r.Context()), params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAgreementResponse(a))
}

func (s *Server) handleListAgreements(w http.ResponseWriter, r *http.Request) {
	items, err := s.agreements.List(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgreementResponses(items))
}

func (s *Server) handleListSigned(w http.ResponseWriter, r *http.Request) {
	items, err := s.agreements.ListSigned(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgreementResponses(items))
}

func toAgreementResponses(items []agreement.Agreement) []agreementResponse {
	out := make([]agreementResponse, 0, len(items))
	for _, a := range items {
		out = append(out, toAgreementResponse(a))
	}
	return out
}

func (s *Server) handleGetAgreement(w http.ResponseWriter, r *http.Request) {
	a, err := s.agreements.Get(r.Context(), chi.URLParam(r, "id"), userIDFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgreementResponse(a))
}

func (s *Server) handleUpdateAgreement(w http.ResponseWriter, r *http.Request) {
	var req updateAgreementRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := agreement.UpdateParams{
		Title:          req.Title,
		AgreementType:  req.AgreementType,
		Terms:          req.Terms,
		PaymentAmount:  req.PaymentAmount,
		Jurisdiction:   req.Jurisdiction,
		RecipientName:  req.RecipientName,
		RecipientEmail: req.RecipientEmail,
	}

	if req.StartDate != nil {
		t, err := parseDate("start_date", *req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		params.StartDate = &t
	}
	if req.EndDate != nil {
		t, err := parseDate("end_date", *req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		params.EndDate = &t
	}

	a, err := s.agreements.Update(r.Context(), chi.URLParam(r, "id"), userIDFrom(r.Context()), params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgreementResponse(a))
}

func (s *Server) handleDeleteAgreement(w http.ResponseWriter, r *http.Request) {
	if err := s.agreements.Delete(r.Context(), chi.URLParam(r, "id"), userIDFrom(r.Context())); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendAgreement(w http.ResponseWriter, r *http.Request) {
	a, err := s.agreements.Send(r.Context(), chi.URLParam(r, "id"), userIDFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgreementResponse(a))
}

func (s *Server) handleAgreementPDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	variant := agreement.PDFVariant(chi.URLParam(r, "variant"))

	// Ownership check before fetching document bytes.
	if _, err := s.agreements.Get(r.Context(), id, userIDFrom(r.Context())); err != nil {
		writeDomainError(w, err)
		return
	}

	pdf, err := s.agreements.FetchPDF(r.Context(), id, variant)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="agreement_%s_%s.pdf"`, id, variant))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.agreements.Get(r.Context(), id, userIDFrom(r.Context())); err != nil {
		writeDomainError(w, err)
		return
	}

	entries, err := s.audit.ListByAgreement(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type entryResponse struct {
		ID          string    `json:"id"`
		AgreementID string    `json:"agreement_id"`
		Action      string    `json:"action"`
		PerformedBy string    `json:"performed_by"`
		RecordedAt  time.Time `json:"recorded_at"`
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:          e.ID,
			AgreementID: e.AgreementID,
			Action:      e.Action,
			PerformedBy: e.PerformedBy,
			RecordedAt:  e.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
