package httpapi

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"consentra/agreement"
)

type redactedResponse struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	AgreementType string          `json:"agreement_type"`
	Terms         string          `json:"terms"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	Jurisdiction  string          `json:"jurisdiction"`
	RecipientName string          `json:"recipient_name"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

type signRequest struct {
	SignerName string `json:"signer_name"`
	Method     string `json:"signature_method"`
	Payload    string `json:"signature_payload"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleFetchForSigning(w http.ResponseWriter, r *http.Request) {
	red, err := s.agreements.FetchForSigning(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, redactedResponse{
		ID:            red.ID,
		Title:         red.Title,
		AgreementType: red.AgreementType,
		Terms:         red.Terms,
		PaymentAmount: red.PaymentAmount,
		Jurisdiction:  red.Jurisdiction,
		RecipientName: red.RecipientName,
		StartDate:     red.StartDate.Format(dateLayout),
		EndDate:       red.EndDate.Format(dateLayout),
		Status:        string(red.Status),
		CreatedAt:     red.CreatedAt,
	})
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := s.agreements.Sign(r.Context(), chi.URLParam(r, "id"), agreement.SignParams{
		SignerName: req.SignerName,
		Method:     agreement.SignatureMethod(req.Method),
		Payload:    req.Payload,
		OriginIP:   clientIP(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":        a.ID,
		"status":    string(a.Status),
		"signed_at": a.SignedAt,
	})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := s.agreements.Reject(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":          a.ID,
		"status":      string(a.Status),
		"rejected_at": a.RejectedAt,
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
