package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"consentra/notification"
)

type notificationResponse struct {
	ID          string    `json:"id"`
	AgreementID *string   `json:"agreement_id"`
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

func toNotificationResponse(n notification.Notification) notificationResponse {
	return notificationResponse{
		ID:          n.ID,
		AgreementID: n.AgreementID,
		Kind:        n.Kind,
		Title:       n.Title,
		Message:     n.Message,
		Read:        n.Read,
		CreatedAt:   n.CreatedAt,
	}
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	items, err := s.notifications.List(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]notificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, toNotificationResponse(n))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.notifications.UnreadCount(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.notifications.MarkRead(r.Context(), chi.URLParam(r, "id"), userIDFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNotificationResponse(n))
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := s.notifications.MarkAllRead(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}
