package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"consentra/agreement"
	"consentra/audit"
	"consentra/auth"
	"consentra/notification"
)

// Server bundles the domain services behind the HTTP surface.
type Server struct {
	auth          *auth.Service
	agreements    *agreement.Service
	notifications *notification.Service
	audit         *audit.Recorder
	logger        *slog.Logger
}

func NewServer(authSvc *auth.Service, agreements *agreement.Service, notifications *notification.Service, auditRec *audit.Recorder, logger *slog.Logger) *Server {
	return &Server{
		auth:          authSvc,
		agreements:    agreements,
		notifications: notifications,
		audit:         auditRec,
		logger:        logger,
	}
}

// Router assembles all routes. Creator-scoped routes sit behind the JWT
// middleware; the signing routes are unauthenticated and id-scoped.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", s.handleRegister)
			ar.Post("/login", s.handleLogin)
			ar.With(s.requireAuth).Get("/me", s.handleMe)
		})

		api.Route("/agreements", func(ag chi.Router) {
			ag.Use(s.requireAuth)
			ag.Get("/", s.handleListAgreements)
			ag.Post("/", s.handleCreateAgreement)
			ag.Get("/signed", s.handleListSigned)
			ag.Route("/{id}", func(one chi.Router) {
				one.Get("/", s.handleGetAgreement)
				one.Put("/", s.handleUpdateAgreement)
				one.Delete("/", s.handleDeleteAgreement)
				one.Post("/send", s.handleSendAgreement)
				one.Get("/pdf/{variant}", s.handleAgreementPDF)
				one.Get("/audit", s.handleAuditTrail)
			})
		})

		api.Route("/sign/{id}", func(sg chi.Router) {
			sg.Get("/", s.handleFetchForSigning)
			sg.Post("/", s.handleSign)
			sg.Post("/reject", s.handleReject)
		})

		api.Route("/notifications", func(nt chi.Router) {
			nt.Use(s.requireAuth)
			nt.Get("/", s.handleListNotifications)
			nt.Get("/unread-count", s.handleUnreadCount)
			nt.Put("/{id}/read", s.handleMarkRead)
			nt.Put("/read-all", s.handleMarkAllRead)
		})
	})

	return r
}
