package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/advisor-match/internal/logger"
)

// NewRouter builds the chi router with the global middleware stack.
func NewRouter(h *Handler, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(CORS)

	r.Get("/health", h.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)

		r.Route("/profiles", func(r chi.Router) {
			r.Post("/", h.CreateProfile)
			r.Post("/cv", h.ImportCV)
			r.Get("/", h.ListProfiles)
			r.Get("/{id}", h.GetProfile)
			r.Put("/{id}", h.UpdateProfile)
			r.Delete("/{id}", h.DeleteProfile)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", h.SubmitDocument)
			r.Get("/", h.ListDocuments)
			r.Get("/{id}", h.GetDocument)
			r.Get("/{id}/content", h.GetDocumentContent)
			r.Delete("/{id}", h.DeleteDocument)
		})

		r.Post("/match", h.Match)

		r.Route("/registrations", func(r chi.Router) {
			r.Post("/", h.CreateRegistration)
			r.Get("/", h.ListRegistrations)
			r.Get("/{id}", h.GetRegistration)
			r.Post("/{id}/{action}", h.TransitionRegistration)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Get("/unread-count", h.UnreadCount)
			r.Post("/read-all", h.MarkAllNotificationsRead)
			r.Post("/{id}/read", h.MarkNotificationRead)
		})
	})

	return r
}
