package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-gate/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	recognizeHandler := handlers.NewRecognizeHandler(s.config, s.pipeline)
	enrollHandler := handlers.NewEnrollHandler(s.config, s.enroller)
	identitiesHandler := handlers.NewIdentitiesHandler(s.gallery)
	eventsHandler := handlers.NewEventsHandler(s.events)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/recognize", recognizeHandler.Recognize)
		r.Post("/enroll", enrollHandler.Enroll)

		r.Get("/identities", identitiesHandler.List)
		r.Delete("/identities/{id}", identitiesHandler.Delete)

		r.Get("/events", eventsHandler.Recent)
	})
}
