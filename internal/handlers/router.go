package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Handlers bundles everything the router serves
type Handlers struct {
	JDF            *JDFHandler
	Stops          *StopHandler
	Carriers       *CarrierHandler
	Imports        *ImportRunHandler
	Health         *HealthHandler
	AllowedOrigins []string
}

// NewRouter wires the HTTP routes
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/jdf/zip", h.JDF.UploadZip)

		r.Get("/stops", h.Stops.ListStops)
		r.Get("/stops/nearest", h.Stops.NearestStops)
		r.Get("/stops/{id}", h.Stops.GetStop)
		r.Put("/stops/{id}/coords", h.Stops.UpdateCoords)

		r.Get("/carriers/{id}/lines", h.Carriers.GetCarrierLines)

		r.Get("/imports", h.Imports.ListRuns)
	})

	return r
}
