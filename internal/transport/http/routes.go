package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"shpkml-service/internal/obs"
)

func Routes(h *Handler, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	// базовые middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// наш логгер (после RequestID)
	r.Use(RequestLogger)
	r.Use(obs.MetricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", obs.MetricsHandler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/upload", h.Upload)
		r.Get("/status/{id}", h.GetStatus)
		r.Post("/jobs/{id}/cancel", h.Cancel)

		r.Get("/download/{id}", h.Download)
		r.Get("/download/{id}/{filename}", h.DownloadFile)
		r.Get("/download-all/{id}", h.DownloadAll)

		r.Get("/coordinates/{id}", h.Coordinates)
		r.Get("/coordinates/{id}/{filename}", h.FileCoordinates)
		r.Post("/test-coordinates", h.TestCoordinates)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	c := cors.New(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Disposition"},
	})
	return c.Handler(r)
}
