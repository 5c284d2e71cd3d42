package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/campusdocs/cert-portal/app"
	"github.com/campusdocs/cert-portal/handlers"
	"github.com/campusdocs/cert-portal/middleware"
	"github.com/campusdocs/cert-portal/models"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(propagateRequestID)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.Logger)
	certHandler := handlers.NewCertificateHandler(
		deps.CertificateService,
		deps.Config.Uploads.MaxFileSize,
		deps.Logger,
	)

	// Health check endpoints
	r.Get("/healthz", handlers.HealthCheck(deps))
	r.Get("/readyz", handlers.ReadinessCheck(deps))

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/google", authHandler.HandleGoogleLogin)

			r.Group(func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireAuth)
				r.Get("/me", authHandler.HandleMe)
			})
		})

		// Certificate endpoints (require authentication)
		r.Route("/certificates", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)

			r.Post("/", certHandler.HandleUpload)
			r.Get("/student/{email}", certHandler.HandleListByStudent)
			r.Get("/{id}", certHandler.HandleGet)

			// Admin-only operations
			r.Group(func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireRole(models.RoleAdmin))
				r.Get("/", certHandler.HandleList)
				r.Patch("/{id}", certHandler.HandleReview)
				r.Delete("/{id}", certHandler.HandleDelete)
			})
		})
	})

	// Uploaded certificate files
	fileServer := http.StripPrefix(
		deps.Config.Uploads.PublicPrefix,
		http.FileServer(http.Dir(deps.FileStore.Dir())),
	)
	r.Get(deps.Config.Uploads.PublicPrefix+"/*", fileServer.ServeHTTP)

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}

// propagateRequestID copies chi's request ID onto the application context
// key so handlers and middleware can log it
func propagateRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
			ctx = middleware.WithRequestID(ctx, reqID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
