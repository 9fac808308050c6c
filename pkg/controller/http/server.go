package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/secmon-lab/tracedesk/pkg/usecase"
	"github.com/secmon-lab/tracedesk/pkg/utils/logging"
)

type AuthUseCase = usecase.AuthUseCaseInterface

type Server struct {
	router  *chi.Mux
	uc      *usecase.UseCases
	authUC  AuthUseCase
	metrics http.Handler
}

type Options func(*Server)

// WithAuth overrides the authentication of the use cases
func WithAuth(authUC AuthUseCase) Options {
	return func(s *Server) {
		s.authUC = authUC
	}
}

// WithMetrics serves handler on /metrics
func WithMetrics(handler http.Handler) Options {
	return func(s *Server) {
		s.metrics = handler
	}
}

// WithDefaultMetrics serves the default Prometheus registry on /metrics
func WithDefaultMetrics() Options {
	return WithMetrics(promhttp.Handler())
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
		authUC: uc.Auth,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.authUC))

		r.Get("/me", meHandler())
		r.Get("/schema", schemaHandler(uc))

		r.Route("/traces", func(r chi.Router) {
			r.Get("/", listTracesHandler(uc.Review))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", getTraceHandler(uc.Review))
				r.Post("/accept", acceptHandler(uc.Review))
				r.Post("/reject", rejectHandler(uc.Review))
				r.Post("/reset", resetHandler(uc.Review))
				r.Put("/output", updateOutputHandler(uc.Review))
			})
		})

		r.Get("/stats/daily", dailyStatsHandler(uc.Stats))
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
