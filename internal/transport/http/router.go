package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"reading-quiz-service/internal/app"
	"reading-quiz-service/internal/auth"
	"reading-quiz-service/internal/domain"
	"reading-quiz-service/internal/logging"
)

// RouterConfig lists what the HTTP surface needs.
type RouterConfig struct {
	Questions   app.QuestionSource
	Users       *app.UserService
	Quiz        *app.QuizService
	Tokens      *auth.TokenService
	Logger      logrus.FieldLogger
	CORSOrigins []string
}

// NewRouter mounts the REST API, the play socket and the health check.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	api := NewAPI(cfg.Questions, cfg.Users, cfg.Tokens)
	ws := NewWSHandler(cfg.Quiz)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(cfg.Logger), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/qcm-questions", api.multipleChoice)
		r.Get("/input-questions", api.freeText)
		r.Get("/audio-questions", api.audio)
		r.Post("/register", api.register)
		r.Post("/login", api.login)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(cfg.Tokens))
			pr.With(auth.RequireRole(domain.RoleTeacher)).Get("/students", api.students)
			pr.With(auth.RequireRole(domain.RoleTeacher)).Get("/students/summary", api.summary)
			pr.Post("/students/{id}/score", api.saveScore)
		})
	})

	r.With(auth.Middleware(cfg.Tokens)).Get("/ws/play", ws.ServeWS)
	return r
}

// requestLogger logs one line per request and stores a request-scoped entry in the context.
func requestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
			})
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), entry)))
			entry.WithFields(logrus.Fields{
				"status":   ww.Status(),
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start),
			}).Info("request handled")
		})
	}
}
