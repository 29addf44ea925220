package service

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/worldcoin/world-chat-backend-sub000/internal/metrics"
	"github.com/worldcoin/world-chat-backend-sub000/internal/service/handle"
	"github.com/worldcoin/world-chat-backend-sub000/internal/types/api"
)

// Handler returns the service's router.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	setupMiddlewares(r, s.metrics)

	r.Get(api.PathHealth, handle.Health(s.keys))
	r.Get(api.PathInfo, handle.Info(s.instanceID))
	r.Get(api.PathAttestationDoc, handle.AttestationDoc(s.keys, s.builder))
	r.Post(api.PathInitialize, handle.Initialize(s.keyInit))
	r.Post(api.PathSecretKey, handle.SecretKey(s.responder))
	r.Handle(api.PathMetrics, metrics.Handler(s.reg))

	return r
}

func setupMiddlewares(r *chi.Mux, m *metrics.Metrics) {
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		r.Use(logRequests)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Served request.")
	})
}
