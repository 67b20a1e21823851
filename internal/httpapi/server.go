package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ebueeno/farol/internal/broker"
	"github.com/ebueeno/farol/internal/config"
	"github.com/ebueeno/farol/internal/logging"
	"github.com/ebueeno/farol/internal/observability"
)

// SessionBroker is the broker surface the HTTP layer needs.
type SessionBroker interface {
	CreateSession(ctx context.Context) ([]byte, error)
}

type Server struct {
	cfg      config.Config
	broker   SessionBroker
	metrics  *observability.Metrics
	log      zerolog.Logger
	static   http.Handler
	upgrader websocket.Upgrader
}

func New(cfg config.Config, b SessionBroker, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		broker:  b,
		metrics: metrics,
		log:     logging.WithComponent("httpapi"),
		static:  newStaticHandler(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The HTTP surface is fully open for the demo frontends
			// (see permissiveCORS); the log sink matches that posture.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(permissiveCORS)

	r.Get("/health", s.handleHealth)
	r.Post("/session", s.handleCreateSession)
	r.Get("/webrtc", s.handleWebRTCPage)
	r.Post("/logs", s.handleClientLog)
	r.Get("/logs/ws", s.handleClientLogWS)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Handle("/static/*", http.StripPrefix("/static/", s.static))

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	// No request body is accepted for this operation; all session
	// parameters come from server-side configuration.
	body, err := s.broker.CreateSession(r.Context())
	if err != nil {
		var be *broker.Error
		if errors.As(err, &be) {
			respondBrokerError(w, be)
			return
		}
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": "Unexpected server error"})
		return
	}

	// Verbatim passthrough, secret fields included: the client needs
	// them to establish its realtime connection.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func respondBrokerError(w http.ResponseWriter, e *broker.Error) {
	body := map[string]any{"error": e.Message}
	switch e.Kind {
	case broker.KindUpstreamRejected:
		if e.Detail != nil {
			body["detail"] = e.Detail
		}
	case broker.KindNetwork:
		if e.Cause != nil {
			body["detail"] = e.Cause.Error()
		}
	}
	respondJSON(w, e.Status, body)
}

// permissiveCORS mirrors the open CORS policy the demo frontends rely
// on. Transport security is a deployment concern, not enforced here.
func permissiveCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]any{"error": message, "code": code})
}
