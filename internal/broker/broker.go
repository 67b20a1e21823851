// Package broker implements the session-brokering core: it exchanges
// the server's long-lived credential for a short-lived realtime session
// issued by the upstream voice API, keeping the long-lived secret off
// the client.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ebueeno/farol/internal/config"
	"github.com/ebueeno/farol/internal/logging"
	"github.com/ebueeno/farol/internal/observability"
	"github.com/ebueeno/farol/internal/policy"
)

// maxResponseBytes caps how much of the upstream body is read. Session
// responses are small; anything past this is upstream misbehavior.
const maxResponseBytes = 1 << 20

// CredentialSource yields the upstream API key, or
// credentials.ErrNotConfigured when none is available.
type CredentialSource interface {
	Resolve() (string, error)
}

// Broker performs one upstream session-creation call per invocation.
// It is stateless between invocations and safe for concurrent use.
type Broker struct {
	cfg     config.Config
	creds   CredentialSource
	client  *http.Client
	log     zerolog.Logger
	metrics *observability.Metrics
}

func New(cfg config.Config, creds CredentialSource, metrics *observability.Metrics) *Broker {
	return &Broker{
		cfg:   cfg,
		creds: creds,
		client: &http.Client{
			Timeout: cfg.UpstreamTimeout,
		},
		log:     logging.WithComponent("broker"),
		metrics: metrics,
	}
}

type sessionPayload struct {
	Model         string        `json:"model"`
	Voice         string        `json:"voice"`
	Modalities    []string      `json:"modalities"`
	Instructions  string        `json:"instructions"`
	TurnDetection turnDetection `json:"turn_detection"`
}

type turnDetection struct {
	Type              string `json:"type"`
	SilenceDurationMS int    `json:"silence_duration_ms"`
}

// CreateSession requests a new realtime session from the upstream API
// and returns its JSON body verbatim, secrets included: the client needs
// them to establish its own connection. Redaction applies only to the
// broker's own logs. On failure the returned error is always a *Error.
func (b *Broker) CreateSession(ctx context.Context) ([]byte, error) {
	key, err := b.creds.Resolve()
	if err != nil {
		// No correlation-id log before this point: an operator seeing
		// request parameters for a call that never left the process would
		// chase the wrong problem.
		b.log.Warn().Msg("session.request missing credential")
		b.metrics.SessionRequests.WithLabelValues(string(KindConfigMissing)).Inc()
		return nil, &Error{
			Kind:    KindConfigMissing,
			Status:  http.StatusInternalServerError,
			Message: "OPENAI_API_KEY not configured",
			Cause:   err,
		}
	}

	rid := uuid.NewString()
	started := time.Now()
	b.log.Info().
		Str("rid", rid).
		Str("model", b.cfg.Model).
		Str("voice", b.cfg.Voice).
		Int("silence_ms", b.cfg.SilenceMS).
		Msg("session.request start")

	payload := sessionPayload{
		Model:        b.cfg.Model,
		Voice:        b.cfg.Voice,
		Modalities:   []string{"audio", "text"},
		Instructions: b.cfg.Instructions,
		TurnDetection: turnDetection{
			Type:              "server_vad",
			SilenceDurationMS: b.cfg.SilenceMS,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, b.internalError(rid, "marshal session payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.UpstreamURL, bytes.NewReader(body))
	if err != nil {
		return nil, b.internalError(rid, "build upstream request", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", "realtime=v1")

	res, err := b.client.Do(req)
	if err != nil {
		return nil, b.networkError(rid, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, b.networkError(rid, err)
	}
	b.metrics.ObserveUpstreamLatency(time.Since(started))

	if res.StatusCode >= 400 {
		detail := detailFromBody(res.StatusCode, raw)
		detailJSON, _ := json.Marshal(detail)
		b.log.Warn().
			Str("rid", rid).
			Int("status", res.StatusCode).
			RawJSON("detail", detailJSON).
			Msg("session.request error")
		b.metrics.SessionRequests.WithLabelValues(string(KindUpstreamRejected)).Inc()
		return nil, &Error{
			Kind:    KindUpstreamRejected,
			Status:  res.StatusCode,
			Message: "upstream rejected session request",
			Detail:  detail,
		}
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, b.internalError(rid, "decode upstream response", err)
	}

	safe := policy.RedactSecrets(obj)
	sessionID, _ := safe["id"].(string)
	b.log.Info().
		Str("rid", rid).
		Int64("elapsed_ms", time.Since(started).Milliseconds()).
		Str("session_id", sessionID).
		Interface("meta", safe).
		Msg("session.request ok")
	b.metrics.SessionRequests.WithLabelValues("ok").Inc()

	return raw, nil
}

func (b *Broker) networkError(rid string, err error) *Error {
	b.log.Error().Str("rid", rid).Err(err).Msg("session.request network_error")
	b.metrics.SessionRequests.WithLabelValues(string(KindNetwork)).Inc()
	return &Error{
		Kind:    KindNetwork,
		Status:  http.StatusBadGateway,
		Message: "Network error contacting OpenAI",
		Cause:   err,
	}
}

func (b *Broker) internalError(rid, op string, err error) *Error {
	b.log.Error().Str("rid", rid).Str("op", op).Err(err).Msg("session.request unexpected_error")
	b.metrics.SessionRequests.WithLabelValues(string(KindInternal)).Inc()
	return &Error{
		Kind:    KindInternal,
		Status:  http.StatusInternalServerError,
		Message: "Unexpected server error",
		Cause:   fmt.Errorf("%s: %w", op, err),
	}
}
