package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ebueeno/farol/internal/broker"
	"github.com/ebueeno/farol/internal/config"
	"github.com/ebueeno/farol/internal/observability"
)

type stubBroker struct {
	body  []byte
	err   error
	calls int
}

func (b *stubBroker) CreateSession(_ context.Context) ([]byte, error) {
	b.calls++
	return b.body, b.err
}

func testConfig() config.Config {
	return config.Config{
		Model:        "gpt-realtime-2025-08-28",
		Voice:        "marin",
		SilenceMS:    600,
		Instructions: "Seja claro e objetivo.",
	}
}

func newTestServer(t *testing.T, b SessionBroker) *httptest.Server {
	t.Helper()
	metrics := observability.NewMetrics("test_httpapi_" + t.Name())
	srv := New(testConfig(), b, metrics)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &stubBroker{})

	res, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", res.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode /health body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("/health body = %v, want status ok", body)
	}
}

func TestCreateSessionPassthroughKeepsSecrets(t *testing.T) {
	upstream := `{"id":"sess_1","client_secret":{"value":"xyz"}}`
	stub := &stubBroker{body: []byte(upstream)}
	ts := newTestServer(t, stub)

	res, err := http.Post(ts.URL+"/session", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /session error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("POST /session status = %d, want 200", res.StatusCode)
	}

	raw, _ := io.ReadAll(res.Body)
	if string(raw) != upstream {
		t.Fatalf("POST /session body = %s, want verbatim upstream body", raw)
	}
	if stub.calls != 1 {
		t.Fatalf("broker calls = %d, want 1", stub.calls)
	}
}

func TestCreateSessionConfigMissing(t *testing.T) {
	stub := &stubBroker{err: &broker.Error{
		Kind:    broker.KindConfigMissing,
		Status:  http.StatusInternalServerError,
		Message: "OPENAI_API_KEY not configured",
	}}
	ts := newTestServer(t, stub)

	res, err := http.Post(ts.URL+"/session", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /session error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", res.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "OPENAI_API_KEY not configured" {
		t.Fatalf("body = %v, want configuration error message", body)
	}
}

func TestCreateSessionUpstreamRejectedMirrorsStatusAndDetail(t *testing.T) {
	detail := []byte(`{"error":{"message":"rate limited"}}`)
	stub := &stubBroker{err: &broker.Error{
		Kind:    broker.KindUpstreamRejected,
		Status:  http.StatusTooManyRequests,
		Message: "upstream rejected session request",
		Detail:  &broker.Detail{JSON: detail},
	}}
	ts := newTestServer(t, stub)

	res, err := http.Post(ts.URL+"/session", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /session error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want mirrored 429", res.StatusCode)
	}

	var body struct {
		Error  string          `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error == "" {
		t.Fatalf("body missing error key")
	}
	if string(body.Detail) != string(detail) {
		t.Fatalf("detail = %s, want upstream body", body.Detail)
	}
}

func TestCreateSessionNetworkFailure(t *testing.T) {
	stub := &stubBroker{err: &broker.Error{
		Kind:    broker.KindNetwork,
		Status:  http.StatusBadGateway,
		Message: "Network error contacting OpenAI",
		Cause:   io.ErrUnexpectedEOF,
	}}
	ts := newTestServer(t, stub)

	res, err := http.Post(ts.URL+"/session", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /session error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", res.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Network error contacting OpenAI" {
		t.Fatalf("error = %v, want fixed network message", body["error"])
	}
	if body["detail"] != io.ErrUnexpectedEOF.Error() {
		t.Fatalf("detail = %v, want underlying error string", body["detail"])
	}
}

func TestCreateSessionInternalHidesDetail(t *testing.T) {
	stub := &stubBroker{err: &broker.Error{
		Kind:    broker.KindInternal,
		Status:  http.StatusInternalServerError,
		Message: "Unexpected server error",
		Cause:   io.ErrClosedPipe,
	}}
	ts := newTestServer(t, stub)

	res, err := http.Post(ts.URL+"/session", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /session error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", res.StatusCode)
	}

	raw, _ := io.ReadAll(res.Body)
	if strings.Contains(string(raw), io.ErrClosedPipe.Error()) {
		t.Fatalf("internal error detail leaked to client: %s", raw)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Unexpected server error" {
		t.Fatalf("error = %v, want generic message", body["error"])
	}
}

func TestWebRTCPage(t *testing.T) {
	ts := newTestServer(t, &stubBroker{})

	res, err := http.Get(ts.URL + "/webrtc")
	if err != nil {
		t.Fatalf("GET /webrtc error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET /webrtc status = %d, want 200", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type = %q, want text/html", ct)
	}

	var page bytes.Buffer
	if _, err := page.ReadFrom(res.Body); err != nil {
		t.Fatalf("read page: %v", err)
	}
	html := page.String()
	for _, want := range []string{
		`data-model="gpt-realtime-2025-08-28"`,
		`data-voice="marin"`,
		`data-silence-ms="600"`,
		`data-client-id="`,
		`/static/webrtc.js`,
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("page missing %q", want)
		}
	}
}

func TestWebRTCPageFreshClientID(t *testing.T) {
	ts := newTestServer(t, &stubBroker{})

	fetch := func() string {
		res, err := http.Get(ts.URL + "/webrtc")
		if err != nil {
			t.Fatalf("GET /webrtc error = %v", err)
		}
		defer res.Body.Close()
		raw, _ := io.ReadAll(res.Body)
		_, after, ok := strings.Cut(string(raw), `data-client-id="`)
		if !ok {
			t.Fatalf("page missing client id")
		}
		id, _, _ := strings.Cut(after, `"`)
		return id
	}

	if a, b := fetch(), fetch(); a == b {
		t.Fatalf("client id reused across renders: %q", a)
	}
}

func TestStaticAssets(t *testing.T) {
	ts := newTestServer(t, &stubBroker{})

	res, err := http.Get(ts.URL + "/static/webrtc.js")
	if err != nil {
		t.Fatalf("GET /static/webrtc.js error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET /static/webrtc.js status = %d, want 200", res.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, &stubBroker{})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/session", nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /session error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("OPTIONS /session status = %d, want 204", res.StatusCode)
	}
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubBroker{})

	res, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", res.StatusCode)
	}
}
