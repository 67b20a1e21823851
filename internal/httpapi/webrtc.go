package httpapi

import (
	"net"
	"net/http"

	"github.com/google/uuid"
)

type webrtcPageData struct {
	Model     string
	Voice     string
	SilenceMS int
	ClientID  string
}

// handleWebRTCPage renders the bootstrap page the dashboard embeds in
// an iframe. The page's own client logic (fetching a session, opening
// the peer connection) is opaque to the server; it only receives the
// non-secret config fields and a fresh per-view client id.
func (s *Server) handleWebRTCPage(w http.ResponseWriter, r *http.Request) {
	clientID := uuid.NewString()
	s.log.Info().
		Str("client_id", clientID).
		Str("client", remoteHost(r)).
		Msg("webrtc.page")
	s.metrics.PageRenders.Inc()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := webrtcTemplate.Execute(w, webrtcPageData{
		Model:     s.cfg.Model,
		Voice:     s.cfg.Voice,
		SilenceMS: s.cfg.SilenceMS,
		ClientID:  clientID,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("webrtc.page render failed")
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
