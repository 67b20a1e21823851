package broker

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind classifies broker failures. Every error leaving CreateSession is
// one of these four.
type Kind string

const (
	KindConfigMissing    Kind = "config_missing"
	KindUpstreamRejected Kind = "upstream_rejected"
	KindNetwork          Kind = "network"
	KindInternal         Kind = "internal"
)

// Error is the single failure shape the broker exposes. Status is the
// HTTP status the relay surfaces to its own caller: the upstream's
// status for rejections, 502 for network failures, 500 otherwise.
type Error struct {
	Kind    Kind
	Status  int
	Message string

	// Detail carries the upstream error body for KindUpstreamRejected.
	Detail *Detail

	// Cause holds the underlying transport or decode error. It is logged
	// server-side; only KindNetwork exposes its string to clients.
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("broker %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("broker %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Detail is the upstream error body in one of two forms: the upstream's
// own JSON when it parsed, or a synthesized fallback built from the raw
// status and a truncated text snippet. Both marshal to the same place in
// the client response, so callers never branch on which form they got.
type Detail struct {
	JSON     json.RawMessage
	Fallback *Fallback
}

// Fallback stands in for an upstream error body that was not valid JSON.
type Fallback struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (d *Detail) MarshalJSON() ([]byte, error) {
	if d.JSON != nil {
		return d.JSON, nil
	}
	if d.Fallback != nil {
		return json.Marshal(d.Fallback)
	}
	return []byte("null"), nil
}

// maxSnippetRunes bounds the synthesized message when the upstream error
// body is not JSON.
const maxSnippetRunes = 500

func detailFromBody(status int, body []byte) *Detail {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return &Detail{JSON: json.RawMessage(trimmed)}
	}
	return &Detail{Fallback: &Fallback{
		Status:  status,
		Message: truncateRunes(string(body), maxSnippetRunes),
	}}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
