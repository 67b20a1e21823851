// Package credentials resolves the upstream API key from an ordered list
// of sources. Resolution happens per request so rotated secrets take
// effect without a restart.
package credentials

import (
	"errors"
	"os"
	"strings"
)

// ErrNotConfigured is returned when no source yields a credential.
var ErrNotConfigured = errors.New("OPENAI_API_KEY not configured")

// Source yields a credential candidate. Sources report absence rather
// than errors: a secret file that cannot be read must look the same as
// one that does not exist, so no filesystem detail leaks to callers.
type Source interface {
	Resolve() (string, bool)
}

// FileSource reads a mounted secret file (Docker/Swarm style).
type FileSource struct {
	Path string
}

func (s FileSource) Resolve() (string, bool) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(string(b))
	if v == "" {
		return "", false
	}
	return v, true
}

// EnvSource reads a credential from an environment variable.
type EnvSource struct {
	Key string
}

func (s EnvSource) Resolve() (string, bool) {
	v := strings.TrimSpace(os.Getenv(s.Key))
	if v == "" {
		return "", false
	}
	return v, true
}

// Resolver tries each source in order and takes the first present value.
type Resolver struct {
	sources []Source
}

func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// Default builds the production resolution chain: mounted secret file
// first, then the OPENAI_API_KEY environment variable.
func Default(secretFilePath string) *Resolver {
	return NewResolver(
		FileSource{Path: secretFilePath},
		EnvSource{Key: "OPENAI_API_KEY"},
	)
}

func (r *Resolver) Resolve() (string, error) {
	for _, src := range r.sources {
		if v, ok := src.Resolve(); ok {
			return v, nil
		}
	}
	return "", ErrNotConfigured
}
