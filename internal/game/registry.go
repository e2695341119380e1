package game

import (
	rand "math/rand/v2"
	"sort"
	"strings"

	"github.com/lox/voterps/internal/randutil"
)

// Registry owns the live sessions, keyed by code. It is not safe for
// concurrent use.
type Registry struct {
	cfg      Config
	rng      *rand.Rand
	sessions map[string]*Session
}

// NewRegistry creates an empty registry whose sessions draw their random
// sources from rng.
func NewRegistry(cfg Config, rng *rand.Rand) *Registry {
	return &Registry{
		cfg:      cfg,
		rng:      rng,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session for code, creating it on first reference.
func (r *Registry) Open(code string) (s *Session, created bool, err error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, false, ErrInvalidCode
	}
	if s, ok := r.sessions[code]; ok {
		return s, false, nil
	}
	s = NewSession(code, r.cfg, randutil.Child(r.rng))
	r.sessions[code] = s
	return s, true, nil
}

// Get looks up a session without creating it.
func (r *Registry) Get(code string) (*Session, bool) {
	s, ok := r.sessions[strings.TrimSpace(code)]
	return s, ok
}

// Remove discards a session and reports whether it existed.
func (r *Registry) Remove(code string) bool {
	if _, ok := r.sessions[code]; !ok {
		return false
	}
	delete(r.sessions, code)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// Sessions returns the live sessions ordered by code.
func (r *Registry) Sessions() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].code < out[j].code })
	return out
}
