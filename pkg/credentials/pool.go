// Package credentials manages the pool of generative-model API keys and the
// rotation cursor used by the resilient invoker.
package credentials

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrPoolExhausted is returned when the pool holds no credentials.
var ErrPoolExhausted = errors.New("credential pool is empty")

// Credential is a single API key with an optional label for logging.
type Credential struct {
	Label  string `json:"label,omitempty"`
	APIKey string `json:"api_key"`
}

// Suffix returns the last few characters of the key for log output.
// Full keys must never reach a log line.
func (c Credential) Suffix() string {
	const n = 6
	if len(c.APIKey) <= n {
		return c.APIKey
	}
	return c.APIKey[len(c.APIKey)-n:]
}

// Pool holds an ordered list of credentials and the active cursor. The pool
// is process-wide and shared across sessions, so the cursor is guarded by a
// mutex.
type Pool struct {
	mu    sync.Mutex
	creds []Credential
	index int
}

// NewPool creates a pool over the given credentials. Order is preserved; the
// cursor starts at the first slot.
func NewPool(creds []Credential) *Pool {
	p := &Pool{creds: append([]Credential(nil), creds...)}
	log.Info().Int("size", len(p.creds)).Msg("Credential pool initialized")
	return p
}

// NewPoolFromKeys builds a pool from bare API keys.
func NewPoolFromKeys(keys []string) *Pool {
	creds := make([]Credential, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		creds = append(creds, Credential{APIKey: k})
	}
	return NewPool(creds)
}

// Size returns the number of credentials in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// Current returns the active credential without advancing the cursor.
func (p *Pool) Current() (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.creds) == 0 {
		return Credential{}, ErrPoolExhausted
	}
	return p.creds[p.index], nil
}

// Rotate advances the cursor cyclically and returns the new active
// credential. The cursor wraps from the last slot back to zero.
func (p *Pool) Rotate() (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.creds) == 0 {
		return Credential{}, ErrPoolExhausted
	}

	old := p.creds[p.index]
	p.index = (p.index + 1) % len(p.creds)
	next := p.creds[p.index]

	log.Debug().
		Str("from", old.Suffix()).
		Str("to", next.Suffix()).
		Int("index", p.index).
		Msg("Rotated credential")

	return next, nil
}

// Index returns the current cursor position. Exposed for metrics and tests.
func (p *Pool) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}
