package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// token grants exclusive access to one contract. Background runs honor the
// cancel flag at stage boundaries; synchronous holders ignore it.
type token struct {
	background bool
	cancelled  atomic.Bool
}

// arena tracks the tokens currently held, one per contract.
type arena struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]*token
}

func newArena() *arena {
	return &arena{tokens: make(map[uuid.UUID]*token)}
}

// acquire returns a token for id, or false when one is already held.
func (a *arena) acquire(id uuid.UUID, background bool) (*token, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, held := a.tokens[id]; held {
		return nil, false
	}

	t := &token{background: background}
	a.tokens[id] = t
	return t, true
}

func (a *arena) release(id uuid.UUID, t *token) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tokens[id] == t {
		delete(a.tokens, id)
	}
}

// cancel flags the background run holding id. held reports whether any
// token exists; flagged whether it belonged to a background run.
func (a *arena) cancel(id uuid.UUID) (held, flagged bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.tokens[id]
	if !ok {
		return false, false
	}
	if !t.background {
		return true, false
	}

	t.cancelled.Store(true)
	return true, true
}

func (a *arena) busy(id uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, held := a.tokens[id]
	return held
}
