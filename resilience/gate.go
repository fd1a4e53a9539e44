package resilience

import (
	"context"
	"strings"
	"sync"
)

// Gate serializes work per scope. At most one op runs for a given scope at a
// time; later callers for the same scope block until it is free. Different
// scopes never wait on each other.
//
// Scope entries are reference counted and dropped once nobody holds or waits
// on them, so the map does not grow with the number of scopes ever seen.
type Gate struct {
	mu     sync.Mutex
	scopes map[string]*scopeLock
}

type scopeLock struct {
	// token holds one value while the scope is free.
	token chan struct{}
	refs  int
}

// NewGate creates an empty gate.
func NewGate() *Gate {
	return &Gate{scopes: make(map[string]*scopeLock)}
}

// Do runs op while holding the scope. Waiting ends early with ctx.Err() if ctx
// is done first, in which case op is not called.
func (g *Gate) Do(ctx context.Context, scope string, op func(context.Context) error) error {
	if strings.TrimSpace(scope) == "" {
		return ErrEmptyScope
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l := g.ref(scope)
	defer g.unref(scope, l)

	select {
	case <-l.token:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { l.token <- struct{}{} }()

	return op(ctx)
}

// Waiters returns the number of callers holding or waiting on scope.
func (g *Gate) Waiters(scope string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.scopes[scope]; ok {
		return l.refs
	}
	return 0
}

// Len returns the number of scopes currently tracked.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.scopes)
}

func (g *Gate) ref(scope string) *scopeLock {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.scopes[scope]
	if !ok {
		l = &scopeLock{token: make(chan struct{}, 1)}
		l.token <- struct{}{}
		g.scopes[scope] = l
	}
	l.refs++
	return l
}

func (g *Gate) unref(scope string, l *scopeLock) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(g.scopes, scope)
	}
}
