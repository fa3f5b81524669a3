// Package tabs keeps the state of each open browser tab: its auth context and
// the one page currently mounted in it.
package tabs

import (
	"context"
	"sync"
	"time"

	"jobcoach-web/internal/authstate"
	"jobcoach-web/internal/resource"
)

// AuthFactory builds the auth context for a new tab. ctx ends at teardown.
type AuthFactory func(ctx context.Context, tabID string) *authstate.Context

type Tab struct {
	ID   string
	Auth *authstate.Context

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	lastSeen time.Time
	pageKey  string
	page     any
	scope    *resource.Scope
}

// Mount unmounts whatever page the tab shows and mounts a fresh one built by
// factory. Every navigation goes through here, so page-local state starts over.
func Mount[P any](t *Tab, key string, factory func(*resource.Scope) P) P {
	t.mu.Lock()
	defer t.mu.Unlock()
	return mountLocked(t, key, factory)
}

// Mounted returns the page mounted under key, mounting one if the tab shows
// something else. Actions posted from a page use this.
func Mounted[P any](t *Tab, key string, factory func(*resource.Scope) P) P {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pageKey == key {
		if p, ok := t.page.(P); ok {
			return p
		}
	}
	return mountLocked(t, key, factory)
}

func mountLocked[P any](t *Tab, key string, factory func(*resource.Scope) P) P {
	t.unmountLocked()
	scope := resource.NewScope(t.ctx)
	p := factory(scope)
	t.pageKey, t.page, t.scope = key, p, scope
	return p
}

// Unmount closes the mounted page, if any.
func (t *Tab) Unmount() {
	t.mu.Lock()
	t.unmountLocked()
	t.mu.Unlock()
}

// PageKey reports which page is mounted.
func (t *Tab) PageKey() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pageKey
}

func (t *Tab) unmountLocked() {
	if t.scope != nil {
		t.scope.Close()
	}
	t.pageKey, t.page, t.scope = "", nil, nil
}

func (t *Tab) touch(now time.Time) {
	t.mu.Lock()
	t.lastSeen = now
	t.mu.Unlock()
}

func (t *Tab) idleSince() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSeen
}

func (t *Tab) close() {
	t.Unmount()
	t.cancel()
}
