package tabs

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"jobcoach-web/internal/shared/metrics"
	"jobcoach-web/internal/shared/telemetry"
)

const tabContextKey = "tab"

// TabIDKey is the gin context key holding the tab id for log lines.
const TabIDKey = "tabId"

// Registry owns every live tab and tears down idle ones.
type Registry struct {
	base    context.Context
	newAuth AuthFactory
	idle    time.Duration
	limit   int
	now     func() time.Time

	mu   sync.Mutex
	tabs map[string]*Tab
}

func NewRegistry(base context.Context, idle time.Duration, newAuth AuthFactory) *Registry {
	return &Registry{
		base:    base,
		newAuth: newAuth,
		idle:    idle,
		now:     time.Now,
		tabs:    make(map[string]*Tab),
	}
}

// SetLimit caps how many tabs are kept. At the cap, creating a tab tears
// down the one idle the longest. Zero means no cap.
func (r *Registry) SetLimit(n int) {
	r.mu.Lock()
	r.limit = n
	r.mu.Unlock()
}

// Get returns the tab for id, creating it on first sight.
func (r *Registry) Get(id string) *Tab {
	now := r.now()
	var evicted *Tab
	r.mu.Lock()
	tab, ok := r.tabs[id]
	if !ok {
		if r.limit > 0 && len(r.tabs) >= r.limit {
			evicted = r.oldestLocked()
			delete(r.tabs, evicted.ID)
		}
		ctx, cancel := context.WithCancel(r.base)
		tab = &Tab{ID: id, ctx: ctx, cancel: cancel}
		tab.Auth = r.newAuth(ctx, id)
		tab.lastSeen = now
		r.tabs[id] = tab
		metrics.SetActiveTabs(len(r.tabs))
	}
	r.mu.Unlock()
	tab.touch(now)
	if evicted != nil {
		evicted.close()
		telemetry.Debug("tabs.evicted", map[string]any{"tab_id": evicted.ID})
	}
	return tab
}

func (r *Registry) oldestLocked() *Tab {
	var oldest *Tab
	for _, tab := range r.tabs {
		if oldest == nil || tab.idleSince().Before(oldest.idleSince()) {
			oldest = tab
		}
	}
	return oldest
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tabs)
}

// Sweep tears down tabs idle for longer than the idle timeout and returns how
// many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idle)
	var expired []*Tab

	r.mu.Lock()
	for id, tab := range r.tabs {
		if tab.idleSince().Before(cutoff) {
			expired = append(expired, tab)
			delete(r.tabs, id)
		}
	}
	metrics.SetActiveTabs(len(r.tabs))
	r.mu.Unlock()

	for _, tab := range expired {
		tab.close()
	}
	if len(expired) > 0 {
		telemetry.Debug("tabs.swept", map[string]any{"count": len(expired)})
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then tears down all tabs.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) Close() {
	r.mu.Lock()
	tabs := r.tabs
	r.tabs = make(map[string]*Tab)
	metrics.SetActiveTabs(0)
	r.mu.Unlock()
	for _, tab := range tabs {
		tab.close()
	}
}

// Middleware binds each request to its tab, issuing a tab cookie when the
// browser has none.
func Middleware(r *Registry, cookieName string, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(cookieName)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookieName, id, 0, "/", "", secure, true)
		}
		c.Set(tabContextKey, r.Get(id))
		c.Set(TabIDKey, id)
		c.Next()
	}
}

// FromContext returns the tab bound by Middleware.
func FromContext(c *gin.Context) *Tab {
	v, ok := c.Get(tabContextKey)
	if !ok {
		return nil
	}
	tab, _ := v.(*Tab)
	return tab
}
