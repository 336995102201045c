package listpage

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/unitdesk/unitdesk/internal/errors"
	"github.com/unitdesk/unitdesk/internal/metrics"
	"github.com/unitdesk/unitdesk/internal/unit"
)

// DefaultViewTTL is how long an untouched view is kept.
const DefaultViewTTL = 30 * time.Minute

// Registry keeps open views by id. A view idle for longer than its TTL is
// evicted and closed.
type Registry struct {
	client  Client
	views   *cache.Cache
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewRegistry returns a registry of views over client.
func NewRegistry(client Client, ttl time.Duration, log zerolog.Logger, m *metrics.Metrics) *Registry {
	if ttl <= 0 {
		ttl = DefaultViewTTL
	}
	cleanup := ttl / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	r := &Registry{
		client:  client,
		views:   cache.New(ttl, cleanup),
		log:     log.With().Str("component", "listpage").Logger(),
		metrics: m,
	}
	r.views.OnEvicted(func(id string, item any) {
		if v, ok := item.(*View); ok {
			v.Close()
		}
		r.metrics.ViewClosed()
		r.log.Debug().Str("view", id).Msg("view closed")
	})
	return r
}

// Open creates a view starting at q.
func (r *Registry) Open(q unit.Query) *View {
	id := ulid.Make().String()
	v := NewView(id, r.client, q, r.log)
	r.views.Set(id, v, cache.DefaultExpiration)
	r.metrics.ViewOpened()
	r.log.Debug().Str("view", id).Msg("view opened")
	return v
}

// Get returns the view with the given id and refreshes its expiry.
func (r *Registry) Get(id string) (*View, error) {
	item, ok := r.views.Get(id)
	if !ok {
		return nil, errors.NewViewNotFound(id)
	}
	v := item.(*View)
	r.views.Set(id, v, cache.DefaultExpiration)
	return v, nil
}

// Close removes and closes the view with the given id.
func (r *Registry) Close(id string) {
	r.views.Delete(id)
}

// Len returns the number of open views, including expired ones not yet
// swept.
func (r *Registry) Len() int {
	return r.views.ItemCount()
}

// CloseAll closes every open view.
func (r *Registry) CloseAll() {
	r.views.DeleteExpired()
	for id := range r.views.Items() {
		r.views.Delete(id)
	}
}
