// Package hub owns the shared mutable state of the realtime core: the
// group registry used for fan-out and the presence set. Both are
// accessed concurrently by every connection goroutine.
package hub

import (
	"log/slog"
	"sync"

	"gmessagerie/contract"
	"gmessagerie/domain"
	"gmessagerie/domain/event"
)

type sinkSet map[contract.EventSink]struct{}

// Registry maps group keys to the set of live connections subscribed
// to them. A connection typically belongs to two groups: its owner's
// user group and the shared presence group.
type Registry struct {
	mu     sync.RWMutex
	groups map[domain.GroupKey]sinkSet
	log    *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		groups: make(map[domain.GroupKey]sinkSet),
		log:    log,
	}
}

// Register adds a sink to a group, initializing the group on the fly.
func (r *Registry) Register(key domain.GroupKey, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.groups[key]; !ok {
		r.groups[key] = make(sinkSet)
	}
	r.groups[key][sink] = struct{}{}
}

// Unregister removes a sink from a group and drops the group entry
// entirely once its last member leaves, so the map does not grow with
// every user that ever connected.
func (r *Registry) Unregister(key domain.GroupKey, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[key]
	if !ok {
		return
	}
	delete(members, sink)
	if len(members) == 0 {
		delete(r.groups, key)
	}
}

// Publish delivers an event to every sink currently registered under
// the group key. A failing sink only loses its own copy: the error is
// logged and delivery to the remaining members continues.
func (r *Registry) Publish(key domain.GroupKey, e event.Event) {
	r.mu.RLock()
	members := make([]contract.EventSink, 0, len(r.groups[key]))
	for sink := range r.groups[key] {
		members = append(members, sink)
	}
	r.mu.RUnlock()

	for _, sink := range members {
		if err := sink.Deliver(e); err != nil {
			r.log.Debug("dropping event for one member", "group", key, "event", e.EventType(), "error", err)
		}
	}
}
