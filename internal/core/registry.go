package core

import (
	"context"
	"fmt"
	"sync/atomic"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Handle is the registry's reference to one remote actor. Besides the ID it
// carries the claim bit that makes destruction exactly-once: whichever
// reclamation pass wins the claim is the only one allowed to destroy the
// actor.
type Handle struct {
	id      ActorID
	ep      Endpoint
	claimed atomic.Bool
}

// NewHandle returns an unclaimed handle for id on ep.
func NewHandle(id ActorID, ep Endpoint) *Handle {
	return &Handle{id: id, ep: ep}
}

// ID returns the actor ID.
func (h *Handle) ID() ActorID {
	return h.id
}

// Alive asks the endpoint whether the actor still exists.
func (h *Handle) Alive(ctx context.Context) (bool, error) {
	return h.ep.IsAlive(ctx, h.id)
}

// Claimed reports whether a reclamation pass has taken this handle.
func (h *Handle) Claimed() bool {
	return h.claimed.Load()
}

// claim transitions the handle from unclaimed to claimed. Only the caller
// that gets true may destroy the actor.
func (h *Handle) claim() bool {
	return h.claimed.CompareAndSwap(false, true)
}

// Registry is the session's ordered list of actors it must release.
//
// It is published exactly once, before the worker starts, and is read-only
// afterwards. The supervisor and the fault trap both read it; neither
// mutates its contents. Publication goes through an atomic pointer so a
// trap running on another goroutine observes either nothing or the complete
// slice.
type Registry struct {
	handles atomic.Pointer[[]*Handle]
}

// NewRegistry returns an unpublished registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Publish stores handles in spawn order. It fails on a second call and when
// two handles share an actor ID.
func (r *Registry) Publish(handles []*Handle) error {
	seen := sets.New[ActorID]()
	for _, h := range handles {
		if h == nil {
			return fmt.Errorf("publish registry: nil handle")
		}
		if seen.Has(h.id) {
			return fmt.Errorf("publish registry: %w: %s", ErrDuplicateActor, h.id)
		}
		seen.Insert(h.id)
	}

	cp := make([]*Handle, len(handles))
	copy(cp, handles)
	if !r.handles.CompareAndSwap(nil, &cp) {
		return ErrAlreadyPublished
	}
	return nil
}

// Published reports whether Publish has succeeded.
func (r *Registry) Published() bool {
	return r.handles.Load() != nil
}

// ForEach calls visit for every handle in spawn order. visit cannot stop the
// iteration; reclamation is best effort and must reach every entry.
func (r *Registry) ForEach(visit func(*Handle)) {
	p := r.handles.Load()
	if p == nil {
		return
	}
	for _, h := range *p {
		visit(h)
	}
}

// Len returns the number of published handles.
func (r *Registry) Len() int {
	if p := r.handles.Load(); p != nil {
		return len(*p)
	}
	return 0
}

// IDs returns the published actor IDs in spawn order.
func (r *Registry) IDs() []ActorID {
	ids := make([]ActorID, 0, r.Len())
	r.ForEach(func(h *Handle) { ids = append(ids, h.id) })
	return ids
}
