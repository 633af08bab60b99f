// Package listener holds the subscribers of inbound application envelopes.
package listener

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/zanderp25/DeskThing-Client/pkg/wire"
)

// Listener observes inbound application envelopes.
// A returned error is logged and does not stop delivery to other listeners.
type Listener func(env wire.Envelope) error

// ID identifies one registration. IDs are never reused within a process.
type ID uint64

var idGenerator atomic.Uint64

func nextID() ID {
	return ID(idGenerator.Add(1))
}

type registration struct {
	id ID
	fn Listener
}

// NotifyResult summarizes one fan-out.
type NotifyResult struct {
	// Delivered counts listeners that returned without error.
	Delivered int

	// Failed counts listeners that returned an error or panicked.
	Failed int
}

// Registry is an ordered set of listener registrations.
// It is safe for concurrent use, including from inside a listener.
type Registry struct {
	mu   sync.Mutex
	regs []registration

	logger *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger uses slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger.With("component", "listener")}
}

// Subscribe appends fn and returns its registration ID.
// The same function may be subscribed more than once.
func (r *Registry) Subscribe(fn Listener) ID {
	id := nextID()

	r.mu.Lock()
	r.regs = append(r.regs, registration{id: id, fn: fn})
	r.mu.Unlock()

	return id
}

// Unsubscribe removes the registration with the given ID.
// Unknown IDs are ignored. It reports whether a registration was removed.
func (r *Registry) Unsubscribe(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.regs, func(reg registration) bool { return reg.id == id })
	if i < 0 {
		return false
	}
	// Copy so that a snapshot taken by an in-progress Notify keeps its view.
	r.regs = slices.Delete(slices.Clone(r.regs), i, i+1)
	return true
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.regs)
}

// Notify invokes every listener registered at the time of the call, in
// registration order. Registry changes made by listeners apply from the
// next call on.
func (r *Registry) Notify(env wire.Envelope) NotifyResult {
	r.mu.Lock()
	snapshot := slices.Clone(r.regs)
	r.mu.Unlock()

	var res NotifyResult
	for _, reg := range snapshot {
		if err := r.invoke(reg, env); err != nil {
			res.Failed++
			r.logger.Warn("listener failed",
				"listener_id", uint64(reg.id),
				"app", env.App,
				"type", env.Type,
				"error", err)
			continue
		}
		res.Delivered++
	}
	return res
}

// invoke calls one listener, turning a panic into an error.
func (r *Registry) invoke(reg registration, env wire.Envelope) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("listener panicked: %v", p)
		}
	}()
	return reg.fn(env)
}
