// Package dispatch executes proposal actions with group authority. It
// maps privileged operation names onto the transaction-level service
// handlers so an executing proposal mutates state inside the same
// store transaction that settles it.
package dispatch

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/storage"
)

// Handler runs one privileged operation inside an open transaction.
// The payload is the action's raw JSON argument object.
type Handler func(tx *storage.Tx, payload json.RawMessage, now time.Time) error

// Registry maps operation names on the governed account to handlers.
// Registration happens during wiring, before any dispatching starts.
type Registry struct {
	mu       sync.RWMutex
	group    domain.Account
	handlers map[domain.Account]Handler
	clock    func() time.Time
}

func NewRegistry(group domain.Account, clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{group: group, handlers: map[domain.Account]Handler{}, clock: clock}
}

// Register binds an operation name to its handler, replacing any
// earlier binding.
func (r *Registry) Register(name domain.Account, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Dispatch runs one proposal action. Actions targeting the governed
// account resolve through the registry; actions targeting anything
// else have no local handler and are rejected rather than silently
// dropped.
func (r *Registry) Dispatch(tx *storage.Tx, action domain.Action) error {
	if action.Target != r.group {
		return domain.Validationf("no dispatcher for external target %s", action.Target)
	}
	r.mu.RLock()
	h, ok := r.handlers[action.Name]
	r.mu.RUnlock()
	if !ok {
		return domain.NotFoundf("operation %s is not dispatchable", action.Name)
	}
	return h(tx, action.Payload, r.clock())
}

// decode unmarshals an action payload into a typed input. An empty
// payload decodes to the zero input.
func decode(payload json.RawMessage, into any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, into); err != nil {
		return domain.Validationf("malformed action payload: %v", err)
	}
	return nil
}
