// Package hooks is the extension dispatcher: after a governance state
// change it opportunistically notifies a registered hooks module.
// Absence of a module, a registration or a transport is never an
// error; a failing delivery aborts (and unwinds) the triggering call.
package hooks

import (
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/storage"
)

// Hook is one registered action hook held by the hooks collaborator.
type Hook struct {
	Operation domain.Account `json:"operation"`
	Action    domain.Account `json:"hook_action"`
	Enabled   bool           `json:"enabled"`
}

// Source looks up hook registrations by hooked operation name.
type Source interface {
	Lookup(op domain.Account) (Hook, bool)
}

// Notifier delivers a one-way hook notification to a module delegate.
type Notifier interface {
	Notify(delegate domain.PermissionLevel, hookAction, op domain.Account) error
}

// Dispatcher resolves the hooks module once per call and fires the
// matching registration, if any. A nil dispatcher fires nothing.
type Dispatcher struct {
	source   Source
	notifier Notifier
}

// NewDispatcher builds a dispatcher over a registration source and a
// delivery transport.
func NewDispatcher(source Source, notifier Notifier) *Dispatcher {
	return &Dispatcher{source: source, notifier: notifier}
}

// Fire notifies the hooks module about op inside the caller's
// transaction scope.
func (d *Dispatcher) Fire(tx *storage.Tx, op domain.Account) error {
	if d == nil || d.source == nil || d.notifier == nil {
		return nil
	}
	mod, err := tx.Module(domain.ModuleHooks)
	if err == storage.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if !mod.Enabled {
		return nil
	}
	hook, ok := d.source.Lookup(op)
	if !ok || !hook.Enabled {
		return nil
	}
	return d.notifier.Notify(mod.Delegate, hook.Action, op)
}

// StaticSource is a fixed hook table, typically loaded from node
// configuration.
type StaticSource map[domain.Account]Hook

func (s StaticSource) Lookup(op domain.Account) (Hook, bool) {
	hook, ok := s[op]
	return hook, ok
}
