// Package modules keeps the registry of delegated collaborator
// modules (elections, payroll, hooks and friends) and forwards
// inter-module calls that the core merely brokers.
package modules

import (
	"encoding/json"

	"github.com/Daclify/daclifycore/internal/auth"
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/hooks"
	"github.com/Daclify/daclifycore/internal/storage"
)

// LinkInput registers a module and the delegate permission it acts
// through.
type LinkInput struct {
	Name        domain.Account         `json:"module_name"`
	Delegate    domain.PermissionLevel `json:"slave_permission"`
	HasContract bool                   `json:"has_contract"`
}

// UnlinkInput names the module to deregister.
type UnlinkInput struct {
	Name domain.Account `json:"module_name"`
}

// PayrollInput forwards a payment batch from a sender module to the
// payroll module.
type PayrollInput struct {
	Sender   domain.Account   `json:"sender_module_name"`
	Scope    domain.Account   `json:"payroll_scope"`
	Payments []domain.Payment `json:"payments"`
	Payload  json.RawMessage  `json:"meta,omitempty"`
}

// PayrollForwarder hands a payment batch to the payroll module's
// delegate.
type PayrollForwarder interface {
	Forward(delegate domain.PermissionLevel, in PayrollInput) error
}

// NopForwarder drops payroll batches, for tests and unwired nodes.
type NopForwarder struct{}

func (NopForwarder) Forward(domain.PermissionLevel, PayrollInput) error { return nil }

// Service executes module registry operations.
type Service struct {
	store   *storage.Store
	group   domain.Account
	payroll PayrollForwarder
	hooks   *hooks.Dispatcher
}

func NewService(store *storage.Store, group domain.Account, payroll PayrollForwarder, hooks *hooks.Dispatcher) *Service {
	if payroll == nil {
		payroll = NopForwarder{}
	}
	return &Service{store: store, group: group, payroll: payroll, hooks: hooks}
}

// Link registers a module under group authority. Links start enabled.
func (s *Service) Link(caller auth.Caller, in LinkInput) error {
	if err := auth.RequireGroup(caller); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.LinkTx(tx, in)
	})
}

func (s *Service) LinkTx(tx *storage.Tx, in LinkInput) error {
	if in.Name.IsWildcard() || !in.Name.Valid() {
		return domain.Validationf("invalid module name %q", in.Name)
	}
	if !in.Delegate.Valid() {
		return domain.Validationf("invalid delegate permission level")
	}
	if _, err := tx.Module(in.Name); err == nil {
		return domain.Conflictf("module %s is already linked", in.Name)
	} else if err != storage.ErrNotFound {
		return err
	}
	link := domain.ModuleLink{
		Name:        in.Name,
		Delegate:    in.Delegate,
		Parent:      s.group,
		HasContract: in.HasContract,
		Enabled:     true,
	}
	if err := tx.PutModule(link); err != nil {
		return err
	}
	return s.hooks.Fire(tx, "linkmodule")
}

// Unlink deregisters a module under group authority.
func (s *Service) Unlink(caller auth.Caller, in UnlinkInput) error {
	if err := auth.RequireGroup(caller); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.UnlinkTx(tx, in)
	})
}

func (s *Service) UnlinkTx(tx *storage.Tx, in UnlinkInput) error {
	if _, err := tx.Module(in.Name); err == storage.ErrNotFound {
		return domain.NotFoundf("module %s is not linked", in.Name)
	} else if err != nil {
		return err
	}
	if err := tx.DeleteModule(in.Name); err != nil {
		return err
	}
	return s.hooks.Fire(tx, "unlinkmodule")
}

// Payroll brokers a payment batch from a linked sender module to the
// linked payroll module. The core only verifies both links and the
// sender's delegate; settlement is the payroll module's business.
func (s *Service) Payroll(caller auth.Caller, in PayrollInput) error {
	var delegate domain.PermissionLevel
	err := s.store.View(func(tx *storage.Tx) error {
		payroll, err := tx.Module(domain.ModulePayroll)
		if err == storage.ErrNotFound {
			return domain.NotFoundf("group doesn't have the payroll module linked")
		} else if err != nil {
			return err
		}
		sender, err := tx.Module(in.Sender)
		if err == storage.ErrNotFound {
			return domain.NotFoundf("sender module %s is not linked", in.Sender)
		} else if err != nil {
			return err
		}
		if caller.Account != sender.Delegate.Actor {
			return domain.Authorizationf("only the %s module delegate may submit its payroll", in.Sender)
		}
		delegate = payroll.Delegate
		return nil
	})
	if err != nil {
		return err
	}
	return s.payroll.Forward(delegate, in)
}

// Module returns one registered link.
func (s *Service) Module(name domain.Account) (domain.ModuleLink, error) {
	var link domain.ModuleLink
	err := s.store.View(func(tx *storage.Tx) error {
		var err error
		link, err = tx.Module(name)
		if err == storage.ErrNotFound {
			return domain.NotFoundf("module %s is not linked", name)
		}
		return err
	})
	return link, err
}
