// Package group governs the per-group configuration singleton and
// exposes read-side views of the governed account's state.
package group

import (
	"github.com/Daclify/daclifycore/internal/auth"
	"github.com/Daclify/daclifycore/internal/custodians"
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/hooks"
	"github.com/Daclify/daclifycore/internal/storage"
)

// UpdateConfInput carries a full replacement configuration, or asks
// for a reset to defaults.
type UpdateConfInput struct {
	Conf   domain.GroupConf `json:"new_conf"`
	Remove bool             `json:"remove"`
}

// Service executes configuration changes and read queries against the
// group store.
type Service struct {
	store *storage.Store
	group domain.Account
	dir   domain.Directory
	hooks *hooks.Dispatcher
}

func NewService(store *storage.Store, group domain.Account, dir domain.Directory, hooks *hooks.Dispatcher) *Service {
	if dir == nil {
		dir = domain.OpenDirectory{}
	}
	return &Service{store: store, group: group, dir: dir, hooks: hooks}
}

// OffchainInput records an off-chain activity description. The record
// itself is not persisted; the operation exists so a proposal can
// carry an off-chain task and so the hooks module hears about it.
type OffchainInput struct {
	Description string `json:"description"`
}

// Offchain acknowledges an off-chain activity by firing its hook.
func (s *Service) Offchain(caller auth.Caller, in OffchainInput) error {
	return s.store.Update(func(tx *storage.Tx) error {
		return s.OffchainTx(tx, in)
	})
}

func (s *Service) OffchainTx(tx *storage.Tx, in OffchainInput) error {
	return s.hooks.Fire(tx, "offchain")
}

// UpdateConf replaces the configuration singleton under group
// authority. Changing the maintainer re-derives the owner-level
// signing policy in the same transaction. Remove resets the singleton
// to defaults without touching the owner policy.
func (s *Service) UpdateConf(caller auth.Caller, in UpdateConfInput) error {
	if err := auth.RequireGroup(caller); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.UpdateConfTx(tx, in)
	})
}

func (s *Service) UpdateConfTx(tx *storage.Tx, in UpdateConfInput) error {
	if in.Remove {
		if err := tx.DeleteConf(); err != nil {
			return err
		}
		return s.hooks.Fire(tx, "updateconf")
	}
	if err := validateConf(in.Conf); err != nil {
		return err
	}
	current, err := tx.Conf()
	if err != nil {
		return err
	}
	if in.Conf.Maintainer != current.Maintainer {
		if err := custodians.RefreshMaintainer(tx, s.group, in.Conf.Maintainer, s.dir); err != nil {
			return err
		}
	}
	if err := tx.SetConf(in.Conf); err != nil {
		return err
	}
	return s.hooks.Fire(tx, "updateconf")
}

func validateConf(conf domain.GroupConf) error {
	if conf.MaxCustodians == 0 {
		return domain.Validationf("max_custodians must be at least 1")
	}
	if conf.InactivateCustAfter < 0 {
		return domain.Validationf("inactivate_cust_after can't be negative")
	}
	if conf.MinProposalExpiration <= 0 {
		return domain.Validationf("min proposal expiration must be positive")
	}
	if !conf.Maintainer.Actor.IsWildcard() && !conf.Maintainer.Valid() {
		return domain.Validationf("invalid maintainer permission level")
	}
	if !conf.HubAccount.IsWildcard() && !conf.HubAccount.Valid() {
		return domain.Validationf("invalid hub account name")
	}
	return nil
}

// Conf returns the effective configuration, defaults included.
func (s *Service) Conf() (domain.GroupConf, error) {
	var conf domain.GroupConf
	err := s.store.View(func(tx *storage.Tx) error {
		var err error
		conf, err = tx.Conf()
		return err
	})
	return conf, err
}

// State returns the bookkeeping counters.
func (s *Service) State() (domain.GroupState, error) {
	var state domain.GroupState
	err := s.store.View(func(tx *storage.Tx) error {
		var err error
		state, err = tx.State()
		return err
	})
	return state, err
}

// Custodians returns the current custodian set in account order.
func (s *Service) Custodians() ([]domain.Custodian, error) {
	var custs []domain.Custodian
	err := s.store.View(func(tx *storage.Tx) error {
		var err error
		custs, err = tx.Custodians()
		return err
	})
	return custs, err
}

// Authority returns the recorded signing policy for level, either
// "active" or "owner".
func (s *Service) Authority(level string) (domain.Authority, error) {
	var authority domain.Authority
	err := s.store.View(func(tx *storage.Tx) error {
		var err error
		authority, err = tx.Authority(level)
		if err == storage.ErrNotFound {
			return domain.NotFoundf("no %s authority recorded yet", level)
		}
		return err
	})
	return authority, err
}
