// Package members is the opt-in membership registry that gates the
// internal ledger's user-scoped flows.
package members

import (
	"time"

	"github.com/Daclify/daclifycore/internal/auth"
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/hooks"
	"github.com/Daclify/daclifycore/internal/storage"
)

// RegisterInput names the account joining the group.
type RegisterInput struct {
	Account domain.Account `json:"actor"`
}

// UnregisterInput names the account leaving the group.
type UnregisterInput struct {
	Account domain.Account `json:"actor"`
}

// IsMember reports whether account may use member-scoped flows. The
// group account itself always counts; the wildcard never does.
func IsMember(tx *storage.Tx, group, account domain.Account) (bool, error) {
	if account.IsWildcard() {
		return false, nil
	}
	if account == group {
		return true, nil
	}
	_, err := tx.Member(account)
	if err == storage.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Service executes membership operations.
type Service struct {
	store *storage.Store
	group domain.Account
	dir   domain.Directory
	hooks *hooks.Dispatcher
	clock func() time.Time
}

func NewService(store *storage.Store, group domain.Account, dir domain.Directory, hooks *hooks.Dispatcher, clock func() time.Time) *Service {
	if dir == nil {
		dir = domain.OpenDirectory{}
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, group: group, dir: dir, hooks: hooks, clock: clock}
}

// Register enrolls the caller as a member, subject to the registration
// toggle in the group configuration.
func (s *Service) Register(caller auth.Caller, in RegisterInput) error {
	if err := auth.Require(caller, in.Account); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.RegisterTx(tx, in, s.clock())
	})
}

func (s *Service) RegisterTx(tx *storage.Tx, in RegisterInput, now time.Time) error {
	conf, err := tx.Conf()
	if err != nil {
		return err
	}
	if !conf.MemberRegistration {
		return domain.Policyf("member registration is disabled")
	}
	if in.Account == s.group {
		return domain.Policyf("the group account can't register as a member")
	}
	if !s.dir.IsAccount(in.Account) {
		return domain.Validationf("account %q doesn't exist", in.Account)
	}
	if _, err := tx.Member(in.Account); err == nil {
		return domain.Conflictf("account %s is already a member", in.Account)
	} else if err != storage.ErrNotFound {
		return err
	}
	if err := tx.PutMember(domain.Member{Account: in.Account, Since: now}); err != nil {
		return err
	}
	state, err := tx.State()
	if err != nil {
		return err
	}
	state.MemberCount++
	if err := tx.SetState(state); err != nil {
		return err
	}
	return s.hooks.Fire(tx, "regmember")
}

// Unregister removes the caller's membership. A member holding an
// internal balance must withdraw before leaving, otherwise the funds
// would be stranded.
func (s *Service) Unregister(caller auth.Caller, in UnregisterInput) error {
	if err := auth.Require(caller, in.Account); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.UnregisterTx(tx, in)
	})
}

func (s *Service) UnregisterTx(tx *storage.Tx, in UnregisterInput) error {
	has, err := tx.HasBalances(in.Account)
	if err != nil {
		return err
	}
	if has {
		return domain.Conflictf("account %s still holds an internal balance, withdraw first", in.Account)
	}
	if _, err := tx.Member(in.Account); err == storage.ErrNotFound {
		return domain.NotFoundf("account %s is not a member", in.Account)
	} else if err != nil {
		return err
	}
	if err := tx.DeleteMember(in.Account); err != nil {
		return err
	}
	state, err := tx.State()
	if err != nil {
		return err
	}
	if state.MemberCount > 0 {
		state.MemberCount--
	}
	if err := tx.SetState(state); err != nil {
		return err
	}
	return s.hooks.Fire(tx, "unregmember")
}
