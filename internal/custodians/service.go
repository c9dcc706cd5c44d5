package custodians

import (
	"time"

	"github.com/Daclify/daclifycore/internal/auth"
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/hooks"
	"github.com/Daclify/daclifycore/internal/storage"
)

// InviteInput names the account to seat as a custodian.
type InviteInput struct {
	Account domain.Account `json:"account"`
}

// RemoveInput names the custodian to unseat.
type RemoveInput struct {
	Account domain.Account `json:"account"`
}

// ReplaceInput carries the full replacement custodian set pushed by the
// elections module.
type ReplaceInput struct {
	Accounts []domain.Account `json:"accounts"`
}

// ProveAliveInput names the custodian proving liveness.
type ProveAliveInput struct {
	Account domain.Account `json:"account"`
}

// Service executes custodian registry operations, each as a single
// store transaction.
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

// Invite seats a new custodian under group authority. The first seat
// is born alive and triggers an immediate authority refresh; later
// seats start on the never-active sentinel and must prove liveness
// before they contribute to the signing policy.
func (s *Service) Invite(caller auth.Caller, in InviteInput) error {
	if err := auth.RequireGroup(caller); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.InviteTx(tx, in, s.clock())
	})
}

func (s *Service) InviteTx(tx *storage.Tx, in InviteInput, now time.Time) error {
	if in.Account == s.group {
		return domain.Policyf("the group account can't be a custodian")
	}
	if _, err := tx.Module(domain.ModuleElections); err == nil {
		return domain.Policyf("can't invite custodians while the elections module is linked")
	} else if err != storage.ErrNotFound {
		return err
	}
	if !s.dir.IsAccount(in.Account) {
		return domain.Validationf("account %q doesn't exist", in.Account)
	}
	if _, err := tx.Custodian(in.Account); err == nil {
		return domain.Conflictf("account %s is already a custodian", in.Account)
	} else if err != storage.ErrNotFound {
		return err
	}

	state, err := tx.State()
	if err != nil {
		return err
	}
	cust := domain.Custodian{
		Account:   in.Account,
		Authority: domain.DefaultCustodianAuthority,
		Weight:    1,
		Joined:    now,
	}
	if state.CustodianCount == 0 {
		cust.LastActive = now
	}
	if err := tx.PutCustodian(cust); err != nil {
		return err
	}
	state.CustodianCount++
	if err := tx.SetState(state); err != nil {
		return err
	}

	if state.CustodianCount == 1 {
		conf, err := tx.Conf()
		if err != nil {
			return err
		}
		if err := Refresh(tx, conf, now); err != nil {
			return err
		}
	}
	return s.hooks.Fire(tx, "invitecust")
}

// Remove unseats a custodian under group authority. The last remaining
// custodian can never be removed, an empty set would strand the
// account.
func (s *Service) Remove(caller auth.Caller, in RemoveInput) error {
	if err := auth.RequireGroup(caller); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.RemoveTx(tx, in, s.clock())
	})
}

func (s *Service) RemoveTx(tx *storage.Tx, in RemoveInput, now time.Time) error {
	if _, err := tx.Custodian(in.Account); err == storage.ErrNotFound {
		return domain.NotFoundf("account %s is not a custodian", in.Account)
	} else if err != nil {
		return err
	}
	state, err := tx.State()
	if err != nil {
		return err
	}
	if state.CustodianCount <= 1 {
		return domain.Conflictf("can't remove the last custodian")
	}
	if err := tx.DeleteCustodian(in.Account); err != nil {
		return err
	}
	state.CustodianCount--
	if err := tx.SetState(state); err != nil {
		return err
	}
	conf, err := tx.Conf()
	if err != nil {
		return err
	}
	if err := Refresh(tx, conf, now); err != nil {
		return err
	}
	return s.hooks.Fire(tx, "removecust")
}

// Replace swaps in a full custodian set from the elections module
// delegate. Records of retained custodians survive the swap so weight,
// seniority and liveness carry over; genuinely new seats are born
// alive.
func (s *Service) Replace(caller auth.Caller, in ReplaceInput) error {
	return s.store.Update(func(tx *storage.Tx) error {
		mod, err := tx.Module(domain.ModuleElections)
		if err == storage.ErrNotFound {
			return domain.NotFoundf("group doesn't have the elections module linked")
		} else if err != nil {
			return err
		}
		if caller.Account != mod.Delegate.Actor {
			return domain.Authorizationf("only the elections module delegate may replace the custodian set")
		}
		return s.ReplaceTx(tx, in, s.clock())
	})
}

func (s *Service) ReplaceTx(tx *storage.Tx, in ReplaceInput, now time.Time) error {
	if len(in.Accounts) == 0 {
		return domain.Validationf("empty custodian set not allowed")
	}
	conf, err := tx.Conf()
	if err != nil {
		return err
	}
	if len(in.Accounts) > int(conf.MaxCustodians) {
		return domain.Policyf("too many custodians, the limit is %d", conf.MaxCustodians)
	}

	next := make([]domain.Custodian, 0, len(in.Accounts))
	seen := make(map[domain.Account]bool, len(in.Accounts))
	for _, account := range in.Accounts {
		if seen[account] {
			return domain.Validationf("duplicate account %s in custodian set", account)
		}
		seen[account] = true
		if !s.dir.IsAccount(account) {
			return domain.Validationf("account %q doesn't exist", account)
		}
		existing, err := tx.Custodian(account)
		if err == nil {
			next = append(next, existing)
			continue
		}
		if err != storage.ErrNotFound {
			return err
		}
		next = append(next, domain.Custodian{
			Account:    account,
			Authority:  domain.DefaultCustodianAuthority,
			Weight:     1,
			Joined:     now,
			LastActive: now,
		})
	}

	if err := tx.ClearCustodians(); err != nil {
		return err
	}
	for _, cust := range next {
		if err := tx.PutCustodian(cust); err != nil {
			return err
		}
	}
	state, err := tx.State()
	if err != nil {
		return err
	}
	state.CustodianCount = uint8(len(next))
	if err := tx.SetState(state); err != nil {
		return err
	}
	if err := Refresh(tx, conf, now); err != nil {
		return err
	}
	return s.hooks.Fire(tx, "isetcusts")
}

// ProveAlive records a proof of liveness. Crossing from timed-out back
// to alive changes the signer partition, so only that transition
// triggers an authority refresh.
func (s *Service) ProveAlive(caller auth.Caller, in ProveAliveInput) error {
	if err := auth.Require(caller, in.Account); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.ProveAliveTx(tx, in, s.clock())
	})
}

func (s *Service) ProveAliveTx(tx *storage.Tx, in ProveAliveInput, now time.Time) error {
	cust, err := tx.Custodian(in.Account)
	if err == storage.ErrNotFound {
		return domain.NotFoundf("account %s is not a custodian, no proof of liveness needed", in.Account)
	} else if err != nil {
		return err
	}
	conf, err := tx.Conf()
	if err != nil {
		return err
	}
	wasAlive := IsAlive(conf, cust.LastActive, now)
	cust.LastActive = now
	if err := tx.PutCustodian(cust); err != nil {
		return err
	}
	if !wasAlive {
		if err := Refresh(tx, conf, now); err != nil {
			return err
		}
	}
	return s.hooks.Fire(tx, "imalive")
}
