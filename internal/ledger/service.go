package ledger

import (
	"strings"

	"github.com/Daclify/daclifycore/internal/auth"
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/hooks"
	"github.com/Daclify/daclifycore/internal/members"
	"github.com/Daclify/daclifycore/internal/storage"
)

// Inbound transfers carrying this memo prefix are credited to the user
// account named right after it; anything else lands in the group's own
// scope. Outbound transfers carrying the withdraw memo are debited
// from the receiver's user scope.
const (
	DepositMemoPrefix = "add to user account: "
	WithdrawMemo      = "withdraw from user account"
)

// TokenGateway emits an outbound token transfer on the hosting
// environment.
type TokenGateway interface {
	Transfer(from, to domain.Account, amount domain.Asset, memo string) error
}

// NopGateway drops outbound transfers, for tests and dry runs.
type NopGateway struct{}

func (NopGateway) Transfer(domain.Account, domain.Account, domain.Asset, string) error { return nil }

// TransferInput moves an internal balance between two members.
type TransferInput struct {
	From   domain.Account `json:"from"`
	To     domain.Account `json:"to"`
	Amount domain.Asset   `json:"amount"`
	Memo   string         `json:"memo"`
}

// WithdrawInput pays an internal balance out to its owner.
type WithdrawInput struct {
	Account domain.Account `json:"account"`
	Amount  domain.Asset   `json:"amount"`
}

// TransferNotice is an observed on-chain token transfer touching the
// group account.
type TransferNotice struct {
	From   domain.Account `json:"from"`
	To     domain.Account `json:"to"`
	Amount domain.Asset   `json:"amount"`
	Memo   string         `json:"memo"`
}

// ClearInput names the balance scope to wipe.
type ClearInput struct {
	Scope domain.Account `json:"scope"`
}

// Service executes ledger operations against the group store.
type Service struct {
	store   *storage.Store
	group   domain.Account
	gateway TokenGateway
	hooks   *hooks.Dispatcher
}

func NewService(store *storage.Store, group domain.Account, gateway TokenGateway, hooks *hooks.Dispatcher) *Service {
	if gateway == nil {
		gateway = NopGateway{}
	}
	return &Service{store: store, group: group, gateway: gateway, hooks: hooks}
}

// InternalTransfer moves value between two member scopes without
// touching the chain.
func (s *Service) InternalTransfer(caller auth.Caller, in TransferInput) error {
	if err := auth.Require(caller, in.From); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.InternalTransferTx(tx, in)
	})
}

func (s *Service) InternalTransferTx(tx *storage.Tx, in TransferInput) error {
	conf, err := tx.Conf()
	if err != nil {
		return err
	}
	if !conf.InternalTransfers {
		return domain.Policyf("internal transfers are disabled")
	}
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if in.From == in.To {
		return domain.Validationf("can't transfer to self")
	}
	for _, party := range []domain.Account{in.From, in.To} {
		ok, err := members.IsMember(tx, s.group, party)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFoundf("account %s is not a member", party)
		}
	}
	if err := Debit(tx, s.group, in.From, in.Amount); err != nil {
		return err
	}
	if err := Credit(tx, in.To, in.Amount); err != nil {
		return err
	}
	return s.hooks.Fire(tx, "internalxfr")
}

// Withdraw pays out an internal balance to its owner on the hosting
// environment. The debit itself lands when the resulting outbound
// transfer is observed back through HandleTransfer, keyed off the
// withdraw memo.
func (s *Service) Withdraw(caller auth.Caller, in WithdrawInput) error {
	if err := auth.Require(caller, in.Account); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.WithdrawTx(tx, in)
	})
}

func (s *Service) WithdrawTx(tx *storage.Tx, in WithdrawInput) error {
	conf, err := tx.Conf()
	if err != nil {
		return err
	}
	if !conf.Withdrawals {
		return domain.Policyf("withdrawals are disabled")
	}
	if in.Account == s.group {
		return domain.Policyf("the group account can't withdraw from itself")
	}
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	row, err := tx.Balance(in.Account, in.Amount.Key())
	if err == storage.ErrNotFound {
		return domain.NotFoundf("%s has no balance with this symbol and contract", in.Account)
	}
	if err != nil {
		return err
	}
	if in.Amount.Amount.GreaterThan(row.Amount) {
		return domain.Policyf("overdrawn balance, %s has %s %s", in.Account, row.Amount, row.Symbol)
	}
	if err := s.gateway.Transfer(s.group, in.Account, in.Amount, WithdrawMemo); err != nil {
		return err
	}
	return s.hooks.Fire(tx, "widthdraw")
}

// HandleTransfer routes an observed token transfer into the ledger.
// Tagged deposits credit the memo-named member and are rejected when
// the memo names nobody registered; outbound withdraws settle the
// pending member debit.
func (s *Service) HandleTransfer(notice TransferNotice) error {
	return s.store.Update(func(tx *storage.Tx) error {
		return s.HandleTransferTx(tx, notice)
	})
}

func (s *Service) HandleTransferTx(tx *storage.Tx, notice TransferNotice) error {
	if err := notice.Amount.Validate(); err != nil {
		return err
	}
	if notice.From == notice.To {
		return domain.Validationf("transfer from and to the same account")
	}

	if notice.To == s.group {
		if strings.HasPrefix(notice.Memo, DepositMemoPrefix) {
			conf, err := tx.Conf()
			if err != nil {
				return err
			}
			if !conf.Deposits {
				return domain.Policyf("deposits to user accounts are disabled")
			}
			beneficiary := memoAccount(notice.Memo)
			if !beneficiary.Valid() {
				return domain.Validationf("invalid account name in deposit memo %q", notice.Memo)
			}
			ok, err := members.IsMember(tx, s.group, beneficiary)
			if err != nil {
				return err
			}
			if !ok {
				return domain.NotFoundf("receiver %s in deposit memo is not a registered member", beneficiary)
			}
			return Credit(tx, beneficiary, notice.Amount)
		}
		return Credit(tx, s.group, notice.Amount)
	}

	if notice.From == s.group && strings.HasPrefix(notice.Memo, WithdrawMemo) {
		ok, err := members.IsMember(tx, s.group, notice.To)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFoundf("withdraw receiver %s is not a registered member", notice.To)
		}
		return Debit(tx, s.group, notice.To, notice.Amount)
	}

	if notice.From == s.group {
		return Debit(tx, s.group, s.group, notice.Amount)
	}
	return nil
}

// memoAccount extracts the beneficiary name following the deposit
// prefix, at most one full account name long. The caller validates.
func memoAccount(memo string) domain.Account {
	rest := memo[len(DepositMemoPrefix):]
	if len(rest) > domain.MaxNameLen {
		rest = rest[:domain.MaxNameLen]
	}
	return domain.Account(rest)
}

// ClearBalances wipes every balance row in a scope under group
// authority. Meant for retiring a token listing after the funds moved
// elsewhere.
func (s *Service) ClearBalances(caller auth.Caller, in ClearInput) error {
	if err := auth.RequireGroup(caller); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.ClearBalancesTx(tx, in)
	})
}

func (s *Service) ClearBalancesTx(tx *storage.Tx, in ClearInput) error {
	if err := tx.ClearBalances(in.Scope); err != nil {
		return err
	}
	return s.hooks.Fire(tx, "clearbals")
}

// Balances lists the balance rows in a scope.
func (s *Service) Balances(scope domain.Account) ([]domain.Balance, error) {
	var rows []domain.Balance
	err := s.store.View(func(tx *storage.Tx) error {
		var err error
		rows, err = tx.Balances(scope)
		return err
	})
	return rows, err
}
