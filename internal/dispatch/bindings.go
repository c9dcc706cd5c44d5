package dispatch

import (
	"encoding/json"
	"time"

	"github.com/Daclify/daclifycore/internal/custodians"
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/group"
	"github.com/Daclify/daclifycore/internal/ledger"
	"github.com/Daclify/daclifycore/internal/members"
	"github.com/Daclify/daclifycore/internal/modules"
	"github.com/Daclify/daclifycore/internal/proposals"
	"github.com/Daclify/daclifycore/internal/storage"
	"github.com/Daclify/daclifycore/internal/thresholds"
)

// Services collects the transaction-level handlers a proposal may
// target on the governed account.
type Services struct {
	Group      *group.Service
	Custodians *custodians.Service
	Members    *members.Service
	Ledger     *ledger.Service
	Modules    *modules.Service
	Proposals  *proposals.Service
	Directory  domain.Directory
}

// Bind registers the privileged operation set. Threshold management
// stays unprivileged here on purpose: even an executed proposal may
// not touch the reserved default threshold directly.
func Bind(r *Registry, svc Services) {
	dir := svc.Directory
	if dir == nil {
		dir = domain.OpenDirectory{}
	}

	r.Register("invitecust", func(tx *storage.Tx, payload json.RawMessage, now time.Time) error {
		var in custodians.InviteInput
		if err := decode(payload, &in); err != nil {
			return err
		}
		return svc.Custodians.InviteTx(tx, in, now)
	})
	r.Register("removecust", func(tx *storage.Tx, payload json.RawMessage, now time.Time) error {
		var in custodians.RemoveInput
		if err := decode(payload, &in); err != nil {
			return err
		}
		return svc.Custodians.RemoveTx(tx, in, now)
	})
	r.Register("manthreshold", func(tx *storage.Tx, payload json.RawMessage, _ time.Time) error {
		var in thresholds.ManThresholdInput
		if err := decode(payload, &in); err != nil {
			return err
		}
		return thresholds.Upsert(tx, in.Name, in.Value, in.Remove, false)
	})
	r.Register("manthreshlin", func(tx *storage.Tx, payload json.RawMessage, _ time.Time) error {
		var in thresholds.ManThreshLinkInput
		if err := decode(payload, &in); err != nil {
			return err
		}
		return thresholds.LinkTx(tx, dir, in)
	})
	r.Register("updateconf", func(tx *storage.Tx, payload json.RawMessage, _ time.Time) error {
		var in group.UpdateConfInput
		if err := decode(payload, &in); err != nil {
			return err
		}
		return svc.Group.UpdateConfTx(tx, in)
	})
	r.Register("offchain", func(tx *storage.Tx, payload json.RawMessage, _ time.Time) error {
		var in group.OffchainInput
		if err := decode(payload, &in); err != nil {
			return err
		}
		return svc.Group.OffchainTx(tx, in)
	})
	r.Register("trunchistory", func(tx *storage.Tx, payload json.RawMessage, _ time.Time) error {
		var in proposals.TruncateInput
		if err := decode(payload, &in); err != nil {
			return err
		}
		return svc.Proposals.TruncateHistoryTx(tx, in)
	})
	r.Register("regmember", func(tx *storage.Tx, payload json.RawMessage, now time.Time) error {
		var in members.RegisterInput
		if err := decode(payload, &in); err != nil {
			return err
		}
		return svc.Members.RegisterTx(tx, in, now)
	})
	r.Register("unregmember", func(tx *storage.Tx, payload json.RawMessage, _ time.Time) error {
		var in members.UnregisterInput
		if err := decode(payload, &in); err != nil {
			return err
		}
		return svc.Members.UnregisterTx(tx, in)
	})
	r.Register("internalxfr", func(tx *storage.Tx, payload json.RawMessage, _ time.Time) error {
		var in ledger.TransferInput
		if err := decode(payload, &in); err != nil {
			return err
		}
		return svc.Ledger.InternalTransferTx(tx, in)
	})
	r.Register("widthdraw", func(tx *storage.Tx, payload json.RawMessage, _ time.Time) error {
		var in ledger.WithdrawInput
		if err := decode(payload, &in); err != nil {
			return err
		}
		return svc.Ledger.WithdrawTx(tx, in)
	})
	r.Register("clearbals", func(tx *storage.Tx, payload json.RawMessage, _ time.Time) error {
		var in ledger.ClearInput
		if err := decode(payload, &in); err != nil {
			return err
		}
		return svc.Ledger.ClearBalancesTx(tx, in)
	})
	r.Register("linkmodule", func(tx *storage.Tx, payload json.RawMessage, _ time.Time) error {
		var in modules.LinkInput
		if err := decode(payload, &in); err != nil {
			return err
		}
		return svc.Modules.LinkTx(tx, in)
	})
	r.Register("unlinkmodule", func(tx *storage.Tx, payload json.RawMessage, _ time.Time) error {
		var in modules.UnlinkInput
		if err := decode(payload, &in); err != nil {
			return err
		}
		return svc.Modules.UnlinkTx(tx, in)
	})
}
