// Package proposals runs the threshold-governed proposal lifecycle:
// submission, approval voting, cancellation, execution and the
// bounded per-outcome archive.
package proposals

import (
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/storage"
)

// ActionDispatcher executes a proposal's actions with group authority
// inside the caller's transaction, so a failing action unwinds the
// whole execution.
type ActionDispatcher interface {
	Dispatch(tx *storage.Tx, action domain.Action) error
}

// Hub posts human-readable group events to the configured hub account.
type Hub interface {
	Notify(hub domain.Account, message string) error
}

// NopHub drops hub events, for tests and hubless nodes.
type NopHub struct{}

func (NopHub) Notify(domain.Account, string) error { return nil }

// archive moves a settled proposal into its outcome scope and always
// removes it from the open table. With a zero archive depth nothing is
// retained; otherwise the oldest entry in the scope makes room first.
func archive(tx *storage.Tx, outcome string, prop domain.Proposal, conf domain.GroupConf) error {
	if conf.ProposalArchiveSize > 0 {
		count, err := tx.ArchiveCount(outcome)
		if err != nil {
			return err
		}
		if count >= int(conf.ProposalArchiveSize) {
			if _, err := tx.EvictOldestArchive(outcome, 1); err != nil {
				return err
			}
		}
		if err := tx.AppendArchive(outcome, prop); err != nil {
			return err
		}
	}
	return tx.DeleteProposal(prop.ID)
}

func hasApproval(prop domain.Proposal, account domain.Account) bool {
	for _, approver := range prop.Approvals {
		if approver == account {
			return true
		}
	}
	return false
}
