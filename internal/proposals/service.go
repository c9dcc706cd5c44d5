package proposals

import (
	"fmt"
	"time"

	"github.com/Daclify/daclifycore/internal/auth"
	"github.com/Daclify/daclifycore/internal/custodians"
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/hooks"
	"github.com/Daclify/daclifycore/internal/storage"
	"github.com/Daclify/daclifycore/internal/thresholds"
)

// ProposeInput submits a new proposal. TrxID is the request
// fingerprint stamped by the transport, not client data.
type ProposeInput struct {
	Proposer    domain.Account  `json:"proposer"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Actions     []domain.Action `json:"actions"`
	Expiration  time.Time       `json:"expiration"`
	TrxID       string          `json:"-"`
}

// ApproveInput records a vote on an open proposal.
type ApproveInput struct {
	Approver domain.Account `json:"approver"`
	ID       uint64         `json:"id"`
}

// UnapproveInput retracts a vote from an open proposal.
type UnapproveInput struct {
	Unapprover domain.Account `json:"unapprover"`
	ID         uint64         `json:"id"`
}

// CancelInput withdraws an open proposal.
type CancelInput struct {
	Canceler domain.Account `json:"canceler"`
	ID       uint64         `json:"id"`
}

// ExecInput settles an open proposal by executing its actions.
type ExecInput struct {
	Executer domain.Account `json:"executer"`
	ID       uint64         `json:"id"`
}

// TruncateInput prunes a settled-proposal archive scope.
type TruncateInput struct {
	Outcome   string `json:"archive_type"`
	BatchSize int    `json:"batch_size"`
}

// Service runs the proposal lifecycle, each operation as one store
// transaction.
type Service struct {
	store      *storage.Store
	group      domain.Account
	dispatcher ActionDispatcher
	hub        Hub
	hooks      *hooks.Dispatcher
	clock      func() time.Time
}

func NewService(store *storage.Store, group domain.Account, dispatcher ActionDispatcher, hub Hub, hooks *hooks.Dispatcher, clock func() time.Time) *Service {
	if hub == nil {
		hub = NopHub{}
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, group: group, dispatcher: dispatcher, hub: hub, hooks: hooks, clock: clock}
}

// Propose validates and persists a new proposal. Every action must
// resolve to a non-negative threshold; the highest resolved value
// becomes the proposal's required threshold, with the earliest action
// winning ties. When the whole proposal resolves to zero and the
// group allows it, the actions execute on the spot and nothing is
// persisted.
func (s *Service) Propose(caller auth.Caller, in ProposeInput) error {
	if err := auth.Require(caller, in.Proposer); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.ProposeTx(tx, in, s.clock())
	})
}

func (s *Service) ProposeTx(tx *storage.Tx, in ProposeInput, now time.Time) error {
	conf, err := tx.Conf()
	if err != nil {
		return err
	}
	if in.Proposer != s.group {
		if err := custodians.RequireAlive(tx, conf, in.Proposer, now); err != nil {
			return err
		}
	}
	if len(in.Actions) == 0 {
		return domain.Policyf("a proposal needs at least one action")
	}
	if len(in.Actions) > domain.MaxProposalActions {
		return domain.Policyf("a proposal can hold at most %d actions", domain.MaxProposalActions)
	}

	var (
		required     domain.Account
		requiredHigh int8 = -1
	)
	for _, action := range in.Actions {
		if !action.Target.Valid() || !action.Name.Valid() {
			return domain.Validationf("invalid action target or name")
		}
		if action.Target == s.group && action.Name == "propose" {
			return domain.Policyf("a proposal can't propose proposals")
		}
		name, value, err := thresholds.Resolve(tx, action.Target, action.Name)
		if err != nil {
			return err
		}
		if value < 0 {
			return domain.Policyf("action %s::%s is blocked", action.Target, action.Name)
		}
		if value > requiredHigh {
			required = name
			requiredHigh = value
		}
	}

	if requiredHigh == 0 && conf.ExecOnThresholdZero {
		for _, action := range in.Actions {
			if err := s.dispatcher.Dispatch(tx, action); err != nil {
				return err
			}
		}
		return nil
	}

	if !in.Expiration.After(now) {
		return domain.Policyf("expiration must be in the future")
	}
	if in.Expiration.Sub(now) < conf.MinProposalExpiration {
		return domain.Policyf("expiration must be at least %s away", conf.MinProposalExpiration)
	}

	id, err := tx.NextProposalID()
	if err != nil {
		return err
	}
	prop := domain.Proposal{
		ID:                id,
		Proposer:          in.Proposer,
		Title:             in.Title,
		Description:       in.Description,
		Actions:           in.Actions,
		Submitted:         now,
		Expiration:        in.Expiration,
		RequiredThreshold: required,
		LastActor:         in.Proposer,
		TrxID:             in.TrxID,
	}
	if in.Proposer != s.group {
		prop.Approvals = []domain.Account{in.Proposer}
	}
	if err := tx.PutProposal(prop); err != nil {
		return err
	}
	if !conf.HubAccount.IsWildcard() {
		if err := s.hub.Notify(conf.HubAccount, fmt.Sprintf("New proposal #%d by %s: %s", id, in.Proposer, in.Title)); err != nil {
			return err
		}
	}
	return s.hooks.Fire(tx, "propose")
}

// Approve records an approval vote. The approval set is pruned of
// entries that are no longer custodians while it is rebuilt, so stale
// votes never linger past the next ballot.
func (s *Service) Approve(caller auth.Caller, in ApproveInput) error {
	if err := auth.Require(caller, in.Approver); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.ApproveTx(tx, in, s.clock())
	})
}

func (s *Service) ApproveTx(tx *storage.Tx, in ApproveInput, now time.Time) error {
	conf, err := tx.Conf()
	if err != nil {
		return err
	}
	if err := custodians.RequireAlive(tx, conf, in.Approver, now); err != nil {
		return err
	}
	prop, err := tx.Proposal(in.ID)
	if err == storage.ErrNotFound {
		return domain.NotFoundf("proposal %d doesn't exist", in.ID)
	} else if err != nil {
		return err
	}
	next := []domain.Account{in.Approver}
	for _, approver := range prop.Approvals {
		if approver == in.Approver {
			return domain.Conflictf("%s already approved proposal %d", in.Approver, in.ID)
		}
		ok, err := custodians.IsCustodian(tx, approver)
		if err != nil {
			return err
		}
		if ok {
			next = append(next, approver)
		}
	}
	prop.Approvals = next
	prop.LastActor = in.Approver
	if err := tx.PutProposal(prop); err != nil {
		return err
	}
	return s.hooks.Fire(tx, "approve")
}

// Unapprove retracts a previously recorded approval.
func (s *Service) Unapprove(caller auth.Caller, in UnapproveInput) error {
	if err := auth.Require(caller, in.Unapprover); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.UnapproveTx(tx, in, s.clock())
	})
}

func (s *Service) UnapproveTx(tx *storage.Tx, in UnapproveInput, now time.Time) error {
	conf, err := tx.Conf()
	if err != nil {
		return err
	}
	if err := custodians.RequireAlive(tx, conf, in.Unapprover, now); err != nil {
		return err
	}
	prop, err := tx.Proposal(in.ID)
	if err == storage.ErrNotFound {
		return domain.NotFoundf("proposal %d doesn't exist", in.ID)
	} else if err != nil {
		return err
	}
	if !hasApproval(prop, in.Unapprover) {
		return domain.Conflictf("%s is not in the list of approvals", in.Unapprover)
	}
	var next []domain.Account
	for _, approver := range prop.Approvals {
		if approver == in.Unapprover {
			continue
		}
		ok, err := custodians.IsCustodian(tx, approver)
		if err != nil {
			return err
		}
		if ok {
			next = append(next, approver)
		}
	}
	prop.Approvals = next
	prop.LastActor = in.Unapprover
	if err := tx.PutProposal(prop); err != nil {
		return err
	}
	return s.hooks.Fire(tx, "unapprove")
}

// Cancel withdraws an open proposal. Only the proposer may cancel
// their own proposal; group authority may cancel anything.
func (s *Service) Cancel(caller auth.Caller, in CancelInput) error {
	if err := auth.Require(caller, in.Canceler); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.CancelTx(tx, caller, in, s.clock())
	})
}

func (s *Service) CancelTx(tx *storage.Tx, caller auth.Caller, in CancelInput, now time.Time) error {
	prop, err := tx.Proposal(in.ID)
	if err == storage.ErrNotFound {
		return domain.NotFoundf("proposal %d doesn't exist", in.ID)
	} else if err != nil {
		return err
	}
	canceler := in.Canceler
	if caller.GroupAuthority {
		canceler = s.group
	} else if in.Canceler != prop.Proposer {
		return domain.Authorizationf("only the proposer or the group may cancel proposal %d", in.ID)
	}
	conf, err := tx.Conf()
	if err != nil {
		return err
	}
	prop.LastActor = canceler
	if err := archive(tx, domain.OutcomeCancelled, prop, conf); err != nil {
		return err
	}
	if err := custodians.TouchIfCustodian(tx, canceler, now); err != nil {
		return err
	}
	return s.hooks.Fire(tx, "cancel")
}

// Exec settles an open proposal: the live weight behind its approvals
// must meet the proposal's required threshold at its current value,
// then the actions run in order under group authority.
func (s *Service) Exec(caller auth.Caller, in ExecInput) error {
	if err := auth.Require(caller, in.Executer); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.ExecTx(tx, in, s.clock())
	})
}

func (s *Service) ExecTx(tx *storage.Tx, in ExecInput, now time.Time) error {
	prop, err := tx.Proposal(in.ID)
	if err == storage.ErrNotFound {
		return domain.NotFoundf("proposal %d doesn't exist", in.ID)
	} else if err != nil {
		return err
	}
	if !now.Before(prop.Expiration) {
		return domain.Policyf("proposal %d has expired", in.ID)
	}
	weight, err := custodians.SumApprovedWeight(tx, prop.Approvals)
	if err != nil {
		return err
	}
	required, err := thresholds.Value(tx, prop.RequiredThreshold)
	if err != nil {
		return err
	}
	if weight < int(required) {
		return domain.Policyf("not enough vote weight for proposal %d, have %d of %d", in.ID, weight, required)
	}
	for _, action := range prop.Actions {
		if err := s.dispatcher.Dispatch(tx, action); err != nil {
			return err
		}
	}
	conf, err := tx.Conf()
	if err != nil {
		return err
	}
	prop.LastActor = in.Executer
	if err := archive(tx, domain.OutcomeExecuted, prop, conf); err != nil {
		return err
	}
	if err := custodians.TouchIfCustodian(tx, in.Executer, now); err != nil {
		return err
	}
	return s.hooks.Fire(tx, "exec")
}

// TruncateHistory prunes up to BatchSize oldest entries from one
// archive scope under group authority.
func (s *Service) TruncateHistory(caller auth.Caller, in TruncateInput) error {
	if err := auth.RequireGroup(caller); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return s.TruncateHistoryTx(tx, in)
	})
}

func (s *Service) TruncateHistoryTx(tx *storage.Tx, in TruncateInput) error {
	if in.Outcome != domain.OutcomeExecuted && in.Outcome != domain.OutcomeCancelled {
		return domain.Validationf("unknown archive scope %q", in.Outcome)
	}
	if in.BatchSize <= 0 {
		return domain.Validationf("batch size must be positive")
	}
	count, err := tx.ArchiveCount(in.Outcome)
	if err != nil {
		return err
	}
	if count == 0 {
		return domain.NotFoundf("archive scope %s is empty", in.Outcome)
	}
	if _, err := tx.EvictOldestArchive(in.Outcome, in.BatchSize); err != nil {
		return err
	}
	return s.hooks.Fire(tx, "trunchistory")
}

// Open lists the open proposals in id order.
func (s *Service) Open() ([]domain.Proposal, error) {
	var props []domain.Proposal
	err := s.store.View(func(tx *storage.Tx) error {
		var err error
		props, err = tx.Proposals()
		return err
	})
	return props, err
}

// Archived lists one outcome's retained proposals, oldest first.
func (s *Service) Archived(outcome string) ([]domain.Proposal, error) {
	var props []domain.Proposal
	err := s.store.View(func(tx *storage.Tx) error {
		var err error
		props, err = tx.Archived(outcome)
		return err
	})
	return props, err
}
