package thresholds

import (
	"github.com/Daclify/daclifycore/internal/auth"
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/storage"
)

// ManThresholdInput is the manthreshold operation payload.
type ManThresholdInput struct {
	Name   domain.Account `json:"threshold_name"`
	Value  int8           `json:"threshold"`
	Remove bool           `json:"remove"`
}

// ManThreshLinkInput is the manthreshlin operation payload. Empty
// target or action is the wildcard slot.
type ManThreshLinkInput struct {
	Target    domain.Account `json:"target"`
	Action    domain.Account `json:"action_name"`
	Threshold domain.Account `json:"threshold_name"`
	Remove    bool           `json:"remove"`
}

// Service exposes the threshold management entry points.
type Service struct {
	store *storage.Store
	dir   domain.Directory
}

// NewService builds the threshold registry service.
func NewService(store *storage.Store, dir domain.Directory) *Service {
	if dir == nil {
		dir = domain.OpenDirectory{}
	}
	return &Service{store: store, dir: dir}
}

// ManThreshold manages a named threshold. Caller must hold group
// authority; the reserved "default" name stays out of reach.
func (s *Service) ManThreshold(caller auth.Caller, in ManThresholdInput) error {
	if err := auth.RequireGroup(caller); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return Upsert(tx, in.Name, in.Value, in.Remove, false)
	})
}

// ManThreshLink manages the link from a (target, action) pair to a
// threshold name. Caller must hold group authority.
func (s *Service) ManThreshLink(caller auth.Caller, in ManThreshLinkInput) error {
	if err := auth.RequireGroup(caller); err != nil {
		return err
	}
	return s.store.Update(func(tx *storage.Tx) error {
		return LinkTx(tx, s.dir, in)
	})
}

// LinkTx applies a threshold-link mutation inside the caller's
// transaction.
func LinkTx(tx *storage.Tx, dir domain.Directory, in ManThreshLinkInput) error {
	if in.Target.IsWildcard() && in.Action.IsWildcard() {
		return domain.Validationf("can't wildcard both target and action")
	}
	if !in.Target.IsWildcard() && !dir.IsAccount(in.Target) {
		return domain.Validationf("target %s is not an existing account", in.Target)
	}
	if !in.Action.IsWildcard() && !in.Action.Valid() {
		return domain.Validationf("invalid action name %q", in.Action)
	}
	if in.Threshold.IsWildcard() {
		return domain.Validationf("threshold name can't be empty")
	}
	if in.Threshold == domain.DefaultThresholdName {
		return domain.Policyf("default threshold can't be assigned")
	}
	if _, err := tx.Threshold(in.Threshold); err == storage.ErrNotFound {
		return domain.NotFoundf("threshold %s doesn't exist, create it first", in.Threshold)
	} else if err != nil {
		return err
	}

	_, err := tx.Link(in.Target, in.Action)
	switch {
	case err == storage.ErrNotFound && in.Remove:
		return domain.NotFoundf("can't remove a non existing threshold link")
	case err == storage.ErrNotFound:
		return tx.PutLink(domain.ThresholdLink{Target: in.Target, Action: in.Action, Threshold: in.Threshold})
	case err != nil:
		return err
	case in.Remove:
		return tx.DeleteLink(in.Target, in.Action)
	default:
		return tx.PutLink(domain.ThresholdLink{Target: in.Target, Action: in.Action, Threshold: in.Threshold})
	}
}
