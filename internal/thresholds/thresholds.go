// Package thresholds is the threshold-resolution registry: named
// approval-weight requirements plus links from (target, action) pairs
// to threshold names, with wildcard precedence.
package thresholds

import (
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/storage"
)

// Upsert inserts, updates or deletes a threshold definition inside the
// caller's transaction. Privileged callers may touch the reserved
// "default" threshold; nobody may delete it or drive it non-positive,
// and a linked threshold can never move across -1.
func Upsert(tx *storage.Tx, name domain.Account, value int8, remove, privileged bool) error {
	existing, err := tx.Threshold(name)
	found := err == nil
	if err != nil && err != storage.ErrNotFound {
		return err
	}

	linked, err := tx.ThresholdLinked(name)
	if err != nil {
		return err
	}

	if remove {
		if linked {
			return domain.Conflictf("can't remove a threshold that is linked, remove all links first")
		}
		if !found {
			return domain.NotFoundf("threshold %s does not exist", name)
		}
		if name == domain.DefaultThresholdName {
			return domain.Conflictf("can't delete the default threshold")
		}
		return tx.DeleteThreshold(name)
	}

	if linked {
		if existing.Value == -1 {
			return domain.Policyf("can't change the value of threshold %s while it is negative and linked", name)
		}
		if value == -1 {
			return domain.Policyf("can't set the value of linked threshold %s to negative", name)
		}
	}
	if !privileged && name == domain.DefaultThresholdName {
		return domain.Authorizationf("can't manipulate the default threshold")
	}
	if value < -1 {
		return domain.Validationf("threshold value can't be less than -1")
	}
	if !name.Valid() {
		return domain.Validationf("invalid threshold name %q", name)
	}
	if found && name == domain.DefaultThresholdName && value <= 0 {
		return domain.Policyf("default threshold must be greater than zero")
	}
	return tx.PutThreshold(domain.ThresholdDef{Name: name, Value: value})
}

// Value resolves a threshold name to its current value, falling back
// to the "default" definition when the name is missing.
func Value(tx *storage.Tx, name domain.Account) (int8, error) {
	def, err := tx.Threshold(name)
	if err == storage.ErrNotFound {
		if name == domain.DefaultThresholdName {
			return 0, domain.NotFoundf("default threshold is not defined yet")
		}
		return Value(tx, domain.DefaultThresholdName)
	}
	if err != nil {
		return 0, err
	}
	return def.Value, nil
}

// Resolve applies the wildcard precedence for a (target, action) pair:
// exact match, then wildcard target, then wildcard action, then the
// "default" threshold.
func Resolve(tx *storage.Tx, target, action domain.Account) (domain.Account, int8, error) {
	candidates := [][2]domain.Account{
		{target, action},
		{domain.Wildcard, action},
		{target, domain.Wildcard},
	}
	for _, pair := range candidates {
		link, err := tx.Link(pair[0], pair[1])
		if err == storage.ErrNotFound {
			continue
		}
		if err != nil {
			return "", 0, err
		}
		value, err := Value(tx, link.Threshold)
		if err != nil {
			return "", 0, err
		}
		return link.Threshold, value, nil
	}
	value, err := Value(tx, domain.DefaultThresholdName)
	if err != nil {
		return "", 0, err
	}
	return domain.DefaultThresholdName, value, nil
}

// IsLinked reports whether any link references the threshold name.
func IsLinked(tx *storage.Tx, name domain.Account) (bool, error) {
	return tx.ThresholdLinked(name)
}
