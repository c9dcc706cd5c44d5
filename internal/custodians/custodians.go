// Package custodians is the weighted custodian registry and the
// authority synchronizer that keeps the governed account's live
// signing policy derived from it.
package custodians

import (
	"math"
	"sort"
	"time"

	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/storage"
	"github.com/Daclify/daclifycore/internal/thresholds"
)

// Signing policy levels recorded for the governed account.
const (
	ActiveLevel = "active"
	OwnerLevel  = "owner"
)

// CodePermission is the code-execution delegate permission kept in the
// owner policy so the engine can act for the group.
const CodePermission = "eosio.code"

// IsAlive applies the liveness formula. With the inactivity window
// disabled, a custodian is alive once it has ever proven liveness.
// With a window, only a recent enough proof counts: the never-active
// sentinel always reads as timed out on this branch.
func IsAlive(conf domain.GroupConf, lastActive, now time.Time) bool {
	if conf.InactivateCustAfter == 0 {
		return !lastActive.IsZero()
	}
	return now.Sub(lastActive) < conf.InactivateCustAfter
}

// IsCustodian reports membership without side effects.
func IsCustodian(tx *storage.Tx, account domain.Account) (bool, error) {
	_, err := tx.Custodian(account)
	if err == storage.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RequireAlive checks that account is a currently alive custodian and
// refreshes its last-active timestamp.
func RequireAlive(tx *storage.Tx, conf domain.GroupConf, account domain.Account, now time.Time) error {
	cust, err := tx.Custodian(account)
	if err == storage.ErrNotFound {
		return domain.Authorizationf("%s is not a custodian", account)
	}
	if err != nil {
		return err
	}
	if !IsAlive(conf, cust.LastActive, now) {
		return domain.Policyf("custodian %s has been inactive, prove liveness first", account)
	}
	cust.LastActive = now
	return tx.PutCustodian(cust)
}

// TouchIfCustodian refreshes the last-active timestamp when account is
// (still) a custodian; non-custodians are left alone.
func TouchIfCustodian(tx *storage.Tx, account domain.Account, now time.Time) error {
	cust, err := tx.Custodian(account)
	if err == storage.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	cust.LastActive = now
	return tx.PutCustodian(cust)
}

// SumApprovedWeight sums the current weight of every approval entry
// that is presently a custodian. Stale entries contribute zero.
func SumApprovedWeight(tx *storage.Tx, approvals []domain.Account) (int, error) {
	total := 0
	for _, approver := range approvals {
		cust, err := tx.Custodian(approver)
		if err == storage.ErrNotFound {
			continue
		}
		if err != nil {
			return 0, err
		}
		total += int(cust.Weight)
	}
	return total, nil
}

// Refresh rebuilds the governed account's active-level signing policy
// from the alive partition of the custodian set and recomputes the
// reserved "default" threshold from the signer count. When nobody is
// alive the entire set signs, so the account is never locked out.
func Refresh(tx *storage.Tx, conf domain.GroupConf, now time.Time) error {
	custs, err := tx.Custodians()
	if err != nil {
		return err
	}

	var alive, inactive []domain.AuthorityEntry
	for _, cust := range custs {
		entry := domain.AuthorityEntry{
			Permission: domain.PermissionLevel{Actor: cust.Account, Permission: cust.Authority},
			Weight:     1,
		}
		if IsAlive(conf, cust.LastActive, now) {
			alive = append(alive, entry)
		} else {
			inactive = append(inactive, entry)
		}
	}
	signers := alive
	if len(signers) == 0 {
		signers = inactive
	}

	if err := tx.SetAuthority(ActiveLevel, domain.Authority{
		Threshold: uint32(len(signers)),
		Accounts:  signers,
	}); err != nil {
		return err
	}

	return thresholds.Upsert(tx, domain.DefaultThresholdName, defaultThreshold(len(signers)), false, true)
}

// defaultThreshold maps a signer count onto the reserved quorum
// default: 1 signer needs itself, small groups need 2, larger groups
// need 80% rounded up.
func defaultThreshold(signers int) int8 {
	switch {
	case signers <= 1:
		return 1
	case signers <= 3:
		return 2
	default:
		value := math.Ceil(float64(signers) * 0.8)
		if value > math.MaxInt8 {
			return math.MaxInt8
		}
		return int8(value)
	}
}

// RefreshMaintainer rebuilds the governed account's owner-level policy:
// any one of the account's own active key, the code-execution delegate
// and - when configured and existing - the maintainer may sign.
func RefreshMaintainer(tx *storage.Tx, group domain.Account, maintainer domain.PermissionLevel, dir domain.Directory) error {
	entries := []domain.AuthorityEntry{
		{Permission: domain.PermissionLevel{Actor: group, Permission: ActiveLevel}, Weight: 1},
		{Permission: domain.PermissionLevel{Actor: group, Permission: CodePermission}, Weight: 1},
	}
	if !maintainer.Actor.IsWildcard() && dir.IsAccount(maintainer.Actor) {
		entries = append(entries, domain.AuthorityEntry{Permission: maintainer, Weight: 1})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Permission.Actor != entries[j].Permission.Actor {
			return entries[i].Permission.Actor < entries[j].Permission.Actor
		}
		return entries[i].Permission.Permission < entries[j].Permission.Permission
	})
	return tx.SetAuthority(OwnerLevel, domain.Authority{Threshold: 1, Accounts: entries})
}
