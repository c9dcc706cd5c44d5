package custodians

import (
	"testing"
	"time"

	"github.com/Daclify/daclifycore/internal/auth"
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/storage"
	"github.com/Daclify/daclifycore/internal/testutil/storetest"
	"github.com/Daclify/daclifycore/internal/testutil/testlog"
	"github.com/Daclify/daclifycore/internal/thresholds"
)

const groupName domain.Account = "mygroup"

var groupCaller = auth.Caller{Account: groupName, GroupAuthority: true}

func newTestService(t *testing.T, now time.Time) (*Service, *storage.Store) {
	t.Helper()
	store := storetest.Open(t)
	svc := NewService(store, groupName, nil, nil, func() time.Time { return now })
	return svc, store
}

func seedCustodians(t *testing.T, store *storage.Store, custs ...domain.Custodian) {
	t.Helper()
	storetest.Seed(t, store, func(tx *storage.Tx) error {
		for _, cust := range custs {
			if err := tx.PutCustodian(cust); err != nil {
				return err
			}
		}
		return tx.SetState(domain.GroupState{CustodianCount: uint8(len(custs))})
	})
}

func TestIsAlive(t *testing.T) {
	testlog.Start(t)
	now := time.Now()
	noWindow := domain.GroupConf{InactivateCustAfter: 0}
	hourWindow := domain.GroupConf{InactivateCustAfter: time.Hour}

	cases := []struct {
		name       string
		conf       domain.GroupConf
		lastActive time.Time
		want       bool
	}{
		{"no window, never active", noWindow, time.Time{}, false},
		{"no window, any proof counts", noWindow, now.Add(-1000 * time.Hour), true},
		{"window, recent proof", hourWindow, now.Add(-30 * time.Minute), true},
		{"window, stale proof", hourWindow, now.Add(-2 * time.Hour), false},
		{"window, never active", hourWindow, time.Time{}, false},
	}
	for _, tc := range cases {
		if got := IsAlive(tc.conf, tc.lastActive, now); got != tc.want {
			t.Fatalf("%s: IsAlive = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestInviteFirstCustodianBornAlive(t *testing.T) {
	testlog.Start(t)
	now := time.Now()
	svc, store := newTestService(t, now)

	if err := svc.Invite(groupCaller, InviteInput{Account: "alice"}); err != nil {
		t.Fatalf("invite: %v", err)
	}
	err := store.View(func(tx *storage.Tx) error {
		cust, err := tx.Custodian("alice")
		if err != nil {
			return err
		}
		if cust.LastActive.IsZero() {
			t.Fatalf("first custodian must be born alive")
		}
		state, err := tx.State()
		if err != nil {
			return err
		}
		if state.CustodianCount != 1 {
			t.Fatalf("custodian count = %d, want 1", state.CustodianCount)
		}
		authority, err := tx.Authority(ActiveLevel)
		if err != nil {
			return err
		}
		if authority.Threshold != 1 || len(authority.Accounts) != 1 {
			t.Fatalf("first invite must publish a single-signer policy, got %+v", authority)
		}
		value, err := thresholds.Value(tx, domain.DefaultThresholdName)
		if err != nil {
			return err
		}
		if value != 1 {
			t.Fatalf("default threshold for one signer = %d, want 1", value)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestInviteLaterCustodiansStartOnSentinel(t *testing.T) {
	testlog.Start(t)
	now := time.Now()
	svc, store := newTestService(t, now)

	if err := svc.Invite(groupCaller, InviteInput{Account: "alice"}); err != nil {
		t.Fatalf("invite alice: %v", err)
	}
	if err := svc.Invite(groupCaller, InviteInput{Account: "bob"}); err != nil {
		t.Fatalf("invite bob: %v", err)
	}
	err := store.View(func(tx *storage.Tx) error {
		bob, err := tx.Custodian("bob")
		if err != nil {
			return err
		}
		if !bob.LastActive.IsZero() {
			t.Fatalf("later custodians must start on the never-active sentinel")
		}
		// Bob has not proven liveness, so the signing policy is still
		// alice alone.
		authority, err := tx.Authority(ActiveLevel)
		if err != nil {
			return err
		}
		if len(authority.Accounts) != 1 || authority.Accounts[0].Permission.Actor != "alice" {
			t.Fatalf("policy should still be alice only, got %+v", authority)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestInviteRejections(t *testing.T) {
	testlog.Start(t)
	now := time.Now()
	svc, store := newTestService(t, now)

	if err := svc.Invite(auth.Caller{Account: "alice"}, InviteInput{Account: "bob"}); domain.KindOf(err) != domain.KindAuthorization {
		t.Fatalf("non-group invite should be rejected, got %v", err)
	}
	if err := svc.Invite(groupCaller, InviteInput{Account: groupName}); domain.KindOf(err) != domain.KindPolicyViolation {
		t.Fatalf("self invite should be a policy violation, got %v", err)
	}
	if err := svc.Invite(groupCaller, InviteInput{Account: "alice"}); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := svc.Invite(groupCaller, InviteInput{Account: "alice"}); domain.KindOf(err) != domain.KindStateConflict {
		t.Fatalf("duplicate invite should conflict, got %v", err)
	}

	storetest.Seed(t, store, func(tx *storage.Tx) error {
		return tx.PutModule(domain.ModuleLink{
			Name:     domain.ModuleElections,
			Delegate: domain.PermissionLevel{Actor: "electmod", Permission: "active"},
			Parent:   groupName,
			Enabled:  true,
		})
	})
	if err := svc.Invite(groupCaller, InviteInput{Account: "carol"}); domain.KindOf(err) != domain.KindPolicyViolation {
		t.Fatalf("invites are blocked while elections is linked, got %v", err)
	}
}

func TestRemoveLastCustodianBlocked(t *testing.T) {
	testlog.Start(t)
	now := time.Now()
	svc, _ := newTestService(t, now)

	if err := svc.Invite(groupCaller, InviteInput{Account: "alice"}); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := svc.Remove(groupCaller, RemoveInput{Account: "alice"}); domain.KindOf(err) != domain.KindStateConflict {
		t.Fatalf("removing the last custodian must be blocked, got %v", err)
	}
	if err := svc.Remove(groupCaller, RemoveInput{Account: "nobody"}); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("removing a non-custodian should be not found, got %v", err)
	}
}

func TestRemoveRefreshesAuthority(t *testing.T) {
	testlog.Start(t)
	now := time.Now()
	svc, store := newTestService(t, now)
	seedCustodians(t, store,
		domain.Custodian{Account: "alice", Authority: "active", Weight: 1, LastActive: now},
		domain.Custodian{Account: "bob", Authority: "active", Weight: 1, LastActive: now},
	)

	if err := svc.Remove(groupCaller, RemoveInput{Account: "bob"}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	err := store.View(func(tx *storage.Tx) error {
		authority, err := tx.Authority(ActiveLevel)
		if err != nil {
			return err
		}
		if len(authority.Accounts) != 1 || authority.Accounts[0].Permission.Actor != "alice" {
			t.Fatalf("policy should shrink to alice, got %+v", authority)
		}
		state, err := tx.State()
		if err != nil {
			return err
		}
		if state.CustodianCount != 1 {
			t.Fatalf("count = %d, want 1", state.CustodianCount)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestReplacePreservesExistingRecords(t *testing.T) {
	testlog.Start(t)
	now := time.Now()
	svc, store := newTestService(t, now)
	joined := now.Add(-48 * time.Hour)
	seedCustodians(t, store,
		domain.Custodian{Account: "alice", Authority: "active", Weight: 3, Joined: joined, LastActive: joined},
	)
	storetest.Seed(t, store, func(tx *storage.Tx) error {
		conf := domain.DefaultGroupConf()
		conf.MaxCustodians = 5
		if err := tx.SetConf(conf); err != nil {
			return err
		}
		return tx.PutModule(domain.ModuleLink{
			Name:     domain.ModuleElections,
			Delegate: domain.PermissionLevel{Actor: "electmod", Permission: "active"},
			Parent:   groupName,
			Enabled:  true,
		})
	})

	err := svc.Replace(auth.Caller{Account: "electmod"}, ReplaceInput{Accounts: []domain.Account{"alice", "bob"}})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	err = store.View(func(tx *storage.Tx) error {
		alice, err := tx.Custodian("alice")
		if err != nil {
			return err
		}
		if alice.Weight != 3 || !alice.Joined.Equal(joined) {
			t.Fatalf("retained custodian record must survive, got %+v", alice)
		}
		bob, err := tx.Custodian("bob")
		if err != nil {
			return err
		}
		if bob.Weight != 1 || bob.LastActive.IsZero() {
			t.Fatalf("new seat must be born alive with weight 1, got %+v", bob)
		}
		state, err := tx.State()
		if err != nil {
			return err
		}
		if state.CustodianCount != 2 {
			t.Fatalf("count = %d, want 2", state.CustodianCount)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestReplaceRejections(t *testing.T) {
	testlog.Start(t)
	now := time.Now()
	svc, store := newTestService(t, now)

	err := svc.Replace(auth.Caller{Account: "electmod"}, ReplaceInput{Accounts: []domain.Account{"a"}})
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("no elections module should be not found, got %v", err)
	}

	storetest.Seed(t, store, func(tx *storage.Tx) error {
		conf := domain.DefaultGroupConf()
		conf.MaxCustodians = 2
		if err := tx.SetConf(conf); err != nil {
			return err
		}
		return tx.PutModule(domain.ModuleLink{
			Name:     domain.ModuleElections,
			Delegate: domain.PermissionLevel{Actor: "electmod", Permission: "active"},
			Parent:   groupName,
			Enabled:  true,
		})
	})

	err = svc.Replace(auth.Caller{Account: "alice"}, ReplaceInput{Accounts: []domain.Account{"a"}})
	if domain.KindOf(err) != domain.KindAuthorization {
		t.Fatalf("only the elections delegate may replace, got %v", err)
	}
	err = svc.Replace(auth.Caller{Account: "electmod"}, ReplaceInput{})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("empty set should be invalid, got %v", err)
	}
	err = svc.Replace(auth.Caller{Account: "electmod"}, ReplaceInput{
		Accounts: []domain.Account{"alice", "bob", "carol"},
	})
	if domain.KindOf(err) != domain.KindPolicyViolation {
		t.Fatalf("exceeding max custodians should be a policy violation, got %v", err)
	}
	err = svc.Replace(auth.Caller{Account: "electmod"}, ReplaceInput{
		Accounts: []domain.Account{"alice", "alice"},
	})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("duplicate accounts should be invalid, got %v", err)
	}
}

func TestProveAliveTransitionRefreshes(t *testing.T) {
	testlog.Start(t)
	now := time.Now()
	svc, store := newTestService(t, now)
	seedCustodians(t, store,
		domain.Custodian{Account: "alice", Authority: "active", Weight: 1, LastActive: now},
		domain.Custodian{Account: "bob", Authority: "active", Weight: 1},
	)
	storetest.Seed(t, store, func(tx *storage.Tx) error {
		return Refresh(tx, domain.DefaultGroupConf(), now)
	})

	if err := svc.ProveAlive(auth.Caller{Account: "carol"}, ProveAliveInput{Account: "carol"}); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("non-custodian proof should be not found, got %v", err)
	}
	if err := svc.ProveAlive(auth.Caller{Account: "alice"}, ProveAliveInput{Account: "bob"}); domain.KindOf(err) != domain.KindAuthorization {
		t.Fatalf("proof must come from the custodian itself, got %v", err)
	}

	if err := svc.ProveAlive(auth.Caller{Account: "bob"}, ProveAliveInput{Account: "bob"}); err != nil {
		t.Fatalf("prove alive: %v", err)
	}
	err := store.View(func(tx *storage.Tx) error {
		authority, err := tx.Authority(ActiveLevel)
		if err != nil {
			return err
		}
		if len(authority.Accounts) != 2 {
			t.Fatalf("bob's first proof must widen the policy, got %+v", authority)
		}
		value, err := thresholds.Value(tx, domain.DefaultThresholdName)
		if err != nil {
			return err
		}
		if value != 2 {
			t.Fatalf("default threshold for two signers = %d, want 2", value)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestRefreshFallsBackToFullSet(t *testing.T) {
	testlog.Start(t)
	now := time.Now()
	store := storetest.Open(t)
	// Nobody alive: the whole set signs so the account is not bricked.
	seedCustodians(t, store,
		domain.Custodian{Account: "alice", Authority: "active", Weight: 1},
		domain.Custodian{Account: "bob", Authority: "active", Weight: 1},
	)
	storetest.Seed(t, store, func(tx *storage.Tx) error {
		return Refresh(tx, domain.DefaultGroupConf(), now)
	})
	err := store.View(func(tx *storage.Tx) error {
		authority, err := tx.Authority(ActiveLevel)
		if err != nil {
			return err
		}
		if len(authority.Accounts) != 2 || authority.Threshold != 2 {
			t.Fatalf("dead set must fall back to everyone, got %+v", authority)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestDefaultThresholdFormula(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		signers int
		want    int8
	}{
		{1, 1}, {2, 2}, {3, 2}, {4, 4}, {5, 4}, {10, 8}, {15, 12},
		// Saturates at the top of the value domain instead of wrapping.
		{158, 127}, {159, 127}, {255, 127},
	}
	for _, tc := range cases {
		if got := defaultThreshold(tc.signers); got != tc.want {
			t.Fatalf("defaultThreshold(%d) = %d, want %d", tc.signers, got, tc.want)
		}
	}
}

func TestRefreshMaintainerBuildsOwnerPolicy(t *testing.T) {
	testlog.Start(t)
	store := storetest.Open(t)
	storetest.Seed(t, store, func(tx *storage.Tx) error {
		return RefreshMaintainer(tx, groupName,
			domain.PermissionLevel{Actor: "maintainer1", Permission: "active"}, domain.OpenDirectory{})
	})
	err := store.View(func(tx *storage.Tx) error {
		authority, err := tx.Authority(OwnerLevel)
		if err != nil {
			return err
		}
		if authority.Threshold != 1 || len(authority.Accounts) != 3 {
			t.Fatalf("owner policy should hold 3 one-of entries, got %+v", authority)
		}
		for i := 1; i < len(authority.Accounts); i++ {
			prev, cur := authority.Accounts[i-1].Permission, authority.Accounts[i].Permission
			if prev.Actor > cur.Actor {
				t.Fatalf("owner entries must be sorted by actor, got %+v", authority.Accounts)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestSumApprovedWeightSkipsStaleEntries(t *testing.T) {
	testlog.Start(t)
	store := storetest.Open(t)
	seedCustodians(t, store,
		domain.Custodian{Account: "alice", Authority: "active", Weight: 2},
		domain.Custodian{Account: "bob", Authority: "active", Weight: 1},
	)
	err := store.View(func(tx *storage.Tx) error {
		total, err := SumApprovedWeight(tx, []domain.Account{"alice", "bob", "gone"})
		if err != nil {
			return err
		}
		if total != 3 {
			t.Fatalf("weight = %d, want 3 (stale entry contributes nothing)", total)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
