package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/Daclify/daclifycore/internal/domain"
)

// Tx exposes the typed tables of one storage transaction. All reads and
// writes of a single governance call go through one Tx.
type Tx struct {
	btx *bbolt.Tx
}

func (t *Tx) bucket(name string) (*bbolt.Bucket, error) {
	b := t.btx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("bucket %s is missing", name)
	}
	return b, nil
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return b.Put(key, payload)
}

func getJSON(b *bbolt.Bucket, key []byte, v any) error {
	payload := b.Get(key)
	if payload == nil {
		return ErrNotFound
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	return nil
}

func u64Key(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

// --- configuration and counters ---

// Conf returns the group configuration record, or the defaults when no
// record has been written yet.
func (t *Tx) Conf() (domain.GroupConf, error) {
	b, err := t.bucket(bucketConf)
	if err != nil {
		return domain.GroupConf{}, err
	}
	var conf domain.GroupConf
	switch err := getJSON(b, []byte("conf"), &conf); err {
	case nil:
		return conf, nil
	case ErrNotFound:
		return domain.DefaultGroupConf(), nil
	default:
		return domain.GroupConf{}, err
	}
}

// SetConf replaces the group configuration record.
func (t *Tx) SetConf(conf domain.GroupConf) error {
	b, err := t.bucket(bucketConf)
	if err != nil {
		return err
	}
	return putJSON(b, []byte("conf"), conf)
}

// DeleteConf removes the configuration record; subsequent reads see
// the defaults again.
func (t *Tx) DeleteConf() error {
	b, err := t.bucket(bucketConf)
	if err != nil {
		return err
	}
	return b.Delete([]byte("conf"))
}

// State returns the denormalized group counters.
func (t *Tx) State() (domain.GroupState, error) {
	b, err := t.bucket(bucketState)
	if err != nil {
		return domain.GroupState{}, err
	}
	var state domain.GroupState
	switch err := getJSON(b, []byte("state"), &state); err {
	case nil, ErrNotFound:
		return state, nil
	default:
		return domain.GroupState{}, err
	}
}

// SetState replaces the group counters.
func (t *Tx) SetState(state domain.GroupState) error {
	b, err := t.bucket(bucketState)
	if err != nil {
		return err
	}
	return putJSON(b, []byte("state"), state)
}

// --- custodians ---

// Custodian fetches one custodian by account.
func (t *Tx) Custodian(account domain.Account) (domain.Custodian, error) {
	b, err := t.bucket(bucketCustodians)
	if err != nil {
		return domain.Custodian{}, err
	}
	var cust domain.Custodian
	if err := getJSON(b, []byte(account), &cust); err != nil {
		return domain.Custodian{}, err
	}
	return cust, nil
}

// PutCustodian inserts or replaces a custodian record.
func (t *Tx) PutCustodian(cust domain.Custodian) error {
	b, err := t.bucket(bucketCustodians)
	if err != nil {
		return err
	}
	return putJSON(b, []byte(cust.Account), cust)
}

// DeleteCustodian removes a custodian record.
func (t *Tx) DeleteCustodian(account domain.Account) error {
	b, err := t.bucket(bucketCustodians)
	if err != nil {
		return err
	}
	return b.Delete([]byte(account))
}

// Custodians returns the full custodian set ordered by account.
func (t *Tx) Custodians() ([]domain.Custodian, error) {
	b, err := t.bucket(bucketCustodians)
	if err != nil {
		return nil, err
	}
	var custs []domain.Custodian
	err = b.ForEach(func(_, v []byte) error {
		var cust domain.Custodian
		if err := json.Unmarshal(v, &cust); err != nil {
			return fmt.Errorf("unmarshal custodian: %w", err)
		}
		custs = append(custs, cust)
		return nil
	})
	return custs, err
}

// ClearCustodians empties the custodian table (bulk replace only).
func (t *Tx) ClearCustodians() error {
	b, err := t.bucket(bucketCustodians)
	if err != nil {
		return err
	}
	// Collect keys first: deleting while cursor-iterating is undefined.
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// --- thresholds and links ---

// Threshold fetches a threshold definition by name.
func (t *Tx) Threshold(name domain.Account) (domain.ThresholdDef, error) {
	b, err := t.bucket(bucketThresholds)
	if err != nil {
		return domain.ThresholdDef{}, err
	}
	var def domain.ThresholdDef
	if err := getJSON(b, []byte(name), &def); err != nil {
		return domain.ThresholdDef{}, err
	}
	return def, nil
}

// PutThreshold inserts or replaces a threshold definition.
func (t *Tx) PutThreshold(def domain.ThresholdDef) error {
	b, err := t.bucket(bucketThresholds)
	if err != nil {
		return err
	}
	return putJSON(b, []byte(def.Name), def)
}

// DeleteThreshold removes a threshold definition.
func (t *Tx) DeleteThreshold(name domain.Account) error {
	b, err := t.bucket(bucketThresholds)
	if err != nil {
		return err
	}
	return b.Delete([]byte(name))
}

func linkKey(target, action domain.Account) []byte {
	return []byte(string(target) + "|" + string(action))
}

// Link fetches the threshold link for an exact (target, action) pair.
func (t *Tx) Link(target, action domain.Account) (domain.ThresholdLink, error) {
	b, err := t.bucket(bucketLinks)
	if err != nil {
		return domain.ThresholdLink{}, err
	}
	var link domain.ThresholdLink
	if err := getJSON(b, linkKey(target, action), &link); err != nil {
		return domain.ThresholdLink{}, err
	}
	return link, nil
}

// PutLink inserts or replaces a threshold link, keeping the by-name
// index in sync. A replaced link's old index entry is removed first.
func (t *Tx) PutLink(link domain.ThresholdLink) error {
	b, err := t.bucket(bucketLinks)
	if err != nil {
		return err
	}
	idx, err := t.bucket(bucketLinksByName)
	if err != nil {
		return err
	}
	key := linkKey(link.Target, link.Action)
	var old domain.ThresholdLink
	if err := getJSON(b, key, &old); err == nil {
		if err := idx.Delete(indexKey(old.Threshold, key)); err != nil {
			return err
		}
	} else if err != ErrNotFound {
		return err
	}
	if err := putJSON(b, key, link); err != nil {
		return err
	}
	return idx.Put(indexKey(link.Threshold, key), nil)
}

// DeleteLink removes a threshold link and its index entry.
func (t *Tx) DeleteLink(target, action domain.Account) error {
	b, err := t.bucket(bucketLinks)
	if err != nil {
		return err
	}
	idx, err := t.bucket(bucketLinksByName)
	if err != nil {
		return err
	}
	key := linkKey(target, action)
	var link domain.ThresholdLink
	if err := getJSON(b, key, &link); err != nil {
		return err
	}
	if err := idx.Delete(indexKey(link.Threshold, key)); err != nil {
		return err
	}
	return b.Delete(key)
}

func indexKey(threshold domain.Account, linkKey []byte) []byte {
	return append([]byte(string(threshold)+"/"), linkKey...)
}

// ThresholdLinked reports whether any link references the threshold
// name, via an ordered prefix scan of the by-name index.
func (t *Tx) ThresholdLinked(name domain.Account) (bool, error) {
	idx, err := t.bucket(bucketLinksByName)
	if err != nil {
		return false, err
	}
	prefix := []byte(string(name) + "/")
	c := idx.Cursor()
	k, _ := c.Seek(prefix)
	return k != nil && bytes.HasPrefix(k, prefix), nil
}

// --- proposals ---

// NextProposalID allocates the next monotonic proposal id.
func (t *Tx) NextProposalID() (uint64, error) {
	b, err := t.bucket(bucketProposals)
	if err != nil {
		return 0, err
	}
	return b.NextSequence()
}

// Proposal fetches an open proposal by id.
func (t *Tx) Proposal(id uint64) (domain.Proposal, error) {
	b, err := t.bucket(bucketProposals)
	if err != nil {
		return domain.Proposal{}, err
	}
	var prop domain.Proposal
	if err := getJSON(b, u64Key(id), &prop); err != nil {
		return domain.Proposal{}, err
	}
	return prop, nil
}

// PutProposal inserts or replaces an open proposal.
func (t *Tx) PutProposal(prop domain.Proposal) error {
	b, err := t.bucket(bucketProposals)
	if err != nil {
		return err
	}
	return putJSON(b, u64Key(prop.ID), prop)
}

// DeleteProposal removes an open proposal.
func (t *Tx) DeleteProposal(id uint64) error {
	b, err := t.bucket(bucketProposals)
	if err != nil {
		return err
	}
	return b.Delete(u64Key(id))
}

// Proposals returns all open proposals in id order.
func (t *Tx) Proposals() ([]domain.Proposal, error) {
	b, err := t.bucket(bucketProposals)
	if err != nil {
		return nil, err
	}
	var props []domain.Proposal
	err = b.ForEach(func(_, v []byte) error {
		var prop domain.Proposal
		if err := json.Unmarshal(v, &prop); err != nil {
			return fmt.Errorf("unmarshal proposal: %w", err)
		}
		props = append(props, prop)
		return nil
	})
	return props, err
}

// --- proposal archive ---

func (t *Tx) archiveBucket(outcome string, create bool) (*bbolt.Bucket, error) {
	root, err := t.bucket(bucketArchive)
	if err != nil {
		return nil, err
	}
	if create {
		b, err := root.CreateBucketIfNotExists([]byte(outcome))
		if err != nil {
			return nil, fmt.Errorf("create archive scope %s: %w", outcome, err)
		}
		return b, nil
	}
	return root.Bucket([]byte(outcome)), nil
}

// ArchiveCount returns the number of snapshots under an outcome tag.
func (t *Tx) ArchiveCount(outcome string) (int, error) {
	b, err := t.archiveBucket(outcome, false)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, nil
	}
	return b.Stats().KeyN, nil
}

// AppendArchive snapshots a terminated proposal under an outcome tag.
func (t *Tx) AppendArchive(outcome string, prop domain.Proposal) error {
	b, err := t.archiveBucket(outcome, true)
	if err != nil {
		return err
	}
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	return putJSON(b, u64Key(seq), prop)
}

// EvictOldestArchive removes up to max oldest snapshots under an
// outcome tag and reports how many were removed.
func (t *Tx) EvictOldestArchive(outcome string, max int) (int, error) {
	b, err := t.archiveBucket(outcome, false)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, nil
	}
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.First(); k != nil && len(keys) < max; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// Archived returns the snapshots under an outcome tag, oldest first.
func (t *Tx) Archived(outcome string) ([]domain.Proposal, error) {
	b, err := t.archiveBucket(outcome, false)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, nil
	}
	var props []domain.Proposal
	err = b.ForEach(func(_, v []byte) error {
		var prop domain.Proposal
		if err := json.Unmarshal(v, &prop); err != nil {
			return fmt.Errorf("unmarshal archived proposal: %w", err)
		}
		props = append(props, prop)
		return nil
	})
	return props, err
}

// --- members ---

// Member fetches a member record by account.
func (t *Tx) Member(account domain.Account) (domain.Member, error) {
	b, err := t.bucket(bucketMembers)
	if err != nil {
		return domain.Member{}, err
	}
	var mem domain.Member
	if err := getJSON(b, []byte(account), &mem); err != nil {
		return domain.Member{}, err
	}
	return mem, nil
}

// PutMember inserts or replaces a member record.
func (t *Tx) PutMember(mem domain.Member) error {
	b, err := t.bucket(bucketMembers)
	if err != nil {
		return err
	}
	return putJSON(b, []byte(mem.Account), mem)
}

// DeleteMember removes a member record.
func (t *Tx) DeleteMember(account domain.Account) error {
	b, err := t.bucket(bucketMembers)
	if err != nil {
		return err
	}
	return b.Delete([]byte(account))
}

// --- modules ---

// Module fetches a module link by name.
func (t *Tx) Module(name domain.Account) (domain.ModuleLink, error) {
	b, err := t.bucket(bucketModules)
	if err != nil {
		return domain.ModuleLink{}, err
	}
	var mod domain.ModuleLink
	if err := getJSON(b, []byte(name), &mod); err != nil {
		return domain.ModuleLink{}, err
	}
	return mod, nil
}

// PutModule inserts or replaces a module link.
func (t *Tx) PutModule(mod domain.ModuleLink) error {
	b, err := t.bucket(bucketModules)
	if err != nil {
		return err
	}
	return putJSON(b, []byte(mod.Name), mod)
}

// DeleteModule removes a module link.
func (t *Tx) DeleteModule(name domain.Account) error {
	b, err := t.bucket(bucketModules)
	if err != nil {
		return err
	}
	return b.Delete([]byte(name))
}

// --- balances ---

func (t *Tx) balanceBucket(scope domain.Account, create bool) (*bbolt.Bucket, error) {
	root, err := t.bucket(bucketBalances)
	if err != nil {
		return nil, err
	}
	if create {
		b, err := root.CreateBucketIfNotExists([]byte(scope))
		if err != nil {
			return nil, fmt.Errorf("create balance scope %s: %w", scope, err)
		}
		return b, nil
	}
	return root.Bucket([]byte(scope)), nil
}

// Balance fetches one (issuer, symbol) row inside an owner scope.
func (t *Tx) Balance(scope domain.Account, key string) (domain.Balance, error) {
	b, err := t.balanceBucket(scope, false)
	if err != nil {
		return domain.Balance{}, err
	}
	if b == nil {
		return domain.Balance{}, ErrNotFound
	}
	var bal domain.Balance
	if err := getJSON(b, []byte(key), &bal); err != nil {
		return domain.Balance{}, err
	}
	return bal, nil
}

// PutBalance inserts or replaces a balance row inside an owner scope.
func (t *Tx) PutBalance(scope domain.Account, key string, bal domain.Balance) error {
	b, err := t.balanceBucket(scope, true)
	if err != nil {
		return err
	}
	return putJSON(b, []byte(key), bal)
}

// DeleteBalance removes a balance row.
func (t *Tx) DeleteBalance(scope domain.Account, key string) error {
	b, err := t.balanceBucket(scope, false)
	if err != nil {
		return err
	}
	if b == nil {
		return nil
	}
	return b.Delete([]byte(key))
}

// Balances lists the rows of one owner scope.
func (t *Tx) Balances(scope domain.Account) ([]domain.Balance, error) {
	b, err := t.balanceBucket(scope, false)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, nil
	}
	var bals []domain.Balance
	err = b.ForEach(func(_, v []byte) error {
		var bal domain.Balance
		if err := json.Unmarshal(v, &bal); err != nil {
			return fmt.Errorf("unmarshal balance: %w", err)
		}
		bals = append(bals, bal)
		return nil
	})
	return bals, err
}

// HasBalances reports whether an owner scope holds any rows.
func (t *Tx) HasBalances(scope domain.Account) (bool, error) {
	b, err := t.balanceBucket(scope, false)
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}
	k, _ := b.Cursor().First()
	return k != nil, nil
}

// ClearBalances wipes every row of one owner scope.
func (t *Tx) ClearBalances(scope domain.Account) error {
	root, err := t.bucket(bucketBalances)
	if err != nil {
		return err
	}
	if root.Bucket([]byte(scope)) == nil {
		return nil
	}
	return root.DeleteBucket([]byte(scope))
}

// --- published signing authority ---

// Authority fetches the recorded signing policy for a level
// ("active" or "owner").
func (t *Tx) Authority(level string) (domain.Authority, error) {
	b, err := t.bucket(bucketAuthority)
	if err != nil {
		return domain.Authority{}, err
	}
	var auth domain.Authority
	if err := getJSON(b, []byte(level), &auth); err != nil {
		return domain.Authority{}, err
	}
	return auth, nil
}

// SetAuthority records the current signing policy for a level.
func (t *Tx) SetAuthority(level string, auth domain.Authority) error {
	b, err := t.bucket(bucketAuthority)
	if err != nil {
		return err
	}
	return putJSON(b, []byte(level), auth)
}
