package domain

import (
	"encoding/json"
	"time"
)

// Custodian is one weighted co-signer of the governed account.
type Custodian struct {
	Account   Account   `json:"account"`
	Authority string    `json:"authority"`
	Weight    uint8     `json:"weight"`
	Joined    time.Time `json:"joined"`
	// LastActive is the zero time until the custodian's first
	// liveness proof (the "never active" sentinel).
	LastActive time.Time `json:"last_active"`
}

// DefaultCustodianAuthority is the signing permission delegated by a
// custodian unless set otherwise.
const DefaultCustodianAuthority = "active"

// ThresholdDef is a named approval-weight requirement.
// Value -1 permanently blocks linked actions, 0 requires no approval,
// positive values are a minimum cumulative approved weight.
type ThresholdDef struct {
	Name  Account `json:"name"`
	Value int8    `json:"value"`
}

// DefaultThresholdName is reserved: it can never be deleted, must stay
// positive and is rewritten only by the authority synchronizer.
const DefaultThresholdName Account = "default"

// ThresholdLink binds a (target, action) pair to a threshold name.
// Wildcard in either slot matches any identity in that slot.
type ThresholdLink struct {
	Target    Account `json:"target"`
	Action    Account `json:"action"`
	Threshold Account `json:"threshold"`
}

// Action is one opaque privileged operation inside a proposal batch.
type Action struct {
	Target  Account         `json:"target"`
	Name    Account         `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MaxProposalActions bounds the batch size of a single proposal.
const MaxProposalActions = 7

// Proposal is a persisted batch of 1-7 actions awaiting quorum.
type Proposal struct {
	ID                uint64    `json:"id"`
	Proposer          Account   `json:"proposer"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Actions           []Action  `json:"actions"`
	Submitted         time.Time `json:"submitted"`
	Expiration        time.Time `json:"expiration"`
	Approvals         []Account `json:"approvals"`
	RequiredThreshold Account   `json:"required_threshold"`
	LastActor         Account   `json:"last_actor"`
	TrxID             string    `json:"trx_id"`
}

// Outcome tags of archived proposals.
const (
	OutcomeExecuted  = "executed"
	OutcomeCancelled = "cancelled"
)

// Member is a registered group member eligible for ledger scopes.
type Member struct {
	Account Account   `json:"account"`
	Since   time.Time `json:"since"`
}

// ModuleLink is a registered collaborator module: a named delegate the
// group may notify or accept privileged calls from.
type ModuleLink struct {
	Name        Account         `json:"name"`
	Delegate    PermissionLevel `json:"delegate"`
	Parent      Account         `json:"parent"`
	HasContract bool            `json:"has_contract"`
	Enabled     bool            `json:"enabled"`
}

// Reserved module names with engine-level meaning.
const (
	ModuleElections Account = "elections"
	ModulePayroll   Account = "payroll"
	ModuleHooks     Account = "hooks"
)

// AuthorityEntry is one weighted permission in a signing authority.
type AuthorityEntry struct {
	Permission PermissionLevel `json:"permission"`
	Weight     uint16          `json:"weight"`
}

// Authority is a rebuilt signing policy for the governed account:
// Threshold distinct key weights must co-sign.
type Authority struct {
	Threshold uint32           `json:"threshold"`
	Accounts  []AuthorityEntry `json:"accounts"`
}
