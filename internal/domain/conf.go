package domain

import "time"

// GroupConf is the single mutable configuration record of the group.
type GroupConf struct {
	MaxCustodians         uint8           `json:"max_custodians" toml:"max_custodians"`
	InactivateCustAfter   time.Duration   `json:"inactivate_cust_after" toml:"inactivate_cust_after"`
	ExecOnThresholdZero   bool            `json:"exec_on_threshold_zero" toml:"exec_on_threshold_zero"`
	ProposalArchiveSize   uint8           `json:"proposal_archive_size" toml:"proposal_archive_size"`
	MinProposalExpiration time.Duration   `json:"min_proposal_expiration" toml:"min_proposal_expiration"`
	MemberRegistration    bool            `json:"member_registration" toml:"member_registration"`
	Withdrawals           bool            `json:"withdrawals" toml:"withdrawals"`
	InternalTransfers     bool            `json:"internal_transfers" toml:"internal_transfers"`
	Deposits              bool            `json:"deposits" toml:"deposits"`
	Maintainer            PermissionLevel `json:"maintainer" toml:"maintainer"`
	HubAccount            Account         `json:"hub_account" toml:"hub_account"`
}

// DefaultGroupConf mirrors the record created on first access before
// any updateconf call.
func DefaultGroupConf() GroupConf {
	return GroupConf{
		MaxCustodians:         0,
		InactivateCustAfter:   30 * 24 * time.Hour,
		ExecOnThresholdZero:   false,
		ProposalArchiveSize:   3,
		MinProposalExpiration: time.Hour,
		MemberRegistration:    false,
		Withdrawals:           false,
		InternalTransfers:     false,
		Deposits:              false,
		Maintainer:            PermissionLevel{Actor: "daclifyhub11", Permission: "active"},
		HubAccount:            "daclifyhub11",
	}
}

// GroupState holds the denormalized registry counters. They must match
// the true cardinality of the custodian and member sets at all times.
type GroupState struct {
	CustodianCount uint8  `json:"custodian_count"`
	MemberCount    uint64 `json:"member_count"`
}
