package domain

// Directory answers account-existence queries against the hosting
// environment. The engine only ever asks before admitting an identity
// into a registry.
type Directory interface {
	IsAccount(account Account) bool
}

// OpenDirectory admits every well-formed identity. Used when no
// external account source is wired.
type OpenDirectory struct{}

func (OpenDirectory) IsAccount(account Account) bool { return account.Valid() }
