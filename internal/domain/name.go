package domain

import "strings"

// Account is a group-scoped account identity. The format follows the
// hosting ledger's naming rules: 1-12 characters drawn from a-z, 1-5
// and '.'. The empty string is the wildcard ("any") in threshold links
// and is never a valid caller identity.
type Account string

// Wildcard matches any target or action identity in a threshold link.
const Wildcard Account = ""

// MaxNameLen is the identity field width; the deposit memo protocol
// depends on it.
const MaxNameLen = 12

// Valid reports whether the account is a well-formed, non-wildcard
// identity.
func (a Account) Valid() bool {
	if len(a) == 0 || len(a) > MaxNameLen {
		return false
	}
	for _, r := range a {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '1' && r <= '5':
		case r == '.':
		default:
			return false
		}
	}
	return true
}

// IsWildcard reports whether the identity is the "any" slot value.
func (a Account) IsWildcard() bool { return a == Wildcard }

func (a Account) String() string { return string(a) }

// ParseAccount trims and validates a raw identity string.
func ParseAccount(raw string) (Account, error) {
	a := Account(strings.TrimSpace(raw))
	if !a.Valid() {
		return "", Validationf("invalid account name %q", raw)
	}
	return a, nil
}

// PermissionLevel names a delegated permission on an account, for
// example custodian signing keys and module delegates.
type PermissionLevel struct {
	Actor      Account `json:"actor"`
	Permission string  `json:"permission"`
}

// Valid reports whether both the actor and the permission name are set.
func (p PermissionLevel) Valid() bool {
	return p.Actor.Valid() && strings.TrimSpace(p.Permission) != ""
}
