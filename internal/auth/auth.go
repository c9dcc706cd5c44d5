// Package auth resolves authenticated callers.
//
// It intentionally avoids policy decisions and storage concerns: the
// hosting environment guarantees signature verification, this package
// only maps presented credentials onto account identities.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Daclify/daclifycore/internal/domain"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Caller is one authenticated calling identity.
type Caller struct {
	Account domain.Account
	// GroupAuthority is set when the credential carries the governed
	// account's own highest authority.
	GroupAuthority bool
}

// Authenticator maps a presented token onto a caller identity.
type Authenticator interface {
	Authenticate(token string) (Caller, error)
}

// TokenAuthenticator validates HMAC JWTs whose subject is the calling
// account. An optional shared admin token grants group authority and
// is intended for operators and proofs of concept.
type TokenAuthenticator struct {
	Secret     []byte
	Group      domain.Account
	AdminToken string
}

func (a TokenAuthenticator) Authenticate(token string) (Caller, error) {
	if token == "" {
		return Caller{}, ErrUnauthorized
	}
	if a.AdminToken != "" &&
		subtle.ConstantTimeCompare([]byte(a.AdminToken), []byte(token)) == 1 {
		return Caller{Account: a.Group, GroupAuthority: true}, nil
	}
	if len(a.Secret) == 0 {
		return Caller{}, ErrUnauthorized
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return Caller{}, ErrUnauthorized
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return Caller{}, ErrUnauthorized
	}
	account, err := domain.ParseAccount(subject)
	if err != nil {
		return Caller{}, ErrUnauthorized
	}
	return Caller{Account: account, GroupAuthority: account == a.Group}, nil
}

// FuncAuthenticator adapts a function into an Authenticator.
type FuncAuthenticator func(token string) (Caller, error)

func (f FuncAuthenticator) Authenticate(token string) (Caller, error) {
	return f(token)
}

// Require checks that the caller speaks for the named party. Group
// authority may act for any party, mirroring the hosting environment's
// owner-key semantics.
func Require(caller Caller, party domain.Account) error {
	if caller.GroupAuthority || caller.Account == party {
		return nil
	}
	return domain.Authorizationf("caller %s is not authorized for %s", caller.Account, party)
}

// RequireGroup checks that the caller holds the governed account's own
// authority.
func RequireGroup(caller Caller) error {
	if caller.GroupAuthority {
		return nil
	}
	return domain.Authorizationf("caller %s does not hold the group authority", caller.Account)
}
