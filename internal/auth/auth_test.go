package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Daclify/daclifycore/internal/domain"
)

func signToken(t *testing.T, secret []byte, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject}).
		SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAdminTokenGrantsGroupAuthority(t *testing.T) {
	a := TokenAuthenticator{Group: "mygroup", AdminToken: "s3cret"}
	caller, err := a.Authenticate("s3cret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !caller.GroupAuthority || caller.Account != "mygroup" {
		t.Fatalf("admin token should yield group authority, got %+v", caller)
	}
}

func TestJWTSubjectBecomesCaller(t *testing.T) {
	secret := []byte("test-secret")
	a := TokenAuthenticator{Secret: secret, Group: "mygroup"}

	caller, err := a.Authenticate(signToken(t, secret, "alice"))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if caller.Account != "alice" || caller.GroupAuthority {
		t.Fatalf("unexpected caller %+v", caller)
	}

	caller, err = a.Authenticate(signToken(t, secret, "mygroup"))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if !caller.GroupAuthority {
		t.Fatalf("group subject should carry group authority")
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	secret := []byte("test-secret")
	a := TokenAuthenticator{Secret: secret, Group: "mygroup"}

	if _, err := a.Authenticate(""); err == nil {
		t.Fatalf("empty token must fail")
	}
	if _, err := a.Authenticate("not-a-jwt"); err == nil {
		t.Fatalf("garbage token must fail")
	}
	if _, err := a.Authenticate(signToken(t, []byte("other"), "alice")); err == nil {
		t.Fatalf("wrong secret must fail")
	}
	if _, err := a.Authenticate(signToken(t, secret, "Not-An-Acct")); err == nil {
		t.Fatalf("invalid subject name must fail")
	}
}

func TestRequire(t *testing.T) {
	alice := Caller{Account: "alice"}
	groupCaller := Caller{Account: "mygroup", GroupAuthority: true}

	if err := Require(alice, "alice"); err != nil {
		t.Fatalf("caller may act for itself: %v", err)
	}
	if err := Require(alice, "bob"); domain.KindOf(err) != domain.KindAuthorization {
		t.Fatalf("caller must not act for others, got %v", err)
	}
	if err := Require(groupCaller, "bob"); err != nil {
		t.Fatalf("group authority may act for anyone: %v", err)
	}
	if err := RequireGroup(alice); domain.KindOf(err) != domain.KindAuthorization {
		t.Fatalf("plain caller must not hold group authority, got %v", err)
	}
	if err := RequireGroup(groupCaller); err != nil {
		t.Fatalf("group caller: %v", err)
	}
}
