package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Daclify/daclifycore/internal/auth"
	"github.com/Daclify/daclifycore/internal/custodians"
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/group"
	"github.com/Daclify/daclifycore/internal/ledger"
	"github.com/Daclify/daclifycore/internal/members"
	"github.com/Daclify/daclifycore/internal/modules"
	"github.com/Daclify/daclifycore/internal/proposals"
	"github.com/Daclify/daclifycore/internal/storage"
	"github.com/Daclify/daclifycore/internal/testutil/storetest"
	"github.com/Daclify/daclifycore/internal/testutil/testlog"
	"github.com/Daclify/daclifycore/internal/thresholds"
)

const (
	testGroup  domain.Account = "mygroup"
	adminToken                = "super-secret-admin"
)

var jwtSecret = []byte("test-jwt-secret")

func newTestServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := storetest.Open(t)
	authn := auth.TokenAuthenticator{Secret: jwtSecret, Group: testGroup, AdminToken: adminToken}
	svc := Services{
		Group:      group.NewService(store, testGroup, nil, nil),
		Custodians: custodians.NewService(store, testGroup, nil, nil, nil),
		Thresholds: thresholds.NewService(store, nil),
		Members:    members.NewService(store, testGroup, nil, nil, nil),
		Ledger:     ledger.NewService(store, testGroup, nil, nil),
		Modules:    modules.NewService(store, testGroup, nil, nil),
		Proposals:  proposals.NewService(store, testGroup, nil, nil, nil, nil),
	}
	return New(testGroup, authn, nil, svc), store
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: subject}).SignedString(jwtSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func do(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func TestHealthNeedsNoToken(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t)
	rr := do(t, s, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("health = %d: %s", rr.Code, rr.Body.String())
	}
}

func TestBearerTokenRequired(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t)
	if rr := do(t, s, http.MethodGet, "/v1/conf", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing token = %d, want 401", rr.Code)
	}
	if rr := do(t, s, http.MethodGet, "/v1/conf", "garbage", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d, want 401", rr.Code)
	}
}

func TestAdminTokenGrantsGroupAuthority(t *testing.T) {
	testlog.Start(t)
	s, store := newTestServer(t)
	rr := do(t, s, http.MethodPost, "/v1/invitecust", adminToken, `{"account":"alice"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("invite = %d: %s", rr.Code, rr.Body.String())
	}
	err := store.View(func(tx *storage.Tx) error {
		if _, err := tx.Custodian("alice"); err != nil {
			t.Fatalf("custodian not stored: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t)
	if rr := do(t, s, http.MethodPost, "/v1/invitecust", adminToken, `{"account":"alice"}`); rr.Code != http.StatusOK {
		t.Fatalf("seed invite = %d: %s", rr.Code, rr.Body.String())
	}

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"duplicate invite conflicts", "/v1/invitecust", `{"account":"alice"}`, http.StatusConflict},
		{"registration disabled by policy", "/v1/regmember", `{"actor":"bob"}`, http.StatusUnprocessableEntity},
		{"unknown proposal", "/v1/cancel", `{"canceler":"` + string(testGroup) + `","id":42}`, http.StatusNotFound},
		{"invalid account name", "/v1/invitecust", `{"account":"BAD!"}`, http.StatusBadRequest},
		{"malformed body", "/v1/approve", `{broken`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rr := do(t, s, http.MethodPost, tc.path, adminToken, tc.body)
		if rr.Code != tc.want {
			t.Fatalf("%s: got %d (%s), want %d", tc.name, rr.Code, rr.Body.String(), tc.want)
		}
	}
}

func TestJWTCallerIsScopedToItsAccount(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t)
	if rr := do(t, s, http.MethodPost, "/v1/invitecust", adminToken, `{"account":"alice"}`); rr.Code != http.StatusOK {
		t.Fatalf("seed invite = %d: %s", rr.Code, rr.Body.String())
	}
	// Bob's token can't prove liveness for alice.
	rr := do(t, s, http.MethodPost, "/v1/imalive", signToken(t, "bob"), `{"account":"alice"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("cross-account call = %d (%s), want 403", rr.Code, rr.Body.String())
	}
	rr = do(t, s, http.MethodPost, "/v1/imalive", signToken(t, "alice"), `{"account":"alice"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("self call = %d: %s", rr.Code, rr.Body.String())
	}
}

func TestReadEndpoints(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t)
	if rr := do(t, s, http.MethodPost, "/v1/invitecust", adminToken, `{"account":"alice"}`); rr.Code != http.StatusOK {
		t.Fatalf("seed invite = %d: %s", rr.Code, rr.Body.String())
	}

	rr := do(t, s, http.MethodGet, "/v1/conf", adminToken, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("conf = %d: %s", rr.Code, rr.Body.String())
	}
	var conf domain.GroupConf
	if err := json.Unmarshal(rr.Body.Bytes(), &conf); err != nil {
		t.Fatalf("decode conf: %v", err)
	}
	if conf.HubAccount != domain.DefaultGroupConf().HubAccount {
		t.Fatalf("unexpected conf %+v", conf)
	}

	rr = do(t, s, http.MethodGet, "/v1/custodians", adminToken, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "alice") {
		t.Fatalf("custodians = %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, s, http.MethodGet, "/v1/proposals/archive/bogus", adminToken, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bogus archive scope = %d, want 400", rr.Code)
	}
}
