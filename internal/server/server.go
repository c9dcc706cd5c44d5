// Package server exposes the governance operations over HTTP.
package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Daclify/daclifycore/internal/auth"
	"github.com/Daclify/daclifycore/internal/custodians"
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/group"
	"github.com/Daclify/daclifycore/internal/ledger"
	"github.com/Daclify/daclifycore/internal/members"
	"github.com/Daclify/daclifycore/internal/modules"
	"github.com/Daclify/daclifycore/internal/observability"
	"github.com/Daclify/daclifycore/internal/proposals"
	"github.com/Daclify/daclifycore/internal/thresholds"
)

// Services bundles everything the HTTP layer fronts.
type Services struct {
	Group      *group.Service
	Custodians *custodians.Service
	Thresholds *thresholds.Service
	Members    *members.Service
	Ledger     *ledger.Service
	Modules    *modules.Service
	Proposals  *proposals.Service
}

// Server is the node's HTTP face.
type Server struct {
	group    domain.Account
	authn    auth.Authenticator
	svc      Services
	router   *gin.Engine
	appeared time.Time
}

// New builds the router with the standard middleware chain.
func New(groupAccount domain.Account, authn auth.Authenticator, corsOrigins []string, svc Services) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(groupAccount.String()))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		group:    groupAccount,
		authn:    authn,
		svc:      svc,
		router:   r,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Router exposes the underlying engine for embedding and tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error { return s.router.Run(addr) }

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

const callerKey = "daclify.caller"

// authenticated resolves the bearer token into a caller before the
// handler runs.
func (s *Server) authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		caller, err := s.authn.Authenticate(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

func callerFrom(c *gin.Context) auth.Caller {
	v, _ := c.Get(callerKey)
	caller, _ := v.(auth.Caller)
	return caller
}

// requestID fingerprints one submission for the proposal record.
func requestID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}

// httpStatus maps the domain error taxonomy onto response codes.
func httpStatus(err error) int {
	if errors.Is(err, auth.ErrUnauthorized) {
		return http.StatusForbidden
	}
	switch domain.KindOf(err) {
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindStateConflict:
		return http.StatusConflict
	case domain.KindPolicyViolation:
		return http.StatusUnprocessableEntity
	case domain.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respond(c *gin.Context, op string, groupAccount domain.Account, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = domain.KindOf(err).String()
	}
	observability.RecordGovernanceOp(groupAccount.String(), op, outcome, time.Since(start))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
