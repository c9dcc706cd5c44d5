package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Daclify/daclifycore/internal/auth"
	"github.com/Daclify/daclifycore/internal/custodians"
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/group"
	"github.com/Daclify/daclifycore/internal/ledger"
	"github.com/Daclify/daclifycore/internal/members"
	"github.com/Daclify/daclifycore/internal/modules"
	"github.com/Daclify/daclifycore/internal/proposals"
	"github.com/Daclify/daclifycore/internal/thresholds"
)

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.appeared).String(),
			"group":  s.group,
		})
	})
	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ready": true, "group": s.group})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1", s.authenticated())

	// Proposal lifecycle.
	op(s, v1, "propose", func(caller auth.Caller, in proposals.ProposeInput) error {
		in.TrxID = requestID()
		return s.svc.Proposals.Propose(caller, in)
	})
	op(s, v1, "approve", func(caller auth.Caller, in proposals.ApproveInput) error {
		return s.svc.Proposals.Approve(caller, in)
	})
	op(s, v1, "unapprove", func(caller auth.Caller, in proposals.UnapproveInput) error {
		return s.svc.Proposals.Unapprove(caller, in)
	})
	op(s, v1, "cancel", func(caller auth.Caller, in proposals.CancelInput) error {
		return s.svc.Proposals.Cancel(caller, in)
	})
	op(s, v1, "exec", func(caller auth.Caller, in proposals.ExecInput) error {
		return s.svc.Proposals.Exec(caller, in)
	})
	op(s, v1, "trunchistory", func(caller auth.Caller, in proposals.TruncateInput) error {
		return s.svc.Proposals.TruncateHistory(caller, in)
	})

	// Custodian registry.
	op(s, v1, "invitecust", func(caller auth.Caller, in custodians.InviteInput) error {
		return s.svc.Custodians.Invite(caller, in)
	})
	op(s, v1, "removecust", func(caller auth.Caller, in custodians.RemoveInput) error {
		return s.svc.Custodians.Remove(caller, in)
	})
	op(s, v1, "isetcusts", func(caller auth.Caller, in custodians.ReplaceInput) error {
		return s.svc.Custodians.Replace(caller, in)
	})
	op(s, v1, "imalive", func(caller auth.Caller, in custodians.ProveAliveInput) error {
		return s.svc.Custodians.ProveAlive(caller, in)
	})

	// Threshold registry.
	op(s, v1, "manthreshold", func(caller auth.Caller, in thresholds.ManThresholdInput) error {
		return s.svc.Thresholds.ManThreshold(caller, in)
	})
	op(s, v1, "manthreshlin", func(caller auth.Caller, in thresholds.ManThreshLinkInput) error {
		return s.svc.Thresholds.ManThreshLink(caller, in)
	})

	// Group configuration.
	op(s, v1, "updateconf", func(caller auth.Caller, in group.UpdateConfInput) error {
		return s.svc.Group.UpdateConf(caller, in)
	})
	op(s, v1, "offchain", func(caller auth.Caller, in group.OffchainInput) error {
		return s.svc.Group.Offchain(caller, in)
	})

	// Membership.
	op(s, v1, "regmember", func(caller auth.Caller, in members.RegisterInput) error {
		return s.svc.Members.Register(caller, in)
	})
	op(s, v1, "unregmember", func(caller auth.Caller, in members.UnregisterInput) error {
		return s.svc.Members.Unregister(caller, in)
	})

	// Internal ledger.
	op(s, v1, "internalxfr", func(caller auth.Caller, in ledger.TransferInput) error {
		return s.svc.Ledger.InternalTransfer(caller, in)
	})
	op(s, v1, "widthdraw", func(caller auth.Caller, in ledger.WithdrawInput) error {
		return s.svc.Ledger.Withdraw(caller, in)
	})
	op(s, v1, "clearbals", func(caller auth.Caller, in ledger.ClearInput) error {
		return s.svc.Ledger.ClearBalances(caller, in)
	})
	op(s, v1, "ontransfer", func(caller auth.Caller, in ledger.TransferNotice) error {
		if err := auth.RequireGroup(caller); err != nil {
			return err
		}
		return s.svc.Ledger.HandleTransfer(in)
	})

	// Module registry.
	op(s, v1, "linkmodule", func(caller auth.Caller, in modules.LinkInput) error {
		return s.svc.Modules.Link(caller, in)
	})
	op(s, v1, "unlinkmodule", func(caller auth.Caller, in modules.UnlinkInput) error {
		return s.svc.Modules.Unlink(caller, in)
	})
	op(s, v1, "ipayroll", func(caller auth.Caller, in modules.PayrollInput) error {
		return s.svc.Modules.Payroll(caller, in)
	})

	// Read side.
	v1.GET("/conf", s.readJSON(func() (any, error) { return s.svc.Group.Conf() }))
	v1.GET("/state", s.readJSON(func() (any, error) { return s.svc.Group.State() }))
	v1.GET("/custodians", s.readJSON(func() (any, error) { return s.svc.Group.Custodians() }))
	v1.GET("/proposals", s.readJSON(func() (any, error) { return s.svc.Proposals.Open() }))
	v1.GET("/proposals/archive/:scope", func(c *gin.Context) {
		scope := c.Param("scope")
		if scope != domain.OutcomeExecuted && scope != domain.OutcomeCancelled {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown archive scope"})
			return
		}
		props, err := s.svc.Proposals.Archived(scope)
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"proposals": props})
	})
	v1.GET("/balances/:scope", func(c *gin.Context) {
		scope, err := domain.ParseAccount(c.Param("scope"))
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		rows, err := s.svc.Ledger.Balances(scope)
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"balances": rows})
	})
	v1.GET("/authority/:level", func(c *gin.Context) {
		authority, err := s.svc.Group.Authority(c.Param("level"))
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, authority)
	})
	v1.GET("/modules/:name", func(c *gin.Context) {
		name, err := domain.ParseAccount(c.Param("name"))
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		link, err := s.svc.Modules.Module(name)
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, link)
	})
}

// op wires one governance operation as POST /v1/<name> with the
// common bind, invoke, record and respond plumbing.
func op[T any](s *Server, rg *gin.RouterGroup, name string, invoke func(auth.Caller, T) error) {
	rg.POST("/"+name, func(c *gin.Context) {
		start := time.Now()
		var in T
		if err := c.ShouldBindJSON(&in); err != nil {
			respond(c, name, s.group, start, domain.Validationf("malformed request body: %v", err))
			return
		}
		respond(c, name, s.group, start, invoke(callerFrom(c), in))
	})
}

func (s *Server) readJSON(fetch func() (any, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := fetch()
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, out)
	}
}
