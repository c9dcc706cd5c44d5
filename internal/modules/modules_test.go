package modules

import (
	"testing"

	"github.com/Daclify/daclifycore/internal/auth"
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/testutil/storetest"
	"github.com/Daclify/daclifycore/internal/testutil/testlog"
)

const groupName domain.Account = "mygroup"

var groupCaller = auth.Caller{Account: groupName, GroupAuthority: true}

func TestLinkUnlink(t *testing.T) {
	testlog.Start(t)
	store := storetest.Open(t)
	svc := NewService(store, groupName, nil, nil)

	in := LinkInput{
		Name:     domain.ModuleElections,
		Delegate: domain.PermissionLevel{Actor: "electmod", Permission: "active"},
	}
	err := svc.Link(auth.Caller{Account: "alice"}, in)
	if domain.KindOf(err) != domain.KindAuthorization {
		t.Fatalf("linking needs group authority, got %v", err)
	}
	if err := svc.Link(groupCaller, in); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := svc.Link(groupCaller, in); domain.KindOf(err) != domain.KindStateConflict {
		t.Fatalf("duplicate link should conflict, got %v", err)
	}

	link, err := svc.Module(domain.ModuleElections)
	if err != nil {
		t.Fatalf("module: %v", err)
	}
	if !link.Enabled || link.Parent != groupName {
		t.Fatalf("link should start enabled with the group as parent, got %+v", link)
	}

	if err := svc.Unlink(groupCaller, UnlinkInput{Name: domain.ModuleElections}); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	err = svc.Unlink(groupCaller, UnlinkInput{Name: domain.ModuleElections})
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("unlinking a missing module should be not found, got %v", err)
	}
}

func TestLinkValidation(t *testing.T) {
	testlog.Start(t)
	store := storetest.Open(t)
	svc := NewService(store, groupName, nil, nil)

	err := svc.Link(groupCaller, LinkInput{
		Delegate: domain.PermissionLevel{Actor: "electmod", Permission: "active"},
	})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("empty module name should be invalid, got %v", err)
	}
	err = svc.Link(groupCaller, LinkInput{Name: "mymod"})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("empty delegate should be invalid, got %v", err)
	}
}

type captureForwarder struct {
	delegate domain.PermissionLevel
	in       PayrollInput
	calls    int
}

func (f *captureForwarder) Forward(delegate domain.PermissionLevel, in PayrollInput) error {
	f.delegate, f.in = delegate, in
	f.calls++
	return nil
}

func TestPayrollForwarding(t *testing.T) {
	testlog.Start(t)
	store := storetest.Open(t)
	forwarder := &captureForwarder{}
	svc := NewService(store, groupName, forwarder, nil)

	in := PayrollInput{Sender: domain.ModuleElections, Scope: "electionpay"}
	err := svc.Payroll(auth.Caller{Account: "electmod"}, in)
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("payroll module missing should be not found, got %v", err)
	}

	if err := svc.Link(groupCaller, LinkInput{
		Name:     domain.ModulePayroll,
		Delegate: domain.PermissionLevel{Actor: "payrollmod", Permission: "active"},
	}); err != nil {
		t.Fatalf("link payroll: %v", err)
	}
	err = svc.Payroll(auth.Caller{Account: "electmod"}, in)
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("sender module missing should be not found, got %v", err)
	}

	if err := svc.Link(groupCaller, LinkInput{
		Name:     domain.ModuleElections,
		Delegate: domain.PermissionLevel{Actor: "electmod", Permission: "active"},
	}); err != nil {
		t.Fatalf("link elections: %v", err)
	}
	err = svc.Payroll(auth.Caller{Account: "notdelegate"}, in)
	if domain.KindOf(err) != domain.KindAuthorization {
		t.Fatalf("only the sender delegate may submit, got %v", err)
	}

	if err := svc.Payroll(auth.Caller{Account: "electmod"}, in); err != nil {
		t.Fatalf("payroll: %v", err)
	}
	if forwarder.calls != 1 || forwarder.delegate.Actor != "payrollmod" {
		t.Fatalf("batch should reach the payroll delegate, got %+v", forwarder)
	}
}
