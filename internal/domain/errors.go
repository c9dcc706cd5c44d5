package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a rejected call. Every failure is fatal to the
// enclosing call: the storage transaction unwinds and nothing commits.
type Kind int

const (
	// KindUnknown is an unclassified internal failure.
	KindUnknown Kind = iota
	// KindAuthorization is a missing or wrong authenticated caller.
	KindAuthorization
	// KindNotFound is a missing custodian, proposal, threshold, link,
	// member or module.
	KindNotFound
	// KindStateConflict is a duplicate or order-violating mutation,
	// such as a duplicate approval or removing a linked threshold.
	KindStateConflict
	// KindPolicyViolation is a call rejected by group policy: disabled
	// feature flags, quorum not met, blocked actions, bounds.
	KindPolicyViolation
	// KindValidation is malformed input: empty identities, bad memos,
	// out-of-range values.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindStateConflict:
		return "state_conflict"
	case KindPolicyViolation:
		return "policy_violation"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is a rejected call carrying a descriptive message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// KindOf extracts the Kind from an error chain, KindUnknown otherwise.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// Authorizationf builds a KindAuthorization error.
func Authorizationf(format string, args ...any) error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflictf builds a KindStateConflict error.
func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindStateConflict, Message: fmt.Sprintf(format, args...)}
}

// Policyf builds a KindPolicyViolation error.
func Policyf(format string, args ...any) error {
	return &Error{Kind: KindPolicyViolation, Message: fmt.Sprintf(format, args...)}
}

// Validationf builds a KindValidation error.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}
