package access

import (
	"fmt"
	"strings"
)

// ValidationError is returned when a request value is missing or malformed.
// No remote calls are made in this case.
type ValidationError struct {
	Field string
	Msg   string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// ConnectivityError is returned when the router is unreachable or rejects the
// credentials. Nothing is changed on the router in this case.
type ConnectivityError struct {
	Err error
}

// Error implements the error interface.
func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("failed connecting to router: %s", e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// ObjectKind is the kind of a router object.
type ObjectKind string

// Router object kinds.
const (
	KindRule ObjectKind = "firewall_rule"
	KindTask ObjectKind = "scheduled_task"
)

// ObjectRef identifies a router object. ID is empty if the object doesn't
// exist on the router.
type ObjectRef struct {
	Kind ObjectKind `json:"kind"`
	Role Role       `json:"role,omitempty"`
	Name string     `json:"name"`
	ID   string     `json:"id,omitempty"`
}

func (o ObjectRef) String() string {
	if o.ID == "" {
		return fmt.Sprintf("%s '%s'", o.Kind, o.Name)
	}
	return fmt.Sprintf("%s '%s' (%s)", o.Kind, o.Name, o.ID)
}

// ObjectFailure is a failed operation on a single router object.
type ObjectFailure struct {
	Object ObjectRef
	Err    error
}

// PartialCleanupError is reported when one or more stale objects couldn't be
// deleted. It doesn't prevent a new window from being created.
type PartialCleanupError struct {
	Failures []ObjectFailure
}

// Error implements the error interface.
func (e *PartialCleanupError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Object, f.Err))
	}
	return fmt.Sprintf("failed deleting %d stale object(s): %s", len(e.Failures), strings.Join(msgs, "; "))
}

// Unwrap returns the errors of the individual failures.
func (e *PartialCleanupError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// PartialCreationError is returned when one of the objects of a window failed
// to be created. The objects created before the failure are left on the
// router, and the remaining ones are not attempted.
type PartialCreationError struct {
	Created []ObjectRef
	// Missing contains the failed object first, followed by the objects that
	// were not attempted.
	Missing []ObjectRef
	Err     error
}

// Error implements the error interface.
func (e *PartialCreationError) Error() string {
	missing := make([]string, 0, len(e.Missing))
	for _, o := range e.Missing {
		missing = append(missing, o.String())
	}
	return fmt.Sprintf("created %d of %d objects, missing %s: %s",
		len(e.Created), len(e.Created)+len(e.Missing), strings.Join(missing, ", "), e.Err)
}

// Unwrap returns the underlying error.
func (e *PartialCreationError) Unwrap() error {
	return e.Err
}

// Failed returns the object whose creation failed.
func (e *PartialCreationError) Failed() ObjectRef {
	if len(e.Missing) == 0 {
		return ObjectRef{}
	}
	return e.Missing[0]
}
