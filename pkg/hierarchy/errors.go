package hierarchy

import (
	"errors"
	"fmt"

	"github.com/rmax-ai/platformsim/pkg/catalog"
)

// RejectReason says why a node could not be inserted.
type RejectReason string

const (
	ReasonMissingTemplate RejectReason = "missing_template"
	ReasonMissingParent   RejectReason = "missing_parent"
	ReasonRequiresParent  RejectReason = "requires_parent"
	ReasonContainment     RejectReason = "containment"
	ReasonCapacity        RejectReason = "capacity"
)

var (
	ErrMissingTemplate = errors.New("no template for node type")
	ErrMissingParent   = errors.New("parent node not found")
	ErrRequiresParent  = errors.New("node type requires a parent")
	ErrContainment     = errors.New("parent cannot contain node layer")
	ErrCapacity        = errors.New("insufficient parent capacity")

	ErrNodeNotFound       = errors.New("node not found")
	ErrDeploymentNotFound = errors.New("deployment not found")
	ErrInvalidDeployment  = errors.New("invalid deployment")
	ErrInvalidHealth      = errors.New("invalid health")
)

var reasonErrors = map[RejectReason]error{
	ReasonMissingTemplate: ErrMissingTemplate,
	ReasonMissingParent:   ErrMissingParent,
	ReasonRequiresParent:  ErrRequiresParent,
	ReasonContainment:     ErrContainment,
	ReasonCapacity:        ErrCapacity,
}

// RejectionError is returned by AddNode and CheckAccept when a node cannot
// be placed. It matches the sentinel of its reason under errors.Is.
type RejectionError struct {
	Reason   RejectReason
	NodeType catalog.NodeType
	ParentID string
	Detail   string
}

func (e *RejectionError) Error() string {
	msg := fmt.Sprintf("node %q rejected: %s", e.NodeType, reasonErrors[e.Reason])
	if e.ParentID != "" {
		msg += fmt.Sprintf(" (parent %s)", e.ParentID)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *RejectionError) Is(target error) bool {
	return reasonErrors[e.Reason] == target
}

// ReasonOf extracts the rejection reason from err, if any.
func ReasonOf(err error) (RejectReason, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}

func reject(reason RejectReason, t catalog.NodeType, parentID, detail string) *RejectionError {
	return &RejectionError{Reason: reason, NodeType: t, ParentID: parentID, Detail: detail}
}
