// Package coa manages the chart-of-accounts hierarchy and the global
// detail catalogue.
package coa

import (
	"regexp"
	"time"

	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// NodeKind enumerates hierarchy levels.
type NodeKind string

const (
	NodeKindGroup    NodeKind = "GROUP"
	NodeKindGeneral  NodeKind = "GENERAL"
	NodeKindSpecific NodeKind = "SPECIFIC"
)

// Nature marks the normal balance side of an account node.
type Nature string

const (
	NatureDebit  Nature = "DEBIT"
	NatureCredit Nature = "CREDIT"
)

// DetailKind separates user-defined details from rows owned by the
// treasury subsystem.
type DetailKind string

const (
	DetailKindUser   DetailKind = "USER"
	DetailKindSystem DetailKind = "SYSTEM"
)

// CodeNode models a chart-of-accounts node. Codes are unique across the
// whole namespace regardless of kind because journal items reference a
// single code id space.
type CodeNode struct {
	ID        int64
	ParentID  *int64
	Code      string
	Title     string
	Kind      NodeKind
	IsActive  bool
	Nature    *Nature
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Detail is a global, unprefixed four-digit catalogue entry attachable to
// several leaf hierarchy nodes.
type Detail struct {
	ID        int64
	Code      string
	Title     string
	Kind      DetailKind
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DetailLink attaches a detail to a leaf hierarchy node.
type DetailLink struct {
	ID        int64
	DetailID  int64
	NodeID    int64
	IsPrimary bool
	Position  int
	CreatedAt time.Time
}

var (
	// ErrInvalidParent indicates the parent kind rule was violated.
	ErrInvalidParent = shared.Invariant("coa: parent does not match node kind")
	// ErrDuplicateCode indicates the code exists elsewhere in the namespace.
	ErrDuplicateCode = shared.Conflict("coa: code already exists")
	// ErrNodeNotFound indicates a missing node.
	ErrNodeNotFound = shared.NotFound("coa: node not found")
	// ErrDetailNotFound indicates a missing detail.
	ErrDetailNotFound = shared.NotFound("coa: detail not found")
	// ErrMustBeLeaf indicates a detail link against a non-leaf node.
	ErrMustBeLeaf = shared.Invariant("coa: detail links require a leaf node")
	// ErrHasChildren blocks deleting a node with descendants.
	ErrHasChildren = shared.Invariant("coa: node has descendants")
	// ErrNodeReferenced blocks deleting a node referenced by journal items.
	ErrNodeReferenced = shared.Conflict("coa: node is referenced by journal items")
	// ErrDetailReferenced blocks deleting a referenced detail.
	ErrDetailReferenced = shared.Conflict("coa: detail is referenced")
	// ErrSystemManaged rejects generic-API writes on treasury-owned details.
	ErrSystemManaged = shared.Invariant("coa: system-managed detail is owned by its subsystem")
	// ErrInvalidDetailCode rejects codes not matching four digits.
	ErrInvalidDetailCode = shared.Validation("coa: detail code must be exactly four digits")
	// ErrNoCodesAvailable indicates the detail code space is exhausted.
	ErrNoCodesAvailable = shared.Configuration("coa: no detail codes available")
	// ErrLinkExists indicates the detail is already linked to the node.
	ErrLinkExists = shared.Conflict("coa: detail already linked to node")
)

var detailCodePattern = regexp.MustCompile(`^\d{4}$`)

// ValidDetailCode reports whether code matches the four-digit format.
func ValidDetailCode(code string) bool {
	return detailCodePattern.MatchString(code)
}

// parentKind returns the required parent kind, empty for root kinds.
func parentKind(kind NodeKind) (NodeKind, bool) {
	switch kind {
	case NodeKindGroup:
		return "", true
	case NodeKindGeneral:
		return NodeKindGroup, true
	case NodeKindSpecific:
		return NodeKindGeneral, true
	}
	return "", false
}
