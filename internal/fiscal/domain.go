// Package fiscal manages fiscal-year lifecycle and the exclusivity invariant:
// at most one year is open at any time.
package fiscal

import (
	"time"

	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// Year represents a fiscal-year window. Years are created closed and opened
// exclusively through the service.
type Year struct {
	ID        int64
	Name      string
	StartDate time.Time
	EndDate   time.Time
	IsClosed  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	// ErrYearNotFound indicates a missing fiscal year.
	ErrYearNotFound = shared.NotFound("fiscal: year not found")
	// ErrMustBeClosed requires the source year of a roll-forward to be closed.
	ErrMustBeClosed = shared.Invariant("fiscal: source year must be closed")
	// ErrDuplicateRange indicates a year already starts on the computed date.
	ErrDuplicateRange = shared.Conflict("fiscal: a year already starts on that date")
	// ErrHasDocuments blocks deletion and date edits of referenced years.
	ErrHasDocuments = shared.Conflict("fiscal: year has documents")
	// ErrInvalidRange rejects start dates not before end dates.
	ErrInvalidRange = shared.Validation("fiscal: start date must precede end date")
	// ErrOpenExclusivity signals the single-open-year invariant was broken.
	// Surfacing it aborts the transaction before the violation is observable.
	ErrOpenExclusivity = shared.Invariant("fiscal: more than one open year")
)
