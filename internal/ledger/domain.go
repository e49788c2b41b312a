// Package ledger owns journal headers and balanced line items, with the
// draft/posted lifecycle and the balance invariant.
package ledger

import (
	"math"
	"time"

	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// Epsilon is the tolerance used when comparing debit and credit totals.
// Stored amounts may be accumulated from floating arithmetic upstream
// (receipt and payment line sums), so exact equality would reject valid
// documents while anything looser would hide real imbalances.
const Epsilon = 1e-4

// Status enumerates the journal lifecycle.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusPosted Status = "POSTED"
)

// transitions is the explicit lifecycle table. Reversal never mutates a
// posted journal; it creates a new one, so POSTED is terminal here.
var transitions = map[Status][]Status{
	StatusDraft:  {StatusPosted},
	StatusPosted: {},
}

// CanTransition reports whether the status change is in the table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Journal captures a journal header and its items.
type Journal struct {
	ID           int64
	FiscalYearID int64
	RefNo        string
	// RefSeq is the per-year numeric sequence behind RefNo; reversals reuse
	// the original RefNo with a prefix but still consume a fresh sequence.
	RefSeq      int64
	Code        int64
	Date        time.Time
	Description string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Items       []Item
}

// Item stores a debit or credit amount against a chart-of-accounts code,
// optionally dimensioned by party and detail.
type Item struct {
	ID          int64
	JournalID   int64
	CodeID      int64
	PartyID     *int64
	DetailID    *int64
	Debit       float64
	Credit      float64
	Description string
	Position    int
}

// Balanced reports whether debit and credit totals agree within Epsilon.
func Balanced(items []Item) bool {
	var debit, credit float64
	for _, item := range items {
		debit += item.Debit
		credit += item.Credit
	}
	return math.Abs(debit-credit) <= Epsilon
}

var (
	// ErrUnbalanced indicates debit and credit totals differ beyond Epsilon.
	ErrUnbalanced = shared.Invariant("ledger: journal items must balance")
	// ErrBothSides indicates an item with both debit and credit positive.
	ErrBothSides = shared.Invariant("ledger: item cannot carry both debit and credit")
	// ErrNoItems indicates a journal without lines.
	ErrNoItems = shared.Validation("ledger: journal requires at least one item")
	// ErrNotDraft blocks edits and posting of non-draft journals.
	ErrNotDraft = shared.Conflict("ledger: journal is not draft")
	// ErrNotPosted blocks reversal of journals that were never posted.
	ErrNotPosted = shared.Conflict("ledger: journal is not posted")
	// ErrJournalNotFound indicates a missing journal.
	ErrJournalNotFound = shared.NotFound("ledger: journal not found")
	// ErrYearNotFound indicates the referenced fiscal year does not exist.
	ErrYearNotFound = shared.NotFound("ledger: fiscal year not found")
	// ErrDateOutOfRange indicates the journal date falls outside its year.
	ErrDateOutOfRange = shared.Invariant("ledger: date outside fiscal year")
	// ErrNumberExhausted indicates sequential numbering kept conflicting.
	ErrNumberExhausted = shared.Configuration("ledger: could not allocate journal number")
)
