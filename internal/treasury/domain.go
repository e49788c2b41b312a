// Package treasury stores payment instruments (banks, accounts, card
// readers, cashboxes, checkbooks, checks) and the receipt/payment
// documents that reference them. Check state changes are driven only by
// document saves, never by direct edits.
package treasury

import (
	"time"

	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// CheckType separates received checks from checks drawn on own accounts.
type CheckType string

const (
	CheckIncoming CheckType = "INCOMING"
	CheckOutgoing CheckType = "OUTGOING"
)

// CheckStatus enumerates the check state machine.
type CheckStatus string

const (
	// CheckCreated marks an incoming check received but not yet deposited.
	CheckCreated CheckStatus = "CREATED"
	// CheckInCashbox marks an incoming check recorded via a receipt.
	CheckInCashbox CheckStatus = "INCASHBOX"
	// CheckIssued marks an outgoing check drawn from a checkbook.
	CheckIssued CheckStatus = "ISSUED"
	// CheckSpent marks a check consumed by a payment.
	CheckSpent CheckStatus = "SPENT"
)

// checkTransitions is the explicit state table. Reversions (spent back to
// incashbox or issued) happen when a document save drops the referencing
// item.
var checkTransitions = map[CheckStatus][]CheckStatus{
	CheckCreated:   {CheckInCashbox},
	CheckInCashbox: {CheckCreated, CheckSpent},
	CheckIssued:    {CheckSpent},
	CheckSpent:     {CheckInCashbox, CheckIssued},
}

// CanTransitionCheck reports whether the status change is in the table.
func CanTransitionCheck(from, to CheckStatus) bool {
	for _, next := range checkTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckbookStatus enumerates checkbook states.
type CheckbookStatus string

const (
	CheckbookActive    CheckbookStatus = "ACTIVE"
	CheckbookExhausted CheckbookStatus = "EXHAUSTED"
)

// DocumentStatus enumerates receipt/payment lifecycle values. SENT is
// terminal: the document has been compiled into a journal.
type DocumentStatus string

const (
	DocumentDraft DocumentStatus = "DRAFT"
	DocumentSent  DocumentStatus = "SENT"
)

// InstrumentType enumerates payment mechanisms on document items.
type InstrumentType string

const (
	InstrumentCash     InstrumentType = "CASH"
	InstrumentCard     InstrumentType = "CARD"
	InstrumentTransfer InstrumentType = "TRANSFER"
	InstrumentCheck    InstrumentType = "CHECK"
	// InstrumentCheckIn spends an in-cashbox incoming check on a payment.
	InstrumentCheckIn InstrumentType = "CHECKIN"
)

// Bank is a bank master record.
type Bank struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BankAccount owns one system-managed detail used as its ledger
// counter-account.
type BankAccount struct {
	ID              int64
	BankID          int64
	Number          string
	Name            string
	HandlerDetailID int64
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CardReader is a POS terminal bound to a bank account.
type CardReader struct {
	ID              int64
	BankAccountID   int64
	Name            string
	HandlerDetailID int64
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Cashbox keeps its four-digit code and its mirrored detail row in
// lockstep: create, rename, and delete cascade together.
type Cashbox struct {
	ID              int64
	Code            string
	Name            string
	HandlerDetailID int64
	StartingAmount  float64
	StartingDate    time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Checkbook is a page range drawn against a bank account.
type Checkbook struct {
	ID            int64
	BankAccountID int64
	StartNumber   int64
	PageCount     int
	Status        CheckbookStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LastNumber returns the final page number of the book.
func (b Checkbook) LastNumber() int64 {
	return b.StartNumber + int64(b.PageCount) - 1
}

// Check models both incoming and outgoing checks.
type Check struct {
	ID                  int64
	Type                CheckType
	CheckbookID         *int64
	Number              string
	Amount              float64
	IssueDate           time.Time
	DueDate             time.Time
	BeneficiaryDetailID *int64
	Status              CheckStatus
	CashboxID           *int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DocumentKind distinguishes receipts from payments where the logic is shared.
type DocumentKind string

const (
	KindReceipt DocumentKind = "RECEIPT"
	KindPayment DocumentKind = "PAYMENT"
)

// Document is a receipt or payment header.
type Document struct {
	ID            int64
	Kind          DocumentKind
	Number        int64
	Status        DocumentStatus
	Date          time.Time
	FiscalYearID  int64
	DetailID      int64
	SpecialCodeID *int64
	CashboxID     *int64
	TotalAmount   float64
	JournalID     *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Items         []DocumentItem
}

// DocumentItem is one instrument line on a receipt or payment.
type DocumentItem struct {
	ID            int64
	DocumentID    int64
	Instrument    InstrumentType
	Amount        float64
	BankAccountID *int64
	CardReaderID  *int64
	CheckID       *int64
	Reference     string
	Position      int
}

var (
	// ErrBankNotFound indicates a missing bank.
	ErrBankNotFound = shared.NotFound("treasury: bank not found")
	// ErrAccountNotFound indicates a missing bank account.
	ErrAccountNotFound = shared.NotFound("treasury: bank account not found")
	// ErrCardReaderNotFound indicates a missing card reader.
	ErrCardReaderNotFound = shared.NotFound("treasury: card reader not found")
	// ErrCashboxNotFound indicates a missing cashbox.
	ErrCashboxNotFound = shared.NotFound("treasury: cashbox not found")
	// ErrCheckbookNotFound indicates a missing checkbook.
	ErrCheckbookNotFound = shared.NotFound("treasury: checkbook not found")
	// ErrCheckNotFound indicates a missing check.
	ErrCheckNotFound = shared.NotFound("treasury: check not found")
	// ErrDocumentNotFound indicates a missing receipt or payment.
	ErrDocumentNotFound = shared.NotFound("treasury: document not found")
	// ErrOutOfRange rejects check numbers outside the checkbook pages.
	ErrOutOfRange = shared.Invariant("treasury: check number outside checkbook range")
	// ErrDuplicateNumber rejects a check number already issued in the book.
	ErrDuplicateNumber = shared.Conflict("treasury: check number already issued")
	// ErrCheckbookExhausted rejects issuing from a used-up book.
	ErrCheckbookExhausted = shared.Conflict("treasury: checkbook exhausted")
	// ErrCheckState rejects a document referencing a check whose state
	// does not admit the requested transition.
	ErrCheckState = shared.Invariant("treasury: check state does not allow this operation")
	// ErrDocumentSent blocks edits of compiled documents.
	ErrDocumentSent = shared.Conflict("treasury: document already sent")
	// ErrTotalMismatch indicates header total disagrees with item sum.
	ErrTotalMismatch = shared.Invariant("treasury: total amount does not match items")
	// ErrCashboxRequired indicates cash or check items without a cashbox.
	ErrCashboxRequired = shared.Invariant("treasury: cash and check items require a cashbox")
	// ErrNoHandlerCodes indicates the system detail code space is exhausted.
	ErrNoHandlerCodes = shared.Configuration("treasury: no detail codes available")
	// ErrNumberExhausted indicates document numbering kept conflicting.
	ErrNumberExhausted = shared.Configuration("treasury: could not allocate document number")
	// ErrInstrumentInUse blocks deleting instruments referenced by documents.
	ErrInstrumentInUse = shared.Conflict("treasury: instrument is referenced by documents")
	// ErrDuplicateCashboxCode rejects a cashbox code already in use.
	ErrDuplicateCashboxCode = shared.Conflict("treasury: cashbox code already exists")
)
