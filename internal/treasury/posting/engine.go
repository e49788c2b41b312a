package posting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daftar-erp/daftar-erp/internal/ledger"
	"github.com/daftar-erp/daftar-erp/internal/platform/db"
	"github.com/daftar-erp/daftar-erp/internal/shared"
	"github.com/daftar-erp/daftar-erp/internal/treasury"
)

// maxNumberAttempts bounds retries when journal numbering collides.
const maxNumberAttempts = 10

var (
	// ErrAlreadyPosted blocks compiling a document twice.
	ErrAlreadyPosted = shared.Conflict("posting: document already posted")
	// ErrMissingItems blocks compiling a document without lines.
	ErrMissingItems = shared.Invariant("posting: document has no items")
)

// AuditPort records posting events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Engine turns receipts and payments into journal entries. Every post is
// one transaction: the journal, its items, and the document's sent stamp
// commit together or not at all.
type Engine struct {
	pool  *pgxpool.Pool
	audit AuditPort
	now   func() time.Time
}

// NewEngine constructs the posting engine.
func NewEngine(pool *pgxpool.Pool, audit AuditPort) *Engine {
	return &Engine{pool: pool, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// PostReceipt compiles a draft receipt: one debit line per instrument
// item and one credit counter-line against the counterparty detail.
func (e *Engine) PostReceipt(ctx context.Context, id int64, actorID int64) (ledger.Journal, error) {
	return e.post(ctx, treasury.KindReceipt, id, actorID)
}

// PostPayment compiles a draft payment: one debit counter-line against
// the counterparty detail and one credit line per instrument item.
func (e *Engine) PostPayment(ctx context.Context, id int64, actorID int64) (ledger.Journal, error) {
	return e.post(ctx, treasury.KindPayment, id, actorID)
}

func (e *Engine) post(ctx context.Context, kind treasury.DocumentKind, id int64, actorID int64) (ledger.Journal, error) {
	var journal ledger.Journal
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		err := db.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
			var err error
			journal, err = e.compile(ctx, tx, kind, id)
			return err
		})
		if errors.Is(err, ledger.ErrNumberConflict) {
			continue
		}
		if err != nil {
			return ledger.Journal{}, err
		}
		e.record(ctx, actorID, kind, id, journal)
		return journal, nil
	}
	return ledger.Journal{}, ledger.ErrNumberExhausted
}

func (e *Engine) compile(ctx context.Context, tx pgx.Tx, kind treasury.DocumentKind, id int64) (ledger.Journal, error) {
	tre := treasury.NewTxRepository(tx)
	led := ledger.NewTxRepository(tx)
	res := resolver{store: txStore{tx: tx}}

	doc, err := tre.GetDocumentForUpdate(ctx, kind, id)
	if err != nil {
		return ledger.Journal{}, err
	}
	if doc.Status == treasury.DocumentSent {
		return ledger.Journal{}, ErrAlreadyPosted
	}
	if len(doc.Items) == 0 {
		return ledger.Journal{}, ErrMissingItems
	}
	var sum float64
	for _, item := range doc.Items {
		sum += item.Amount
	}
	if math.Abs(sum-doc.TotalAmount) > ledger.Epsilon {
		return ledger.Journal{}, treasury.ErrTotalMismatch
	}
	start, end, err := led.YearSpan(ctx, doc.FiscalYearID)
	if err != nil {
		return ledger.Journal{}, err
	}
	if doc.Date.Before(start) || doc.Date.After(end) {
		return ledger.Journal{}, ledger.ErrDateOutOfRange
	}

	lines, err := e.buildLines(ctx, tre, res, doc)
	if err != nil {
		return ledger.Journal{}, err
	}

	refSeq, code, err := led.NextNumbers(ctx, doc.FiscalYearID)
	if err != nil {
		return ledger.Journal{}, err
	}
	journal := ledger.Journal{
		FiscalYearID: doc.FiscalYearID,
		RefNo:        fmt.Sprintf("%d", refSeq),
		RefSeq:       refSeq,
		Code:         code,
		Date:         doc.Date,
		Description:  documentDescription(kind, doc.Number),
		Status:       ledger.StatusDraft,
	}
	journalID, err := led.InsertJournal(ctx, journal)
	if err != nil {
		return ledger.Journal{}, err
	}
	journal.ID = journalID
	journal.Items = lines
	if err := led.InsertItems(ctx, journalID, lines); err != nil {
		return ledger.Journal{}, err
	}
	if err := tre.MarkDocumentSent(ctx, kind, doc.ID, journalID); err != nil {
		return ledger.Journal{}, err
	}
	return journal, nil
}

// buildLines produces the journal items for a document: one line per
// instrument item plus the counter line carrying the counterparty detail.
func (e *Engine) buildLines(ctx context.Context, tre treasury.TxRepository, res resolver, doc treasury.Document) ([]ledger.Item, error) {
	lines := make([]ledger.Item, 0, len(doc.Items)+1)
	for _, item := range doc.Items {
		codeID, detailID, err := e.resolveLine(ctx, tre, res, doc, item)
		if err != nil {
			return nil, err
		}
		line := ledger.Item{
			CodeID:      codeID,
			DetailID:    detailID,
			Description: lineDescription(item),
			Position:    len(lines),
		}
		if doc.Kind == treasury.KindReceipt {
			line.Debit = item.Amount
		} else {
			line.Credit = item.Amount
		}
		lines = append(lines, line)
	}
	counterName := SettingReceiptCounterCode
	if doc.Kind == treasury.KindPayment {
		counterName = SettingPaymentCounterCode
	}
	counterCode, err := res.resolve(ctx, counterName, doc.SpecialCodeID)
	if err != nil {
		return nil, err
	}
	counter := ledger.Item{
		CodeID:   counterCode,
		DetailID: &doc.DetailID,
		Position: len(lines),
	}
	if doc.Kind == treasury.KindReceipt {
		counter.Credit = doc.TotalAmount
	} else {
		counter.Debit = doc.TotalAmount
	}
	lines = append(lines, counter)

	if !ledger.Balanced(lines) {
		return nil, ledger.ErrUnbalanced
	}
	return lines, nil
}

// resolveLine maps one instrument item to a catalogue code and the
// detail the amount is tracked under.
func (e *Engine) resolveLine(ctx context.Context, tre treasury.TxRepository, res resolver, doc treasury.Document, item treasury.DocumentItem) (int64, *int64, error) {
	switch item.Instrument {
	case treasury.InstrumentCash:
		box, err := e.cashbox(ctx, tre, doc.CashboxID)
		if err != nil {
			return 0, nil, err
		}
		codeID, err := res.resolve(ctx, SettingCashCode, nil)
		return codeID, &box.HandlerDetailID, err
	case treasury.InstrumentCard:
		if item.CardReaderID == nil {
			return 0, nil, shared.Validation("posting: card item without reader")
		}
		reader, err := tre.GetCardReader(ctx, *item.CardReaderID)
		if err != nil {
			return 0, nil, err
		}
		codeID, err := res.resolve(ctx, SettingCardCode, nil)
		return codeID, &reader.HandlerDetailID, err
	case treasury.InstrumentTransfer:
		if item.BankAccountID == nil {
			return 0, nil, shared.Validation("posting: transfer item without bank account")
		}
		account, err := tre.GetBankAccount(ctx, *item.BankAccountID)
		if err != nil {
			return 0, nil, err
		}
		codeID, err := res.resolve(ctx, SettingBankCode, nil)
		return codeID, &account.HandlerDetailID, err
	case treasury.InstrumentCheck, treasury.InstrumentCheckIn:
		if item.CheckID == nil {
			return 0, nil, shared.Validation("posting: check item without check")
		}
		// Check lines track the check's beneficiary, not the handler of
		// the instrument holding it.
		check, err := tre.GetCheckForUpdate(ctx, *item.CheckID)
		if err != nil {
			return 0, nil, err
		}
		name := SettingChecksInCode
		if doc.Kind == treasury.KindPayment && check.Type == treasury.CheckOutgoing {
			name = SettingChecksOutCode
		}
		codeID, err := res.resolve(ctx, name, nil)
		return codeID, check.BeneficiaryDetailID, err
	default:
		return 0, nil, shared.Validation(fmt.Sprintf("posting: unknown instrument %q", item.Instrument))
	}
}

func (e *Engine) cashbox(ctx context.Context, tre treasury.TxRepository, id *int64) (treasury.Cashbox, error) {
	if id == nil {
		return treasury.Cashbox{}, treasury.ErrCashboxRequired
	}
	return tre.GetCashbox(ctx, *id)
}

func lineDescription(item treasury.DocumentItem) string {
	if item.Reference != "" {
		return item.Reference
	}
	return string(item.Instrument)
}

func documentDescription(kind treasury.DocumentKind, number int64) string {
	if kind == treasury.KindPayment {
		return fmt.Sprintf("Payment #%d", number)
	}
	return fmt.Sprintf("Receipt #%d", number)
}

func (e *Engine) record(ctx context.Context, actorID int64, kind treasury.DocumentKind, id int64, journal ledger.Journal) {
	if e.audit == nil {
		return
	}
	_ = e.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "posting." + string(kind),
		Entity:   string(kind),
		EntityID: fmt.Sprintf("%d", id),
		Meta:     map[string]any{"journal_id": journal.ID, "ref_no": journal.RefNo},
		At:       e.now(),
	})
}
