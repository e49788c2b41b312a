package treasury

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/daftar-erp/daftar-erp/internal/ledger"
	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// DocumentItemInput is one instrument line as submitted by a client.
type DocumentItemInput struct {
	Instrument    InstrumentType
	Amount        float64
	BankAccountID *int64
	CardReaderID  *int64
	CheckID       *int64
	Reference     string
}

// DocumentInput groups fields for saving a receipt or payment. A zero ID
// creates a new draft; a non-zero ID rewrites an existing one.
type DocumentInput struct {
	ID            int64
	Date          time.Time
	FiscalYearID  int64
	DetailID      int64
	SpecialCodeID *int64
	CashboxID     *int64
	TotalAmount   float64
	Items         []DocumentItemInput
}

// SaveReceipt creates or rewrites a draft receipt. Incoming checks on its
// items move between created and incashbox as lines appear and disappear.
func (s *Service) SaveReceipt(ctx context.Context, input DocumentInput, actorID int64) (Document, error) {
	return s.saveDocument(ctx, KindReceipt, input, actorID)
}

// SavePayment creates or rewrites a draft payment. Outgoing checks move
// to spent, and in-cashbox incoming checks are spent through checkin
// lines.
func (s *Service) SavePayment(ctx context.Context, input DocumentInput, actorID int64) (Document, error) {
	return s.saveDocument(ctx, KindPayment, input, actorID)
}

// DeleteReceipt removes a draft receipt and reverts its check lines.
func (s *Service) DeleteReceipt(ctx context.Context, id int64, actorID int64) error {
	return s.deleteDocument(ctx, KindReceipt, id, actorID)
}

// DeletePayment removes a draft payment and reverts its check lines.
func (s *Service) DeletePayment(ctx context.Context, id int64, actorID int64) error {
	return s.deleteDocument(ctx, KindPayment, id, actorID)
}

// GetReceipt fetches a receipt with items.
func (s *Service) GetReceipt(ctx context.Context, id int64) (Document, error) {
	return s.repo.GetDocument(ctx, KindReceipt, id)
}

// GetPayment fetches a payment with items.
func (s *Service) GetPayment(ctx context.Context, id int64) (Document, error) {
	return s.repo.GetDocument(ctx, KindPayment, id)
}

// ListReceipts returns receipt headers matching the filter.
func (s *Service) ListReceipts(ctx context.Context, filter DocumentFilter) ([]Document, int, error) {
	return s.repo.ListDocuments(ctx, KindReceipt, filter)
}

// ListPayments returns payment headers matching the filter.
func (s *Service) ListPayments(ctx context.Context, filter DocumentFilter) ([]Document, int, error) {
	return s.repo.ListDocuments(ctx, KindPayment, filter)
}

// validateDocument enforces the structural rules shared by receipts and
// payments. Amount totals compare with the same tolerance the ledger
// uses.
func validateDocument(kind DocumentKind, input DocumentInput) error {
	if input.FiscalYearID == 0 {
		return shared.Validation("treasury: fiscal year required")
	}
	if input.DetailID == 0 {
		return shared.Validation("treasury: counterparty detail required")
	}
	var sum float64
	needsCashbox := false
	for i, item := range input.Items {
		if item.Amount <= 0 {
			return shared.Validation(fmt.Sprintf("treasury: item %d amount must be positive", i+1))
		}
		sum += item.Amount
		switch item.Instrument {
		case InstrumentCash:
			needsCashbox = true
		case InstrumentCard:
			if item.CardReaderID == nil {
				return shared.Validation(fmt.Sprintf("treasury: item %d requires a card reader", i+1))
			}
		case InstrumentTransfer:
			if item.BankAccountID == nil {
				return shared.Validation(fmt.Sprintf("treasury: item %d requires a bank account", i+1))
			}
		case InstrumentCheck:
			if item.CheckID == nil {
				return shared.Validation(fmt.Sprintf("treasury: item %d requires a check", i+1))
			}
			if kind == KindReceipt {
				needsCashbox = true
			}
		case InstrumentCheckIn:
			if kind != KindPayment {
				return shared.Validation(fmt.Sprintf("treasury: item %d: checkin lines belong on payments", i+1))
			}
			if item.CheckID == nil {
				return shared.Validation(fmt.Sprintf("treasury: item %d requires a check", i+1))
			}
		default:
			return shared.Validation(fmt.Sprintf("treasury: item %d has unknown instrument %q", i+1, item.Instrument))
		}
	}
	if len(input.Items) > 0 && math.Abs(sum-input.TotalAmount) > ledger.Epsilon {
		return ErrTotalMismatch
	}
	if needsCashbox && input.CashboxID == nil {
		return ErrCashboxRequired
	}
	return nil
}

// checkUse maps an item's check reference to the transition it demands.
type checkUse struct {
	instrument InstrumentType
}

func checkUses(items []DocumentItemInput) map[int64]checkUse {
	uses := make(map[int64]checkUse)
	for _, item := range items {
		if item.CheckID == nil {
			continue
		}
		if item.Instrument != InstrumentCheck && item.Instrument != InstrumentCheckIn {
			continue
		}
		uses[*item.CheckID] = checkUse{instrument: item.Instrument}
	}
	return uses
}

func storedCheckUses(items []DocumentItem) map[int64]checkUse {
	uses := make(map[int64]checkUse)
	for _, item := range items {
		if item.CheckID == nil {
			continue
		}
		if item.Instrument != InstrumentCheck && item.Instrument != InstrumentCheckIn {
			continue
		}
		uses[*item.CheckID] = checkUse{instrument: item.Instrument}
	}
	return uses
}

// applyCheckUse advances one check for a newly referencing item. The row
// is locked first so concurrent saves serialise on the check.
func applyCheckUse(ctx context.Context, tx TxRepository, kind DocumentKind, use checkUse, checkID int64, cashboxID *int64) error {
	check, err := tx.GetCheckForUpdate(ctx, checkID)
	if err != nil {
		return err
	}
	var from CheckStatus
	var to CheckStatus
	var box *int64
	switch {
	case kind == KindReceipt && use.instrument == InstrumentCheck:
		if check.Type != CheckIncoming {
			return ErrCheckState
		}
		from, to, box = CheckCreated, CheckInCashbox, cashboxID
	case kind == KindPayment && use.instrument == InstrumentCheckIn:
		if check.Type != CheckIncoming {
			return ErrCheckState
		}
		from, to, box = CheckInCashbox, CheckSpent, check.CashboxID
	case kind == KindPayment && use.instrument == InstrumentCheck:
		if check.Type != CheckOutgoing {
			return ErrCheckState
		}
		from, to, box = CheckIssued, CheckSpent, nil
	default:
		return shared.Validation("treasury: instrument cannot reference a check")
	}
	if check.Status != from || !CanTransitionCheck(from, to) {
		return ErrCheckState
	}
	return tx.SetCheckState(ctx, checkID, to, box)
}

// revertCheckUse undoes the transition when a save or delete drops the
// referencing item. A check already advanced further by another document
// cannot be released here. No reference count is needed before the
// incashbox→created drop: applyCheckUse deposits only from the exact
// created status, so at most one receipt can hold a check in a cashbox.
func revertCheckUse(ctx context.Context, tx TxRepository, kind DocumentKind, use checkUse, checkID int64) error {
	check, err := tx.GetCheckForUpdate(ctx, checkID)
	if err != nil {
		return err
	}
	var from CheckStatus
	var to CheckStatus
	var box *int64
	switch {
	case kind == KindReceipt && use.instrument == InstrumentCheck:
		from, to, box = CheckInCashbox, CheckCreated, nil
	case kind == KindPayment && use.instrument == InstrumentCheckIn:
		from, to, box = CheckSpent, CheckInCashbox, check.CashboxID
	case kind == KindPayment && use.instrument == InstrumentCheck:
		from, to, box = CheckSpent, CheckIssued, nil
	default:
		return ErrCheckState
	}
	if check.Status != from || !CanTransitionCheck(from, to) {
		return ErrCheckState
	}
	return tx.SetCheckState(ctx, checkID, to, box)
}

func (s *Service) saveDocument(ctx context.Context, kind DocumentKind, input DocumentInput, actorID int64) (Document, error) {
	if err := validateDocument(kind, input); err != nil {
		return Document{}, err
	}
	if input.ID != 0 {
		return s.rewriteDocument(ctx, kind, input, actorID)
	}
	return s.createDocument(ctx, kind, input, actorID)
}

func (s *Service) createDocument(ctx context.Context, kind DocumentKind, input DocumentInput, actorID int64) (Document, error) {
	var doc Document
	var err error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			number, err := tx.NextDocumentNumber(ctx, kind, input.FiscalYearID)
			if err != nil {
				return err
			}
			doc = Document{
				Kind:          kind,
				Number:        number,
				Status:        DocumentDraft,
				Date:          input.Date,
				FiscalYearID:  input.FiscalYearID,
				DetailID:      input.DetailID,
				SpecialCodeID: input.SpecialCodeID,
				CashboxID:     input.CashboxID,
				TotalAmount:   input.TotalAmount,
			}
			id, err := tx.InsertDocument(ctx, doc)
			if err != nil {
				return err
			}
			doc.ID = id
			doc.Items = buildItems(id, input.Items)
			if err := tx.InsertItems(ctx, kind, id, doc.Items); err != nil {
				return err
			}
			for checkID, use := range checkUses(input.Items) {
				if err := applyCheckUse(ctx, tx, kind, use, checkID, input.CashboxID); err != nil {
					return err
				}
			}
			return nil
		})
		if !errors.Is(err, ErrNumberConflict) {
			break
		}
	}
	if errors.Is(err, ErrNumberConflict) {
		return Document{}, ErrNumberExhausted
	}
	if err != nil {
		return Document{}, err
	}
	s.record(ctx, actorID, "treasury."+string(kind)+".create", string(kind), doc.ID, nil)
	return doc, nil
}

// rewriteDocument replaces a draft's header and items. Check transitions
// come from the difference between the stored and submitted item sets,
// so re-saving with the same lines is a no-op for check state.
func (s *Service) rewriteDocument(ctx context.Context, kind DocumentKind, input DocumentInput, actorID int64) (Document, error) {
	var doc Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetDocumentForUpdate(ctx, kind, input.ID)
		if err != nil {
			return err
		}
		if current.Status == DocumentSent {
			return ErrDocumentSent
		}
		before := storedCheckUses(current.Items)
		after := checkUses(input.Items)
		for checkID, use := range before {
			if _, kept := after[checkID]; !kept {
				if err := revertCheckUse(ctx, tx, kind, use, checkID); err != nil {
					return err
				}
			}
		}
		for checkID, use := range after {
			if _, had := before[checkID]; !had {
				if err := applyCheckUse(ctx, tx, kind, use, checkID, input.CashboxID); err != nil {
					return err
				}
			}
		}
		// A retained incoming check follows the receipt to its new cashbox.
		if kind == KindReceipt && !equalCashbox(current.CashboxID, input.CashboxID) {
			for checkID, use := range after {
				if _, had := before[checkID]; had && use.instrument == InstrumentCheck {
					if err := tx.SetCheckState(ctx, checkID, CheckInCashbox, input.CashboxID); err != nil {
						return err
					}
				}
			}
		}
		current.Date = input.Date
		current.DetailID = input.DetailID
		current.SpecialCodeID = input.SpecialCodeID
		current.CashboxID = input.CashboxID
		current.TotalAmount = input.TotalAmount
		if err := tx.UpdateDocument(ctx, current); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, kind, current.ID); err != nil {
			return err
		}
		current.Items = buildItems(current.ID, input.Items)
		if err := tx.InsertItems(ctx, kind, current.ID, current.Items); err != nil {
			return err
		}
		doc = current
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	s.record(ctx, actorID, "treasury."+string(kind)+".update", string(kind), doc.ID, nil)
	return doc, nil
}

func (s *Service) deleteDocument(ctx context.Context, kind DocumentKind, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetDocumentForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		if current.Status == DocumentSent {
			return ErrDocumentSent
		}
		for checkID, use := range storedCheckUses(current.Items) {
			if err := revertCheckUse(ctx, tx, kind, use, checkID); err != nil {
				return err
			}
		}
		if err := tx.DeleteItems(ctx, kind, id); err != nil {
			return err
		}
		return tx.DeleteDocument(ctx, kind, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "treasury."+string(kind)+".delete", string(kind), id, nil)
	return nil
}

func buildItems(documentID int64, inputs []DocumentItemInput) []DocumentItem {
	items := make([]DocumentItem, 0, len(inputs))
	for i, in := range inputs {
		items = append(items, DocumentItem{
			DocumentID:    documentID,
			Instrument:    in.Instrument,
			Amount:        in.Amount,
			BankAccountID: in.BankAccountID,
			CardReaderID:  in.CardReaderID,
			CheckID:       in.CheckID,
			Reference:     in.Reference,
			Position:      i,
		})
	}
	return items
}

func equalCashbox(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
