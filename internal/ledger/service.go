package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// maxNumberAttempts bounds the retry loop around sequential numbering.
// The unique index is the real guard; the retry only absorbs the conflict.
const maxNumberAttempts = 10

// AuditPort records ledger events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates journal creation, posting, and reversal. Other
// modules (invoices, treasury posting) call it directly to post their own
// derived entries.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ItemInput describes a journal line.
type ItemInput struct {
	CodeID      int64
	PartyID     *int64
	DetailID    *int64
	Debit       float64
	Credit      float64
	Description string
}

// CreateInput groups fields required to create a journal.
type CreateInput struct {
	FiscalYearID int64
	Date         time.Time
	Description  string
	Items        []ItemInput
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return ErrNoItems
	}
	for idx, item := range items {
		if item.CodeID == 0 {
			return shared.Validation(fmt.Sprintf("ledger: item %d missing code", idx))
		}
		if item.Debit < 0 || item.Credit < 0 {
			return shared.Validation(fmt.Sprintf("ledger: item %d negative amount", idx))
		}
		if item.Debit > 0 && item.Credit > 0 {
			return ErrBothSides
		}
	}
	if !Balanced(toItems(0, items)) {
		return ErrUnbalanced
	}
	return nil
}

func toItems(journalID int64, inputs []ItemInput) []Item {
	items := make([]Item, 0, len(inputs))
	for idx, in := range inputs {
		items = append(items, Item{
			JournalID:   journalID,
			CodeID:      in.CodeID,
			PartyID:     in.PartyID,
			DetailID:    in.DetailID,
			Debit:       in.Debit,
			Credit:      in.Credit,
			Description: in.Description,
			Position:    idx,
		})
	}
	return items
}

// Create validates and persists a draft journal with a per-year sequential
// reference number and code.
func (s *Service) Create(ctx context.Context, input CreateInput) (Journal, error) {
	if input.FiscalYearID == 0 {
		return Journal{}, shared.Validation("ledger: fiscal year required")
	}
	if err := validateItems(input.Items); err != nil {
		return Journal{}, err
	}
	var journal Journal
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			start, end, err := tx.YearSpan(ctx, input.FiscalYearID)
			if err != nil {
				return err
			}
			if input.Date.Before(start) || input.Date.After(end) {
				return ErrDateOutOfRange
			}
			refSeq, code, err := tx.NextNumbers(ctx, input.FiscalYearID)
			if err != nil {
				return err
			}
			journal = Journal{
				FiscalYearID: input.FiscalYearID,
				RefNo:        fmt.Sprintf("%d", refSeq),
				RefSeq:       refSeq,
				Code:         code,
				Date:         input.Date,
				Description:  input.Description,
				Status:       StatusDraft,
			}
			id, err := tx.InsertJournal(ctx, journal)
			if err != nil {
				return err
			}
			journal.ID = id
			journal.Items = toItems(id, input.Items)
			return tx.InsertItems(ctx, id, journal.Items)
		})
		if errors.Is(err, ErrNumberConflict) {
			continue
		}
		if err != nil {
			return Journal{}, err
		}
		return journal, nil
	}
	return Journal{}, ErrNumberExhausted
}

// Update replaces a draft journal's header fields and items.
func (s *Service) Update(ctx context.Context, id int64, input CreateInput) (Journal, error) {
	if err := validateItems(input.Items); err != nil {
		return Journal{}, err
	}
	var journal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetJournalWithItems(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrNotDraft
		}
		start, end, err := tx.YearSpan(ctx, current.FiscalYearID)
		if err != nil {
			return err
		}
		if input.Date.Before(start) || input.Date.After(end) {
			return ErrDateOutOfRange
		}
		current.Date = input.Date
		current.Description = input.Description
		if err := tx.UpdateJournal(ctx, current); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		current.Items = toItems(id, input.Items)
		if err := tx.InsertItems(ctx, id, current.Items); err != nil {
			return err
		}
		journal = current
		return nil
	})
	if err != nil {
		return Journal{}, err
	}
	return journal, nil
}

// Delete removes a draft journal.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetJournalWithItems(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrNotDraft
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		return tx.DeleteJournal(ctx, id)
	})
}

// Post re-derives totals from the persisted items, never from client
// input, and transitions the journal to POSTED. Posted journals are
// immutable afterwards.
func (s *Service) Post(ctx context.Context, id int64, actorID int64) (Journal, error) {
	var journal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetJournalWithItems(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(current.Status, StatusPosted) {
			return ErrNotDraft
		}
		if len(current.Items) == 0 {
			return ErrNoItems
		}
		if !Balanced(current.Items) {
			return ErrUnbalanced
		}
		if err := tx.UpdateStatus(ctx, id, StatusPosted); err != nil {
			return err
		}
		current.Status = StatusPosted
		journal = current
		return nil
	})
	if err != nil {
		return Journal{}, err
	}
	s.record(ctx, actorID, "journal.post", journal.ID, map[string]any{"ref_no": journal.RefNo})
	return journal, nil
}

// Reverse creates a new posted journal dated the same as the original,
// with every item's debit and credit swapped. The original stays intact.
func (s *Service) Reverse(ctx context.Context, id int64, actorID int64) (Journal, error) {
	var reversal Journal
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			original, err := tx.GetJournalWithItems(ctx, id)
			if err != nil {
				return err
			}
			if original.Status != StatusPosted {
				return ErrNotPosted
			}
			refSeq, code, err := tx.NextNumbers(ctx, original.FiscalYearID)
			if err != nil {
				return err
			}
			reversal = Journal{
				FiscalYearID: original.FiscalYearID,
				RefNo:        "REV-" + original.RefNo,
				RefSeq:       refSeq,
				Code:         code,
				Date:         original.Date,
				Description:  "Reversal: " + original.Description,
				Status:       StatusPosted,
			}
			newID, err := tx.InsertJournal(ctx, reversal)
			if err != nil {
				return err
			}
			reversal.ID = newID
			reversal.Items = reverseItems(newID, original.Items)
			return tx.InsertItems(ctx, newID, reversal.Items)
		})
		if errors.Is(err, ErrNumberConflict) {
			continue
		}
		if err != nil {
			return Journal{}, err
		}
		s.record(ctx, actorID, "journal.reverse", id, map[string]any{
			"reversal_id":  reversal.ID,
			"reversal_ref": reversal.RefNo,
		})
		return reversal, nil
	}
	return Journal{}, ErrNumberExhausted
}

func reverseItems(journalID int64, items []Item) []Item {
	out := make([]Item, 0, len(items))
	for idx, item := range items {
		out = append(out, Item{
			JournalID:   journalID,
			CodeID:      item.CodeID,
			PartyID:     item.PartyID,
			DetailID:    item.DetailID,
			Debit:       item.Credit,
			Credit:      item.Debit,
			Description: "Reversal " + item.Description,
			Position:    idx,
		})
	}
	return out
}

// Get fetches a journal with its items.
func (s *Service) Get(ctx context.Context, id int64) (Journal, error) {
	return s.repo.GetJournal(ctx, id)
}

// List returns journal headers by filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Journal, int, error) {
	return s.repo.ListJournals(ctx, filter)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}
