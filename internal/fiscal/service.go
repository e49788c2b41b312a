package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// AuditPort records fiscal-year events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service enforces the fiscal-year lifecycle.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the fiscal-year service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ensureExclusivity is the single invariant check invoked inside every
// transaction that can change the open flag.
func ensureExclusivity(ctx context.Context, tx TxRepository) error {
	open, err := tx.CountOpen(ctx)
	if err != nil {
		return err
	}
	if open > 1 {
		return ErrOpenExclusivity
	}
	return nil
}

// CreateInput groups fields for creating a year.
type CreateInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// Create inserts a new fiscal year, closed by default.
func (s *Service) Create(ctx context.Context, input CreateInput) (Year, error) {
	if input.Name == "" {
		return Year{}, shared.Validation("fiscal: year name required")
	}
	if !input.StartDate.Before(input.EndDate) {
		return Year{}, ErrInvalidRange
	}
	var year Year
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		taken, err := tx.YearStartingOn(ctx, input.StartDate)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateRange
		}
		year = Year{Name: input.Name, StartDate: input.StartDate, EndDate: input.EndDate, IsClosed: true}
		id, err := tx.InsertYear(ctx, year)
		if err != nil {
			return err
		}
		year.ID = id
		return nil
	})
	if err != nil {
		return Year{}, err
	}
	return year, nil
}

// Open makes the given year the single open year: every other year is
// closed first, all within one transaction.
func (s *Service) Open(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetYearForUpdate(ctx, id); err != nil {
			return err
		}
		if err := tx.CloseAll(ctx); err != nil {
			return err
		}
		if err := tx.SetOpen(ctx, id); err != nil {
			return err
		}
		return ensureExclusivity(ctx, tx)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "fiscal.open", id, nil)
	return nil
}

// OpenNext rolls a closed year forward: the new year covers
// [end+1 day, start+1 year-1 day] and becomes the open year.
func (s *Service) OpenNext(ctx context.Context, id int64, name string, actorID int64) (Year, error) {
	var year Year
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		source, err := tx.GetYearForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !source.IsClosed {
			return ErrMustBeClosed
		}
		start := source.EndDate.AddDate(0, 0, 1)
		end := start.AddDate(1, 0, 0).AddDate(0, 0, -1)
		taken, err := tx.YearStartingOn(ctx, start)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateRange
		}
		if name == "" {
			name = fmt.Sprintf("FY%d", start.Year())
		}
		if err := tx.CloseAll(ctx); err != nil {
			return err
		}
		year = Year{Name: name, StartDate: start, EndDate: end, IsClosed: false}
		newID, err := tx.InsertYear(ctx, year)
		if err != nil {
			return err
		}
		year.ID = newID
		return ensureExclusivity(ctx, tx)
	})
	if err != nil {
		return Year{}, err
	}
	s.record(ctx, actorID, "fiscal.open_next", year.ID, map[string]any{"source_id": id})
	return year, nil
}

// Delete removes a year without documents. When the deleted year was the
// open one, a fallback year is re-opened in the same transaction so the
// exclusivity invariant is never observably violated.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		year, err := tx.GetYearForUpdate(ctx, id)
		if err != nil {
			return err
		}
		documents, err := tx.HasDocuments(ctx, id)
		if err != nil {
			return err
		}
		if documents {
			return ErrHasDocuments
		}
		if err := tx.DeleteYear(ctx, id); err != nil {
			return err
		}
		if !year.IsClosed {
			fallback, err := tx.FallbackYear(ctx, id, year.StartDate)
			if err != nil {
				return err
			}
			if fallback != nil {
				if err := tx.SetOpen(ctx, fallback.ID); err != nil {
					return err
				}
			}
		}
		return ensureExclusivity(ctx, tx)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "fiscal.delete", id, nil)
	return nil
}

// UpdateInput groups fields for editing a year.
type UpdateInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// Update edits a year; date changes are rejected once documents exist.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Year, error) {
	if input.Name == "" {
		return Year{}, shared.Validation("fiscal: year name required")
	}
	if !input.StartDate.Before(input.EndDate) {
		return Year{}, ErrInvalidRange
	}
	var year Year
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetYearForUpdate(ctx, id)
		if err != nil {
			return err
		}
		datesChanged := !current.StartDate.Equal(input.StartDate) || !current.EndDate.Equal(input.EndDate)
		if datesChanged {
			documents, err := tx.HasDocuments(ctx, id)
			if err != nil {
				return err
			}
			if documents {
				return ErrHasDocuments
			}
		}
		current.Name = input.Name
		current.StartDate = input.StartDate
		current.EndDate = input.EndDate
		if err := tx.UpdateYear(ctx, current); err != nil {
			return err
		}
		year = current
		return nil
	})
	if err != nil {
		return Year{}, err
	}
	return year, nil
}

// Get fetches a single year.
func (s *Service) Get(ctx context.Context, id int64) (Year, error) {
	return s.repo.GetYear(ctx, id)
}

// List returns all years ordered by start date.
func (s *Service) List(ctx context.Context) ([]Year, error) {
	return s.repo.ListYears(ctx)
}

// OpenYear returns the currently open year.
func (s *Service) OpenYear(ctx context.Context) (Year, error) {
	return s.repo.OpenYear(ctx)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "fiscal_year",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}
