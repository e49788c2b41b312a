package fiscal

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daftar-erp/daftar-erp/internal/platform/db"
)

// TxRepository exposes transactional fiscal-year operations.
type TxRepository interface {
	GetYearForUpdate(ctx context.Context, id int64) (Year, error)
	InsertYear(ctx context.Context, year Year) (int64, error)
	UpdateYear(ctx context.Context, year Year) error
	DeleteYear(ctx context.Context, id int64) error
	CloseAll(ctx context.Context) error
	SetOpen(ctx context.Context, id int64) error
	HasDocuments(ctx context.Context, id int64) (bool, error)
	YearStartingOn(ctx context.Context, date time.Time) (bool, error)
	// FallbackYear returns the chronologically previous year by start date,
	// or the next one when no previous exists, excluding the given id.
	FallbackYear(ctx context.Context, excludeID int64, before time.Time) (*Year, error)
	CountOpen(ctx context.Context) (int, error)
}

// RepositoryPort abstracts transactional repository behaviour for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetYear(ctx context.Context, id int64) (Year, error)
	ListYears(ctx context.Context) ([]Year, error)
	OpenYear(ctx context.Context) (Year, error)
}

// Repository persists fiscal years.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("fiscal repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const yearColumns = `id, name, start_date, end_date, is_closed, created_at, updated_at`

func scanYear(row pgx.Row) (Year, error) {
	var y Year
	err := row.Scan(&y.ID, &y.Name, &y.StartDate, &y.EndDate, &y.IsClosed, &y.CreatedAt, &y.UpdatedAt)
	return y, err
}

// GetYear fetches a year outside a transaction.
func (r *Repository) GetYear(ctx context.Context, id int64) (Year, error) {
	year, err := scanYear(r.pool.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Year{}, ErrYearNotFound
	}
	return year, err
}

// ListYears returns all fiscal years ordered by start date.
func (r *Repository) ListYears(ctx context.Context) ([]Year, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+yearColumns+` FROM fiscal_years ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var years []Year
	for rows.Next() {
		year, err := scanYear(rows)
		if err != nil {
			return nil, err
		}
		years = append(years, year)
	}
	return years, rows.Err()
}

// OpenYear returns the currently open year.
func (r *Repository) OpenYear(ctx context.Context) (Year, error) {
	year, err := scanYear(r.pool.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years WHERE is_closed=FALSE LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return Year{}, ErrYearNotFound
	}
	return year, err
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetYearForUpdate(ctx context.Context, id int64) (Year, error) {
	year, err := scanYear(r.tx.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Year{}, ErrYearNotFound
	}
	return year, err
}

func (r *txRepository) InsertYear(ctx context.Context, year Year) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO fiscal_years (name, start_date, end_date, is_closed)
VALUES ($1,$2,$3,$4) RETURNING id`, year.Name, year.StartDate, year.EndDate, year.IsClosed).Scan(&id)
	if db.IsUniqueViolation(err, "uq_fiscal_years_start_date") {
		return 0, ErrDuplicateRange
	}
	return id, err
}

func (r *txRepository) UpdateYear(ctx context.Context, year Year) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE fiscal_years SET name=$2, start_date=$3, end_date=$4, updated_at=NOW() WHERE id=$1`,
		year.ID, year.Name, year.StartDate, year.EndDate)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_fiscal_years_start_date") {
			return ErrDuplicateRange
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrYearNotFound
	}
	return nil
}

func (r *txRepository) DeleteYear(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM fiscal_years WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrYearNotFound
	}
	return nil
}

func (r *txRepository) CloseAll(ctx context.Context) error {
	_, err := r.tx.Exec(ctx, `UPDATE fiscal_years SET is_closed=TRUE, updated_at=NOW() WHERE is_closed=FALSE`)
	return err
}

func (r *txRepository) SetOpen(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE fiscal_years SET is_closed=FALSE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrYearNotFound
	}
	return nil
}

func (r *txRepository) HasDocuments(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journals WHERE fiscal_year_id=$1)
OR EXISTS (SELECT 1 FROM receipts WHERE fiscal_year_id=$1)
OR EXISTS (SELECT 1 FROM payments WHERE fiscal_year_id=$1)
OR EXISTS (SELECT 1 FROM invoices WHERE fiscal_year_id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) YearStartingOn(ctx context.Context, date time.Time) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM fiscal_years WHERE start_date=$1)`, date).Scan(&exists)
	return exists, err
}

func (r *txRepository) FallbackYear(ctx context.Context, excludeID int64, before time.Time) (*Year, error) {
	year, err := scanYear(r.tx.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years
WHERE id<>$1 AND start_date < $2 ORDER BY start_date DESC LIMIT 1`, excludeID, before))
	if err == nil {
		return &year, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	year, err = scanYear(r.tx.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years
WHERE id<>$1 AND start_date >= $2 ORDER BY start_date ASC LIMIT 1`, excludeID, before))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &year, nil
}

func (r *txRepository) CountOpen(ctx context.Context) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM fiscal_years WHERE is_closed=FALSE`).Scan(&count)
	return count, err
}
