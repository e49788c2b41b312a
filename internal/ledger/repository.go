package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daftar-erp/daftar-erp/internal/platform/db"
)

// ErrNumberConflict signals the sequential number hit the unique index.
// The service retries the whole transaction a bounded number of times.
var ErrNumberConflict = errors.New("ledger: journal number conflict")

// TxRepository exposes transactional journal operations.
type TxRepository interface {
	YearSpan(ctx context.Context, fiscalYearID int64) (start, end time.Time, err error)
	NextNumbers(ctx context.Context, fiscalYearID int64) (refNo int64, code int64, err error)
	InsertJournal(ctx context.Context, journal Journal) (int64, error)
	InsertItems(ctx context.Context, journalID int64, items []Item) error
	GetJournalWithItems(ctx context.Context, id int64) (Journal, error)
	UpdateJournal(ctx context.Context, journal Journal) error
	DeleteItems(ctx context.Context, journalID int64) error
	DeleteJournal(ctx context.Context, id int64) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

// RepositoryPort abstracts transactional repository behaviour for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetJournal(ctx context.Context, id int64) (Journal, error)
	ListJournals(ctx context.Context, filter Filter) ([]Journal, int, error)
}

// Filter narrows journal listings.
type Filter struct {
	FiscalYearID *int64
	Status       *Status
	Limit        int
	Offset       int
}

// Repository persists journals.
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
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// NewTxRepository wraps an existing transaction so other modules can
// compose journal writes with their own work atomically.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

const journalColumns = `id, fiscal_year_id, ref_no, code, date, description, status, created_at, updated_at`

func scanJournal(row pgx.Row) (Journal, error) {
	var j Journal
	err := row.Scan(&j.ID, &j.FiscalYearID, &j.RefNo, &j.Code, &j.Date, &j.Description, &j.Status, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

// GetJournal fetches a journal with items outside a transaction.
func (r *Repository) GetJournal(ctx context.Context, id int64) (Journal, error) {
	journal, err := scanJournal(r.pool.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Journal{}, ErrJournalNotFound
	}
	if err != nil {
		return Journal{}, err
	}
	items, err := queryItems(ctx, r.pool, id)
	if err != nil {
		return Journal{}, err
	}
	journal.Items = items
	return journal, nil
}

// ListJournals returns journal headers matching the filter.
func (r *Repository) ListJournals(ctx context.Context, filter Filter) ([]Journal, int, error) {
	where := "TRUE"
	args := []any{}
	argPos := 1
	if filter.FiscalYearID != nil {
		where += fmt.Sprintf(" AND fiscal_year_id = $%d", argPos)
		args = append(args, *filter.FiscalYearID)
		argPos++
	}
	if filter.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, *filter.Status)
		argPos++
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM journals WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM journals WHERE %s ORDER BY code DESC LIMIT $%d OFFSET $%d`, journalColumns, where, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var journals []Journal
	for rows.Next() {
		journal, err := scanJournal(rows)
		if err != nil {
			return nil, 0, err
		}
		journals = append(journals, journal)
	}
	return journals, total, rows.Err()
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryItems(ctx context.Context, q queryer, journalID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, journal_id, code_id, party_id, detail_id, debit, credit, description, position
FROM journal_items WHERE journal_id=$1 ORDER BY position, id`, journalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.JournalID, &item.CodeID, &item.PartyID, &item.DetailID, &item.Debit, &item.Credit, &item.Description, &item.Position); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) YearSpan(ctx context.Context, fiscalYearID int64) (time.Time, time.Time, error) {
	var start, end time.Time
	err := r.tx.QueryRow(ctx, `SELECT start_date, end_date FROM fiscal_years WHERE id=$1`, fiscalYearID).Scan(&start, &end)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, time.Time{}, ErrYearNotFound
	}
	return start, end, err
}

func (r *txRepository) NextNumbers(ctx context.Context, fiscalYearID int64) (int64, int64, error) {
	var refNo, code int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(ref_seq),0)+1, COALESCE(MAX(code),0)+1
FROM journals WHERE fiscal_year_id=$1`, fiscalYearID).Scan(&refNo, &code)
	return refNo, code, err
}

func (r *txRepository) InsertJournal(ctx context.Context, journal Journal) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journals (fiscal_year_id, ref_no, ref_seq, code, date, description, status)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		journal.FiscalYearID, journal.RefNo, journal.RefSeq, journal.Code, journal.Date, journal.Description, journal.Status).Scan(&id)
	if db.IsUniqueViolation(err, "") {
		return 0, ErrNumberConflict
	}
	return id, err
}

func (r *txRepository) InsertItems(ctx context.Context, journalID int64, items []Item) error {
	for _, item := range items {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_items (journal_id, code_id, party_id, detail_id, debit, credit, description, position)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			journalID, item.CodeID, item.PartyID, item.DetailID, item.Debit, item.Credit, item.Description, item.Position); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetJournalWithItems(ctx context.Context, id int64) (Journal, error) {
	journal, err := scanJournal(r.tx.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Journal{}, ErrJournalNotFound
	}
	if err != nil {
		return Journal{}, err
	}
	items, err := queryItems(ctx, r.tx, id)
	if err != nil {
		return Journal{}, err
	}
	journal.Items = items
	return journal, nil
}

func (r *txRepository) UpdateJournal(ctx context.Context, journal Journal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journals SET date=$2, description=$3, updated_at=NOW() WHERE id=$1`,
		journal.ID, journal.Date, journal.Description)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) DeleteItems(ctx context.Context, journalID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM journal_items WHERE journal_id=$1`, journalID)
	return err
}

func (r *txRepository) DeleteJournal(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journals WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journals SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}
