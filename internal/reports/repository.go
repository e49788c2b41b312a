package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs read-only aggregation queries against posted journals.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CodeBalances aggregates posted journal items per specific code for one
// fiscal year, joined up to the group level of the catalogue.
func (r *Repository) CodeBalances(ctx context.Context, fiscalYearID int64, from, to *time.Time) ([]CodeBalance, error) {
	query := `
SELECT grp.code, grp.title, spec.code, spec.title,
       COALESCE(SUM(ji.debit), 0), COALESCE(SUM(ji.credit), 0)
FROM journal_items ji
JOIN journals j ON j.id = ji.journal_id
JOIN code_nodes spec ON spec.id = ji.code_id
JOIN code_nodes gen ON gen.id = spec.parent_id
JOIN code_nodes grp ON grp.id = gen.parent_id
WHERE j.status = 'POSTED' AND j.fiscal_year_id = $1
  AND ($2::date IS NULL OR j.date >= $2)
  AND ($3::date IS NULL OR j.date <= $3)
GROUP BY grp.code, grp.title, spec.code, spec.title
ORDER BY grp.code, spec.code`
	rows, err := r.pool.Query(ctx, query, fiscalYearID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var balances []CodeBalance
	for rows.Next() {
		var b CodeBalance
		if err := rows.Scan(&b.GroupCode, &b.GroupTitle, &b.Code, &b.Title, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// StatementLine is one posted movement on a detail's ledger card.
type StatementLine struct {
	Date        time.Time
	JournalRef  string
	Code        string
	Description string
	Debit       float64
	Credit      float64
}

// DetailStatement lists posted movements for one detail in date order.
func (r *Repository) DetailStatement(ctx context.Context, fiscalYearID, detailID int64) ([]StatementLine, error) {
	query := `
SELECT j.date, j.ref_no, cn.code, ji.description, ji.debit, ji.credit
FROM journal_items ji
JOIN journals j ON j.id = ji.journal_id
JOIN code_nodes cn ON cn.id = ji.code_id
WHERE j.status = 'POSTED' AND j.fiscal_year_id = $1 AND ji.detail_id = $2
ORDER BY j.date, j.ref_seq, ji.position`
	rows, err := r.pool.Query(ctx, query, fiscalYearID, detailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []StatementLine
	for rows.Next() {
		var l StatementLine
		if err := rows.Scan(&l.Date, &l.JournalRef, &l.Code, &l.Description, &l.Debit, &l.Credit); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
