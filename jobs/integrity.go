package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daftar-erp/daftar-erp/internal/ledger"
	"github.com/daftar-erp/daftar-erp/internal/observability"
	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// idempotencyRetention is how long finished reservations are kept.
const idempotencyRetention = 24 * time.Hour

// Tasks holds the dependencies shared by task handlers.
type Tasks struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewTasks constructs the task handlers.
func NewTasks(pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.Metrics) *Tasks {
	return &Tasks{pool: pool, logger: logger, metrics: metrics}
}

// HandleLedgerIntegrity re-checks the balance invariant over posted
// journals. Drift can only come from outside the API (manual SQL,
// restores), so a hit is logged loudly rather than repaired.
func (t *Tasks) HandleLedgerIntegrity(ctx context.Context, task *asynq.Task) error {
	var payload LedgerIntegrityPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	query := `
SELECT j.id, j.ref_no, COALESCE(SUM(ji.debit), 0) - COALESCE(SUM(ji.credit), 0) AS drift
FROM journals j
LEFT JOIN journal_items ji ON ji.journal_id = j.id
WHERE j.status = 'POSTED' AND ($1 = 0 OR j.fiscal_year_id = $1)
GROUP BY j.id, j.ref_no
HAVING ABS(COALESCE(SUM(ji.debit), 0) - COALESCE(SUM(ji.credit), 0)) > $2`
	rows, err := t.pool.Query(ctx, query, payload.FiscalYearID, ledger.Epsilon)
	if err != nil {
		t.metrics.JobRun(TaskLedgerIntegrity, "error")
		return err
	}
	defer rows.Close()
	found := 0
	for rows.Next() {
		var id int64
		var refNo string
		var drift float64
		if err := rows.Scan(&id, &refNo, &drift); err != nil {
			t.metrics.JobRun(TaskLedgerIntegrity, "error")
			return err
		}
		found++
		t.logger.Error("unbalanced posted journal",
			slog.Int64("journal_id", id),
			slog.String("ref_no", refNo),
			slog.Float64("drift", drift))
	}
	if err := rows.Err(); err != nil {
		t.metrics.JobRun(TaskLedgerIntegrity, "error")
		return err
	}
	outcome := "ok"
	if found > 0 {
		outcome = "drift"
	}
	t.metrics.JobRun(TaskLedgerIntegrity, outcome)
	t.logger.Info("ledger integrity scan finished",
		slog.Int64("fiscal_year_id", payload.FiscalYearID),
		slog.Int("unbalanced", found))
	return nil
}

// HandleIdempotencyCleanup prunes expired idempotency reservations.
func (t *Tasks) HandleIdempotencyCleanup(ctx context.Context, task *asynq.Task) error {
	store := shared.NewIdempotencyStore(t.pool)
	if err := store.Cleanup(ctx, idempotencyRetention); err != nil {
		t.metrics.JobRun(TaskIdempotencyCleanup, "error")
		return err
	}
	t.metrics.JobRun(TaskIdempotencyCleanup, "ok")
	return nil
}
