// Package jobs runs background maintenance tasks over asynq.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity scans posted journals for balance drift.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskIdempotencyCleanup prunes expired idempotency reservations.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// LedgerIntegrityPayload scopes an integrity scan.
type LedgerIntegrityPayload struct {
	// FiscalYearID limits the scan to one year; zero scans everything.
	FiscalYearID int64 `json:"fiscal_year_id"`
}

// NewLedgerIntegrityTask constructs an integrity scan task.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// NewIdempotencyCleanupTask constructs a cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
