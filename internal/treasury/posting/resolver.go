// Package posting compiles receipts and payments into balanced journal
// entries. Document state, journal writes, and check side effects share
// one transaction.
package posting

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// Setting names consulted when resolving ledger codes for instrument
// lines. Each name may carry a code reference in the settings table.
const (
	SettingCashCode           = "posting.cash_code"
	SettingCardCode           = "posting.card_code"
	SettingBankCode           = "posting.bank_code"
	SettingChecksInCode       = "posting.checks_in_code"
	SettingChecksOutCode      = "posting.checks_out_code"
	SettingReceiptCounterCode = "posting.receipt_counter_code"
	SettingPaymentCounterCode = "posting.payment_counter_code"
)

// Literal catalogue codes tried when no settings record points anywhere.
var literalFallbacks = map[string]string{
	SettingCashCode:           "1110",
	SettingCardCode:           "1120",
	SettingBankCode:           "1130",
	SettingChecksInCode:       "1140",
	SettingChecksOutCode:      "2110",
	SettingReceiptCounterCode: "1210",
	SettingPaymentCounterCode: "2210",
}

// ErrMissingCodeMapping indicates no tier of the resolution chain
// produced a catalogue code for a line.
var ErrMissingCodeMapping = shared.Configuration("posting: no ledger code mapping for instrument")

// resolverStore reads mapping data inside the posting transaction.
type resolverStore interface {
	SettingCodeID(ctx context.Context, name string) (*int64, error)
	CodeIDByLiteral(ctx context.Context, code string) (int64, bool, error)
}

// resolver walks the three-tier chain: an explicit override wins, then
// the named settings record, then the literal fallback code.
type resolver struct {
	store resolverStore
}

// resolve returns the catalogue code id for one mapping name. override
// short-circuits the chain when non-nil.
func (r resolver) resolve(ctx context.Context, name string, override *int64) (int64, error) {
	if override != nil {
		return *override, nil
	}
	codeID, err := r.store.SettingCodeID(ctx, name)
	if err != nil {
		return 0, err
	}
	if codeID != nil {
		return *codeID, nil
	}
	literal, ok := literalFallbacks[name]
	if !ok {
		return 0, ErrMissingCodeMapping
	}
	id, found, err := r.store.CodeIDByLiteral(ctx, literal)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrMissingCodeMapping, name)
	}
	return id, nil
}

// txStore implements resolverStore over the posting transaction.
type txStore struct {
	tx pgx.Tx
}

func (s txStore) SettingCodeID(ctx context.Context, name string) (*int64, error) {
	var codeID *int64
	err := s.tx.QueryRow(ctx, `SELECT code_id FROM settings WHERE name=$1`, name).Scan(&codeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return codeID, err
}

func (s txStore) CodeIDByLiteral(ctx context.Context, code string) (int64, bool, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `SELECT id FROM code_nodes WHERE code=$1 AND kind='SPECIFIC'`, code).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	return id, err == nil, err
}
