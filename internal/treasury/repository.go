package treasury

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daftar-erp/daftar-erp/internal/platform/db"
)

// ErrNumberConflict signals a document number hit the per-year unique
// index. The service retries the whole transaction.
var ErrNumberConflict = errors.New("treasury: document number conflict")

// errDetailCodeConflict signals a system detail code collided; the
// allocation loop picks the next free code and tries again.
var errDetailCodeConflict = errors.New("treasury: detail code conflict")

// TxRepository exposes transactional treasury operations.
type TxRepository interface {
	// Instrument masters.
	InsertBank(ctx context.Context, bank Bank) (int64, error)
	UpdateBank(ctx context.Context, bank Bank) error
	DeleteBank(ctx context.Context, id int64) error
	BankHasAccounts(ctx context.Context, id int64) (bool, error)

	InsertBankAccount(ctx context.Context, account BankAccount) (int64, error)
	UpdateBankAccount(ctx context.Context, account BankAccount) error
	DeleteBankAccount(ctx context.Context, id int64) error
	DeactivateBankAccount(ctx context.Context, id int64) error
	BankAccountInUse(ctx context.Context, id int64) (bool, error)
	GetBankAccount(ctx context.Context, id int64) (BankAccount, error)

	InsertCardReader(ctx context.Context, reader CardReader) (int64, error)
	UpdateCardReader(ctx context.Context, reader CardReader) error
	DeleteCardReader(ctx context.Context, id int64) error
	DeactivateCardReader(ctx context.Context, id int64) error
	CardReaderInUse(ctx context.Context, id int64) (bool, error)
	GetCardReader(ctx context.Context, id int64) (CardReader, error)

	InsertCashbox(ctx context.Context, box Cashbox) (int64, error)
	UpdateCashbox(ctx context.Context, box Cashbox) error
	DeleteCashbox(ctx context.Context, id int64) error
	CashboxInUse(ctx context.Context, id int64) (bool, error)
	GetCashbox(ctx context.Context, id int64) (Cashbox, error)

	// System-managed detail rows mirroring instruments.
	UsedDetailCodes(ctx context.Context) (map[string]bool, error)
	InsertSystemDetail(ctx context.Context, code, name string) (int64, error)
	RenameDetail(ctx context.Context, id int64, name string) error
	DeleteDetail(ctx context.Context, id int64) error
	DetailReferenced(ctx context.Context, id int64) (bool, error)

	// Checkbooks and checks.
	GetCheckbookForUpdate(ctx context.Context, id int64) (Checkbook, error)
	InsertCheckbook(ctx context.Context, book Checkbook) (int64, error)
	DeleteCheckbook(ctx context.Context, id int64) error
	CheckbookHasChecks(ctx context.Context, id int64) (bool, error)
	SetCheckbookStatus(ctx context.Context, id int64, status CheckbookStatus) error
	CheckNumberExists(ctx context.Context, checkbookID int64, number string) (bool, error)
	InsertCheck(ctx context.Context, check Check) (int64, error)
	GetCheckForUpdate(ctx context.Context, id int64) (Check, error)
	SetCheckState(ctx context.Context, id int64, status CheckStatus, cashboxID *int64) error
	DeleteCheck(ctx context.Context, id int64) error
	CheckReferenced(ctx context.Context, checkID int64, excludeKind DocumentKind, excludeDocumentID int64) (bool, error)

	// Receipt and payment documents.
	NextDocumentNumber(ctx context.Context, kind DocumentKind, fiscalYearID int64) (int64, error)
	InsertDocument(ctx context.Context, doc Document) (int64, error)
	UpdateDocument(ctx context.Context, doc Document) error
	InsertItems(ctx context.Context, kind DocumentKind, documentID int64, items []DocumentItem) error
	DeleteItems(ctx context.Context, kind DocumentKind, documentID int64) error
	GetDocumentForUpdate(ctx context.Context, kind DocumentKind, id int64) (Document, error)
	DeleteDocument(ctx context.Context, kind DocumentKind, id int64) error
	MarkDocumentSent(ctx context.Context, kind DocumentKind, id, journalID int64) error
}

// RepositoryPort abstracts transactional repository behaviour for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBank(ctx context.Context, id int64) (Bank, error)
	ListBanks(ctx context.Context) ([]Bank, error)
	ListBankAccounts(ctx context.Context, bankID *int64) ([]BankAccount, error)
	ListCardReaders(ctx context.Context) ([]CardReader, error)
	ListCashboxes(ctx context.Context) ([]Cashbox, error)
	ListCheckbooks(ctx context.Context, bankAccountID *int64) ([]Checkbook, error)
	GetCheck(ctx context.Context, id int64) (Check, error)
	ListChecks(ctx context.Context, filter CheckFilter) ([]Check, error)
	GetDocument(ctx context.Context, kind DocumentKind, id int64) (Document, error)
	ListDocuments(ctx context.Context, kind DocumentKind, filter DocumentFilter) ([]Document, int, error)
}

// CheckFilter narrows check listings.
type CheckFilter struct {
	Type      *CheckType
	Status    *CheckStatus
	CashboxID *int64
}

// DocumentFilter narrows receipt/payment listings.
type DocumentFilter struct {
	FiscalYearID *int64
	Status       *DocumentStatus
	Limit        int
	Offset       int
}

// Repository persists treasury instruments and documents.
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
		return errors.New("treasury repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// NewTxRepository wraps an existing transaction so the posting engine
// can combine document updates with journal writes atomically.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func docTables(kind DocumentKind) (header, items string) {
	if kind == KindPayment {
		return "payments", "payment_items"
	}
	return "receipts", "receipt_items"
}

const bankColumns = `id, name, created_at, updated_at`
const accountColumns = `id, bank_id, number, name, handler_detail_id, is_active, created_at, updated_at`
const readerColumns = `id, bank_account_id, name, handler_detail_id, is_active, created_at, updated_at`
const cashboxColumns = `id, code, name, handler_detail_id, starting_amount, starting_date, created_at, updated_at`
const checkbookColumns = `id, bank_account_id, start_number, page_count, status, created_at, updated_at`
const checkColumns = `id, type, checkbook_id, number, amount, issue_date, due_date, beneficiary_detail_id, status, cashbox_id, created_at, updated_at`
const documentColumns = `id, number, status, date, fiscal_year_id, detail_id, special_code_id, cashbox_id, total_amount, journal_id, created_at, updated_at`

func scanCheck(row pgx.Row) (Check, error) {
	var c Check
	err := row.Scan(&c.ID, &c.Type, &c.CheckbookID, &c.Number, &c.Amount, &c.IssueDate, &c.DueDate,
		&c.BeneficiaryDetailID, &c.Status, &c.CashboxID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanDocument(row pgx.Row, kind DocumentKind) (Document, error) {
	var d Document
	d.Kind = kind
	err := row.Scan(&d.ID, &d.Number, &d.Status, &d.Date, &d.FiscalYearID, &d.DetailID,
		&d.SpecialCodeID, &d.CashboxID, &d.TotalAmount, &d.JournalID, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// GetBank fetches a bank.
func (r *Repository) GetBank(ctx context.Context, id int64) (Bank, error) {
	var b Bank
	err := r.pool.QueryRow(ctx, `SELECT `+bankColumns+` FROM banks WHERE id=$1`, id).
		Scan(&b.ID, &b.Name, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bank{}, ErrBankNotFound
	}
	return b, err
}

// ListBanks returns all banks ordered by name.
func (r *Repository) ListBanks(ctx context.Context) ([]Bank, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bankColumns+` FROM banks ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var banks []Bank
	for rows.Next() {
		var b Bank
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		banks = append(banks, b)
	}
	return banks, rows.Err()
}

// ListBankAccounts returns accounts, optionally for one bank.
func (r *Repository) ListBankAccounts(ctx context.Context, bankID *int64) ([]BankAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM bank_accounts`
	args := []any{}
	if bankID != nil {
		query += ` WHERE bank_id=$1`
		args = append(args, *bankID)
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY number`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []BankAccount
	for rows.Next() {
		var a BankAccount
		if err := rows.Scan(&a.ID, &a.BankID, &a.Number, &a.Name, &a.HandlerDetailID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ListCardReaders returns all card readers.
func (r *Repository) ListCardReaders(ctx context.Context) ([]CardReader, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+readerColumns+` FROM card_readers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var readers []CardReader
	for rows.Next() {
		var cr CardReader
		if err := rows.Scan(&cr.ID, &cr.BankAccountID, &cr.Name, &cr.HandlerDetailID, &cr.IsActive, &cr.CreatedAt, &cr.UpdatedAt); err != nil {
			return nil, err
		}
		readers = append(readers, cr)
	}
	return readers, rows.Err()
}

// ListCashboxes returns all cashboxes.
func (r *Repository) ListCashboxes(ctx context.Context) ([]Cashbox, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+cashboxColumns+` FROM cashboxes ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var boxes []Cashbox
	for rows.Next() {
		var cb Cashbox
		if err := rows.Scan(&cb.ID, &cb.Code, &cb.Name, &cb.HandlerDetailID, &cb.StartingAmount, &cb.StartingDate, &cb.CreatedAt, &cb.UpdatedAt); err != nil {
			return nil, err
		}
		boxes = append(boxes, cb)
	}
	return boxes, rows.Err()
}

// ListCheckbooks returns checkbooks, optionally for one bank account.
func (r *Repository) ListCheckbooks(ctx context.Context, bankAccountID *int64) ([]Checkbook, error) {
	query := `SELECT ` + checkbookColumns + ` FROM checkbooks`
	args := []any{}
	if bankAccountID != nil {
		query += ` WHERE bank_account_id=$1`
		args = append(args, *bankAccountID)
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY start_number`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var books []Checkbook
	for rows.Next() {
		var b Checkbook
		if err := rows.Scan(&b.ID, &b.BankAccountID, &b.StartNumber, &b.PageCount, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// GetCheck fetches a check.
func (r *Repository) GetCheck(ctx context.Context, id int64) (Check, error) {
	check, err := scanCheck(r.pool.QueryRow(ctx, `SELECT `+checkColumns+` FROM checks WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Check{}, ErrCheckNotFound
	}
	return check, err
}

// ListChecks returns checks matching the filter.
func (r *Repository) ListChecks(ctx context.Context, filter CheckFilter) ([]Check, error) {
	where := "TRUE"
	args := []any{}
	argPos := 1
	if filter.Type != nil {
		where += fmt.Sprintf(" AND type = $%d", argPos)
		args = append(args, *filter.Type)
		argPos++
	}
	if filter.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, *filter.Status)
		argPos++
	}
	if filter.CashboxID != nil {
		where += fmt.Sprintf(" AND cashbox_id = $%d", argPos)
		args = append(args, *filter.CashboxID)
		argPos++
	}
	rows, err := r.pool.Query(ctx, `SELECT `+checkColumns+` FROM checks WHERE `+where+` ORDER BY due_date, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var checks []Check
	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}
	return checks, rows.Err()
}

// GetDocument fetches a receipt or payment with items.
func (r *Repository) GetDocument(ctx context.Context, kind DocumentKind, id int64) (Document, error) {
	header, itemsTable := docTables(kind)
	doc, err := scanDocument(r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM `+header+` WHERE id=$1`, id), kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return Document{}, err
	}
	doc.Items, err = queryDocumentItems(ctx, r.pool, itemsTable, id)
	return doc, err
}

// ListDocuments returns receipt or payment headers matching the filter.
func (r *Repository) ListDocuments(ctx context.Context, kind DocumentKind, filter DocumentFilter) ([]Document, int, error) {
	header, _ := docTables(kind)
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
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+header+` WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY number DESC LIMIT $%d OFFSET $%d`, documentColumns, header, where, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows, kind)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryDocumentItems(ctx context.Context, q queryer, table string, documentID int64) ([]DocumentItem, error) {
	rows, err := q.Query(ctx, `SELECT id, document_id, instrument, amount, bank_account_id, card_reader_id, check_id, reference, position
FROM `+table+` WHERE document_id=$1 ORDER BY position, id`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DocumentItem
	for rows.Next() {
		var item DocumentItem
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.Instrument, &item.Amount,
			&item.BankAccountID, &item.CardReaderID, &item.CheckID, &item.Reference, &item.Position); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertBank(ctx context.Context, bank Bank) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO banks (name) VALUES ($1) RETURNING id`, bank.Name).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateBank(ctx context.Context, bank Bank) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE banks SET name=$2, updated_at=NOW() WHERE id=$1`, bank.ID, bank.Name)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBankNotFound
	}
	return nil
}

func (r *txRepository) DeleteBank(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM banks WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBankNotFound
	}
	return nil
}

func (r *txRepository) BankHasAccounts(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bank_accounts WHERE bank_id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertBankAccount(ctx context.Context, account BankAccount) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO bank_accounts (bank_id, number, name, handler_detail_id, is_active)
VALUES ($1,$2,$3,$4,TRUE) RETURNING id`,
		account.BankID, account.Number, account.Name, account.HandlerDetailID).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateBankAccount(ctx context.Context, account BankAccount) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE bank_accounts SET bank_id=$2, number=$3, name=$4, updated_at=NOW() WHERE id=$1`,
		account.ID, account.BankID, account.Number, account.Name)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) DeleteBankAccount(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM bank_accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) DeactivateBankAccount(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE bank_accounts SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	return err
}

func (r *txRepository) BankAccountInUse(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
  SELECT 1 FROM receipt_items WHERE bank_account_id=$1
  UNION ALL SELECT 1 FROM payment_items WHERE bank_account_id=$1
  UNION ALL SELECT 1 FROM checkbooks WHERE bank_account_id=$1
  UNION ALL SELECT 1 FROM card_readers WHERE bank_account_id=$1
)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) GetBankAccount(ctx context.Context, id int64) (BankAccount, error) {
	var a BankAccount
	err := r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE id=$1`, id).
		Scan(&a.ID, &a.BankID, &a.Number, &a.Name, &a.HandlerDetailID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return BankAccount{}, ErrAccountNotFound
	}
	return a, err
}

func (r *txRepository) InsertCardReader(ctx context.Context, reader CardReader) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO card_readers (bank_account_id, name, handler_detail_id, is_active)
VALUES ($1,$2,$3,TRUE) RETURNING id`,
		reader.BankAccountID, reader.Name, reader.HandlerDetailID).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateCardReader(ctx context.Context, reader CardReader) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE card_readers SET bank_account_id=$2, name=$3, updated_at=NOW() WHERE id=$1`,
		reader.ID, reader.BankAccountID, reader.Name)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCardReaderNotFound
	}
	return nil
}

func (r *txRepository) DeleteCardReader(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM card_readers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCardReaderNotFound
	}
	return nil
}

func (r *txRepository) DeactivateCardReader(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE card_readers SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	return err
}

func (r *txRepository) CardReaderInUse(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
  SELECT 1 FROM receipt_items WHERE card_reader_id=$1
  UNION ALL SELECT 1 FROM payment_items WHERE card_reader_id=$1
)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) GetCardReader(ctx context.Context, id int64) (CardReader, error) {
	var cr CardReader
	err := r.tx.QueryRow(ctx, `SELECT `+readerColumns+` FROM card_readers WHERE id=$1`, id).
		Scan(&cr.ID, &cr.BankAccountID, &cr.Name, &cr.HandlerDetailID, &cr.IsActive, &cr.CreatedAt, &cr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return CardReader{}, ErrCardReaderNotFound
	}
	return cr, err
}

func (r *txRepository) InsertCashbox(ctx context.Context, box Cashbox) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO cashboxes (code, name, handler_detail_id, starting_amount, starting_date)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		box.Code, box.Name, box.HandlerDetailID, box.StartingAmount, box.StartingDate).Scan(&id)
	if db.IsUniqueViolation(err, "uq_cashboxes_code") {
		return 0, ErrDuplicateCashboxCode
	}
	return id, err
}

func (r *txRepository) UpdateCashbox(ctx context.Context, box Cashbox) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE cashboxes SET name=$2, starting_amount=$3, starting_date=$4, updated_at=NOW() WHERE id=$1`,
		box.ID, box.Name, box.StartingAmount, box.StartingDate)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCashboxNotFound
	}
	return nil
}

func (r *txRepository) DeleteCashbox(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM cashboxes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCashboxNotFound
	}
	return nil
}

func (r *txRepository) CashboxInUse(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
  SELECT 1 FROM receipts WHERE cashbox_id=$1
  UNION ALL SELECT 1 FROM payments WHERE cashbox_id=$1
  UNION ALL SELECT 1 FROM checks WHERE cashbox_id=$1
)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) GetCashbox(ctx context.Context, id int64) (Cashbox, error) {
	var cb Cashbox
	err := r.tx.QueryRow(ctx, `SELECT `+cashboxColumns+` FROM cashboxes WHERE id=$1`, id).
		Scan(&cb.ID, &cb.Code, &cb.Name, &cb.HandlerDetailID, &cb.StartingAmount, &cb.StartingDate, &cb.CreatedAt, &cb.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cashbox{}, ErrCashboxNotFound
	}
	return cb, err
}

func (r *txRepository) UsedDetailCodes(ctx context.Context) (map[string]bool, error) {
	rows, err := r.tx.Query(ctx, `SELECT code FROM details`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	used := make(map[string]bool)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		used[code] = true
	}
	return used, rows.Err()
}

func (r *txRepository) InsertSystemDetail(ctx context.Context, code, name string) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO details (code, title, kind) VALUES ($1,$2,'SYSTEM') RETURNING id`,
		code, name).Scan(&id)
	if db.IsUniqueViolation(err, "") {
		return 0, errDetailCodeConflict
	}
	return id, err
}

func (r *txRepository) RenameDetail(ctx context.Context, id int64, name string) error {
	_, err := r.tx.Exec(ctx, `UPDATE details SET title=$2, updated_at=NOW() WHERE id=$1`, id, name)
	return err
}

func (r *txRepository) DeleteDetail(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM details WHERE id=$1`, id)
	return err
}

func (r *txRepository) DetailReferenced(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
  SELECT 1 FROM journal_items WHERE detail_id=$1
  UNION ALL SELECT 1 FROM receipts WHERE detail_id=$1
  UNION ALL SELECT 1 FROM payments WHERE detail_id=$1
)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) GetCheckbookForUpdate(ctx context.Context, id int64) (Checkbook, error) {
	var b Checkbook
	err := r.tx.QueryRow(ctx, `SELECT `+checkbookColumns+` FROM checkbooks WHERE id=$1 FOR UPDATE`, id).
		Scan(&b.ID, &b.BankAccountID, &b.StartNumber, &b.PageCount, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Checkbook{}, ErrCheckbookNotFound
	}
	return b, err
}

func (r *txRepository) InsertCheckbook(ctx context.Context, book Checkbook) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO checkbooks (bank_account_id, start_number, page_count, status)
VALUES ($1,$2,$3,$4) RETURNING id`,
		book.BankAccountID, book.StartNumber, book.PageCount, book.Status).Scan(&id)
	return id, err
}

func (r *txRepository) DeleteCheckbook(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM checkbooks WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCheckbookNotFound
	}
	return nil
}

func (r *txRepository) CheckbookHasChecks(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM checks WHERE checkbook_id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) SetCheckbookStatus(ctx context.Context, id int64, status CheckbookStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE checkbooks SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	return err
}

func (r *txRepository) CheckNumberExists(ctx context.Context, checkbookID int64, number string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM checks WHERE checkbook_id=$1 AND number=$2)`,
		checkbookID, number).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertCheck(ctx context.Context, check Check) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO checks (type, checkbook_id, number, amount, issue_date, due_date, beneficiary_detail_id, status, cashbox_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		check.Type, check.CheckbookID, check.Number, check.Amount, check.IssueDate, check.DueDate,
		check.BeneficiaryDetailID, check.Status, check.CashboxID).Scan(&id)
	if db.IsUniqueViolation(err, "uq_checks_checkbook_number") {
		return 0, ErrDuplicateNumber
	}
	return id, err
}

func (r *txRepository) GetCheckForUpdate(ctx context.Context, id int64) (Check, error) {
	check, err := scanCheck(r.tx.QueryRow(ctx, `SELECT `+checkColumns+` FROM checks WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Check{}, ErrCheckNotFound
	}
	return check, err
}

func (r *txRepository) SetCheckState(ctx context.Context, id int64, status CheckStatus, cashboxID *int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE checks SET status=$2, cashbox_id=$3, updated_at=NOW() WHERE id=$1`,
		id, status, cashboxID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCheckNotFound
	}
	return nil
}

func (r *txRepository) DeleteCheck(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM checks WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCheckNotFound
	}
	return nil
}

func (r *txRepository) CheckReferenced(ctx context.Context, checkID int64, excludeKind DocumentKind, excludeDocumentID int64) (bool, error) {
	receiptExclude := int64(0)
	paymentExclude := int64(0)
	switch excludeKind {
	case KindReceipt:
		receiptExclude = excludeDocumentID
	case KindPayment:
		paymentExclude = excludeDocumentID
	}
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
  SELECT 1 FROM receipt_items WHERE check_id=$1 AND document_id <> $2
  UNION ALL SELECT 1 FROM payment_items WHERE check_id=$1 AND document_id <> $3
)`, checkID, receiptExclude, paymentExclude).Scan(&exists)
	return exists, err
}

func (r *txRepository) NextDocumentNumber(ctx context.Context, kind DocumentKind, fiscalYearID int64) (int64, error) {
	header, _ := docTables(kind)
	var next int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(number),0)+1 FROM `+header+` WHERE fiscal_year_id=$1`, fiscalYearID).Scan(&next)
	return next, err
}

func (r *txRepository) InsertDocument(ctx context.Context, doc Document) (int64, error) {
	header, _ := docTables(doc.Kind)
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO `+header+` (number, status, date, fiscal_year_id, detail_id, special_code_id, cashbox_id, total_amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		doc.Number, doc.Status, doc.Date, doc.FiscalYearID, doc.DetailID, doc.SpecialCodeID, doc.CashboxID, doc.TotalAmount).Scan(&id)
	if db.IsUniqueViolation(err, "") {
		return 0, ErrNumberConflict
	}
	return id, err
}

func (r *txRepository) UpdateDocument(ctx context.Context, doc Document) error {
	header, _ := docTables(doc.Kind)
	cmd, err := r.tx.Exec(ctx, `UPDATE `+header+` SET date=$2, detail_id=$3, special_code_id=$4, cashbox_id=$5, total_amount=$6, updated_at=NOW() WHERE id=$1`,
		doc.ID, doc.Date, doc.DetailID, doc.SpecialCodeID, doc.CashboxID, doc.TotalAmount)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *txRepository) InsertItems(ctx context.Context, kind DocumentKind, documentID int64, items []DocumentItem) error {
	_, itemsTable := docTables(kind)
	for _, item := range items {
		if _, err := r.tx.Exec(ctx, `INSERT INTO `+itemsTable+` (document_id, instrument, amount, bank_account_id, card_reader_id, check_id, reference, position)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			documentID, item.Instrument, item.Amount, item.BankAccountID, item.CardReaderID, item.CheckID, item.Reference, item.Position); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) DeleteItems(ctx context.Context, kind DocumentKind, documentID int64) error {
	_, itemsTable := docTables(kind)
	_, err := r.tx.Exec(ctx, `DELETE FROM `+itemsTable+` WHERE document_id=$1`, documentID)
	return err
}

func (r *txRepository) GetDocumentForUpdate(ctx context.Context, kind DocumentKind, id int64) (Document, error) {
	header, itemsTable := docTables(kind)
	doc, err := scanDocument(r.tx.QueryRow(ctx, `SELECT `+documentColumns+` FROM `+header+` WHERE id=$1 FOR UPDATE`, id), kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return Document{}, err
	}
	doc.Items, err = queryDocumentItems(ctx, r.tx, itemsTable, id)
	return doc, err
}

func (r *txRepository) DeleteDocument(ctx context.Context, kind DocumentKind, id int64) error {
	header, _ := docTables(kind)
	cmd, err := r.tx.Exec(ctx, `DELETE FROM `+header+` WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *txRepository) MarkDocumentSent(ctx context.Context, kind DocumentKind, id, journalID int64) error {
	header, _ := docTables(kind)
	cmd, err := r.tx.Exec(ctx, `UPDATE `+header+` SET status=$2, journal_id=$3, updated_at=NOW() WHERE id=$1`,
		id, DocumentSent, journalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
