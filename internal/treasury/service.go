package treasury

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/daftar-erp/daftar-erp/internal/coa"
	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// maxCodeAttempts bounds retries when allocating a system detail code.
// A unique-index collision aborts the surrounding transaction, so the
// whole transaction is retried with a fresh code.
const maxCodeAttempts = 10

// maxNumberAttempts bounds retries for per-year document numbering.
const maxNumberAttempts = 10

// Setting names for the first code tried when allocating handler details.
const (
	SettingBankAccountOffset = "treasury.bank_account_code_offset"
	SettingCardReaderOffset  = "treasury.card_reader_code_offset"
)

const (
	defaultBankAccountOffset = 1200
	defaultCardReaderOffset  = 1300
)

// SettingsPort reads numbering offsets without binding to the settings
// package in tests.
type SettingsPort interface {
	Int64(ctx context.Context, name string, fallback int64) int64
}

// AuditPort records treasury events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages payment instruments and the documents that move them.
type Service struct {
	repo     RepositoryPort
	settings SettingsPort
	audit    AuditPort
	now      func() time.Time
}

// NewService constructs the treasury service.
func NewService(repo RepositoryPort, settings SettingsPort, audit AuditPort) *Service {
	return &Service{repo: repo, settings: settings, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// allocateDetailCode picks the first free four-digit code at or above
// offset. The caller retries the transaction when the insert collides.
func allocateDetailCode(used map[string]bool, offset int64) (string, error) {
	if offset < 1 {
		offset = 1
	}
	for n := offset; n <= 9999; n++ {
		code := fmt.Sprintf("%04d", n)
		if !used[code] {
			return code, nil
		}
	}
	return "", ErrNoHandlerCodes
}

func (s *Service) offset(ctx context.Context, name string, fallback int64) int64 {
	if s.settings == nil {
		return fallback
	}
	return s.settings.Int64(ctx, name, fallback)
}

// CreateBank inserts a bank master record.
func (s *Service) CreateBank(ctx context.Context, name string, actorID int64) (Bank, error) {
	if name == "" {
		return Bank{}, shared.Validation("treasury: bank name required")
	}
	var bank Bank
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertBank(ctx, Bank{Name: name})
		if err != nil {
			return err
		}
		bank = Bank{ID: id, Name: name}
		return nil
	})
	if err != nil {
		return Bank{}, err
	}
	s.record(ctx, actorID, "treasury.bank.create", "bank", bank.ID, nil)
	return bank, nil
}

// UpdateBank renames a bank.
func (s *Service) UpdateBank(ctx context.Context, id int64, name string) error {
	if name == "" {
		return shared.Validation("treasury: bank name required")
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateBank(ctx, Bank{ID: id, Name: name})
	})
}

// DeleteBank removes a bank without accounts.
func (s *Service) DeleteBank(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		hasAccounts, err := tx.BankHasAccounts(ctx, id)
		if err != nil {
			return err
		}
		if hasAccounts {
			return ErrInstrumentInUse
		}
		return tx.DeleteBank(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "treasury.bank.delete", "bank", id, nil)
	return nil
}

// BankAccountInput groups fields for creating or editing a bank account.
type BankAccountInput struct {
	BankID int64
	Number string
	Name   string
}

// CreateBankAccount inserts an account together with its system-managed
// detail. Both rows share one transaction so a failed allocation leaves
// nothing behind.
func (s *Service) CreateBankAccount(ctx context.Context, input BankAccountInput, actorID int64) (BankAccount, error) {
	if input.Number == "" || input.Name == "" {
		return BankAccount{}, shared.Validation("treasury: account number and name required")
	}
	offset := s.offset(ctx, SettingBankAccountOffset, defaultBankAccountOffset)
	var account BankAccount
	err := s.withCodeRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		detailID, err := insertHandlerDetail(ctx, tx, offset, input.Name)
		if err != nil {
			return err
		}
		account = BankAccount{BankID: input.BankID, Number: input.Number, Name: input.Name, HandlerDetailID: detailID, IsActive: true}
		id, err := tx.InsertBankAccount(ctx, account)
		if err != nil {
			return err
		}
		account.ID = id
		return nil
	})
	if err != nil {
		return BankAccount{}, err
	}
	s.record(ctx, actorID, "treasury.account.create", "bank_account", account.ID, nil)
	return account, nil
}

// UpdateBankAccount edits an account and renames its detail in lockstep.
func (s *Service) UpdateBankAccount(ctx context.Context, id int64, input BankAccountInput) error {
	if input.Number == "" || input.Name == "" {
		return shared.Validation("treasury: account number and name required")
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetBankAccount(ctx, id)
		if err != nil {
			return err
		}
		current.BankID = input.BankID
		current.Number = input.Number
		current.Name = input.Name
		if err := tx.UpdateBankAccount(ctx, current); err != nil {
			return err
		}
		return tx.RenameDetail(ctx, current.HandlerDetailID, input.Name)
	})
}

// DeleteBankAccount removes an unused account with its detail; an account
// already referenced by documents is deactivated instead so history stays
// resolvable.
func (s *Service) DeleteBankAccount(ctx context.Context, id int64, actorID int64) error {
	action := "treasury.account.delete"
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetBankAccount(ctx, id)
		if err != nil {
			return err
		}
		inUse, err := tx.BankAccountInUse(ctx, id)
		if err != nil {
			return err
		}
		referenced, err := tx.DetailReferenced(ctx, account.HandlerDetailID)
		if err != nil {
			return err
		}
		if inUse || referenced {
			action = "treasury.account.deactivate"
			return tx.DeactivateBankAccount(ctx, id)
		}
		if err := tx.DeleteBankAccount(ctx, id); err != nil {
			return err
		}
		return tx.DeleteDetail(ctx, account.HandlerDetailID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, action, "bank_account", id, nil)
	return nil
}

// CardReaderInput groups fields for creating or editing a card reader.
type CardReaderInput struct {
	BankAccountID int64
	Name          string
}

// CreateCardReader inserts a reader with its system-managed detail.
func (s *Service) CreateCardReader(ctx context.Context, input CardReaderInput, actorID int64) (CardReader, error) {
	if input.Name == "" {
		return CardReader{}, shared.Validation("treasury: card reader name required")
	}
	offset := s.offset(ctx, SettingCardReaderOffset, defaultCardReaderOffset)
	var reader CardReader
	err := s.withCodeRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetBankAccount(ctx, input.BankAccountID); err != nil {
			return err
		}
		detailID, err := insertHandlerDetail(ctx, tx, offset, input.Name)
		if err != nil {
			return err
		}
		reader = CardReader{BankAccountID: input.BankAccountID, Name: input.Name, HandlerDetailID: detailID, IsActive: true}
		id, err := tx.InsertCardReader(ctx, reader)
		if err != nil {
			return err
		}
		reader.ID = id
		return nil
	})
	if err != nil {
		return CardReader{}, err
	}
	s.record(ctx, actorID, "treasury.reader.create", "card_reader", reader.ID, nil)
	return reader, nil
}

// UpdateCardReader edits a reader and renames its detail in lockstep.
func (s *Service) UpdateCardReader(ctx context.Context, id int64, input CardReaderInput) error {
	if input.Name == "" {
		return shared.Validation("treasury: card reader name required")
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetCardReader(ctx, id)
		if err != nil {
			return err
		}
		current.BankAccountID = input.BankAccountID
		current.Name = input.Name
		if err := tx.UpdateCardReader(ctx, current); err != nil {
			return err
		}
		return tx.RenameDetail(ctx, current.HandlerDetailID, input.Name)
	})
}

// DeleteCardReader removes an unused reader with its detail; a referenced
// reader is deactivated instead.
func (s *Service) DeleteCardReader(ctx context.Context, id int64, actorID int64) error {
	action := "treasury.reader.delete"
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		reader, err := tx.GetCardReader(ctx, id)
		if err != nil {
			return err
		}
		inUse, err := tx.CardReaderInUse(ctx, id)
		if err != nil {
			return err
		}
		referenced, err := tx.DetailReferenced(ctx, reader.HandlerDetailID)
		if err != nil {
			return err
		}
		if inUse || referenced {
			action = "treasury.reader.deactivate"
			return tx.DeactivateCardReader(ctx, id)
		}
		if err := tx.DeleteCardReader(ctx, id); err != nil {
			return err
		}
		return tx.DeleteDetail(ctx, reader.HandlerDetailID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, action, "card_reader", id, nil)
	return nil
}

// CashboxInput groups fields for creating or editing a cashbox.
type CashboxInput struct {
	Code           string
	Name           string
	StartingAmount float64
	StartingDate   time.Time
}

// CreateCashbox inserts a cashbox and a detail carrying the same code.
// The pair stays in lockstep for its whole life.
func (s *Service) CreateCashbox(ctx context.Context, input CashboxInput, actorID int64) (Cashbox, error) {
	if input.Name == "" {
		return Cashbox{}, shared.Validation("treasury: cashbox name required")
	}
	if !coa.ValidDetailCode(input.Code) {
		return Cashbox{}, shared.Validation("treasury: cashbox code must be four digits")
	}
	var box Cashbox
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		detailID, err := tx.InsertSystemDetail(ctx, input.Code, input.Name)
		if errors.Is(err, errDetailCodeConflict) {
			return ErrDuplicateCashboxCode
		}
		if err != nil {
			return err
		}
		box = Cashbox{Code: input.Code, Name: input.Name, HandlerDetailID: detailID,
			StartingAmount: input.StartingAmount, StartingDate: input.StartingDate}
		id, err := tx.InsertCashbox(ctx, box)
		if err != nil {
			return err
		}
		box.ID = id
		return nil
	})
	if err != nil {
		return Cashbox{}, err
	}
	s.record(ctx, actorID, "treasury.cashbox.create", "cashbox", box.ID, nil)
	return box, nil
}

// UpdateCashbox edits a cashbox; the code is immutable, the detail name
// follows the cashbox name.
func (s *Service) UpdateCashbox(ctx context.Context, id int64, input CashboxInput) error {
	if input.Name == "" {
		return shared.Validation("treasury: cashbox name required")
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetCashbox(ctx, id)
		if err != nil {
			return err
		}
		current.Name = input.Name
		current.StartingAmount = input.StartingAmount
		current.StartingDate = input.StartingDate
		if err := tx.UpdateCashbox(ctx, current); err != nil {
			return err
		}
		return tx.RenameDetail(ctx, current.HandlerDetailID, input.Name)
	})
}

// DeleteCashbox removes a cashbox and its detail when neither is
// referenced.
func (s *Service) DeleteCashbox(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		box, err := tx.GetCashbox(ctx, id)
		if err != nil {
			return err
		}
		inUse, err := tx.CashboxInUse(ctx, id)
		if err != nil {
			return err
		}
		referenced, err := tx.DetailReferenced(ctx, box.HandlerDetailID)
		if err != nil {
			return err
		}
		if inUse || referenced {
			return ErrInstrumentInUse
		}
		if err := tx.DeleteCashbox(ctx, id); err != nil {
			return err
		}
		return tx.DeleteDetail(ctx, box.HandlerDetailID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "treasury.cashbox.delete", "cashbox", id, nil)
	return nil
}

// CheckbookInput groups fields for registering a checkbook.
type CheckbookInput struct {
	BankAccountID int64
	StartNumber   int64
	PageCount     int
}

// CreateCheckbook registers a page range for a bank account.
func (s *Service) CreateCheckbook(ctx context.Context, input CheckbookInput, actorID int64) (Checkbook, error) {
	if input.StartNumber < 1 || input.PageCount < 1 {
		return Checkbook{}, shared.Validation("treasury: start number and page count must be positive")
	}
	var book Checkbook
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetBankAccount(ctx, input.BankAccountID); err != nil {
			return err
		}
		book = Checkbook{BankAccountID: input.BankAccountID, StartNumber: input.StartNumber,
			PageCount: input.PageCount, Status: CheckbookActive}
		id, err := tx.InsertCheckbook(ctx, book)
		if err != nil {
			return err
		}
		book.ID = id
		return nil
	})
	if err != nil {
		return Checkbook{}, err
	}
	s.record(ctx, actorID, "treasury.checkbook.create", "checkbook", book.ID, nil)
	return book, nil
}

// DeleteCheckbook removes a book with no issued checks.
func (s *Service) DeleteCheckbook(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		hasChecks, err := tx.CheckbookHasChecks(ctx, id)
		if err != nil {
			return err
		}
		if hasChecks {
			return ErrInstrumentInUse
		}
		return tx.DeleteCheckbook(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "treasury.checkbook.delete", "checkbook", id, nil)
	return nil
}

// IssueCheckInput groups fields for issuing an outgoing check.
type IssueCheckInput struct {
	CheckbookID         int64
	Number              int64
	Amount              float64
	IssueDate           time.Time
	DueDate             time.Time
	BeneficiaryDetailID int64
}

// validateIssue checks a number against the locked checkbook.
func validateIssue(book Checkbook, number int64) error {
	if book.Status == CheckbookExhausted {
		return ErrCheckbookExhausted
	}
	if number < book.StartNumber || number > book.LastNumber() {
		return ErrOutOfRange
	}
	return nil
}

// IssueCheck writes an outgoing check from a checkbook page. Issuing the
// last page flips the book to exhausted in the same transaction.
func (s *Service) IssueCheck(ctx context.Context, input IssueCheckInput, actorID int64) (Check, error) {
	if input.Amount <= 0 {
		return Check{}, shared.Validation("treasury: check amount must be positive")
	}
	var check Check
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		book, err := tx.GetCheckbookForUpdate(ctx, input.CheckbookID)
		if err != nil {
			return err
		}
		if err := validateIssue(book, input.Number); err != nil {
			return err
		}
		exists, err := tx.CheckNumberExists(ctx, input.CheckbookID, strconv.FormatInt(input.Number, 10))
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateNumber
		}
		check = Check{
			Type:                CheckOutgoing,
			CheckbookID:         &input.CheckbookID,
			Number:              strconv.FormatInt(input.Number, 10),
			Amount:              input.Amount,
			IssueDate:           input.IssueDate,
			DueDate:             input.DueDate,
			BeneficiaryDetailID: &input.BeneficiaryDetailID,
			Status:              CheckIssued,
		}
		id, err := tx.InsertCheck(ctx, check)
		if err != nil {
			return err
		}
		check.ID = id
		if input.Number == book.LastNumber() {
			return tx.SetCheckbookStatus(ctx, book.ID, CheckbookExhausted)
		}
		return nil
	})
	if err != nil {
		return Check{}, err
	}
	s.record(ctx, actorID, "treasury.check.issue", "check", check.ID, map[string]any{"checkbook_id": input.CheckbookID})
	return check, nil
}

// IncomingCheckInput groups fields for registering a received check.
type IncomingCheckInput struct {
	Number              string
	Amount              float64
	IssueDate           time.Time
	DueDate             time.Time
	BeneficiaryDetailID *int64
}

// RegisterIncomingCheck records a received check in the created state. It
// enters a cashbox only through a receipt save.
func (s *Service) RegisterIncomingCheck(ctx context.Context, input IncomingCheckInput, actorID int64) (Check, error) {
	if input.Number == "" {
		return Check{}, shared.Validation("treasury: check number required")
	}
	if input.Amount <= 0 {
		return Check{}, shared.Validation("treasury: check amount must be positive")
	}
	var check Check
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		check = Check{
			Type:                CheckIncoming,
			Number:              input.Number,
			Amount:              input.Amount,
			IssueDate:           input.IssueDate,
			DueDate:             input.DueDate,
			BeneficiaryDetailID: input.BeneficiaryDetailID,
			Status:              CheckCreated,
		}
		id, err := tx.InsertCheck(ctx, check)
		if err != nil {
			return err
		}
		check.ID = id
		return nil
	})
	if err != nil {
		return Check{}, err
	}
	s.record(ctx, actorID, "treasury.check.register", "check", check.ID, nil)
	return check, nil
}

// DeleteCheck removes a check no document has touched. Spent or deposited
// checks stay.
func (s *Service) DeleteCheck(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		check, err := tx.GetCheckForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if check.Status != CheckCreated && check.Status != CheckIssued {
			return ErrCheckState
		}
		referenced, err := tx.CheckReferenced(ctx, id, "", 0)
		if err != nil {
			return err
		}
		if referenced {
			return ErrInstrumentInUse
		}
		return tx.DeleteCheck(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "treasury.check.delete", "check", id, nil)
	return nil
}

// GetBank and the other reads delegate to the repository pool.
func (s *Service) GetBank(ctx context.Context, id int64) (Bank, error) { return s.repo.GetBank(ctx, id) }

func (s *Service) ListBanks(ctx context.Context) ([]Bank, error) { return s.repo.ListBanks(ctx) }

func (s *Service) ListBankAccounts(ctx context.Context, bankID *int64) ([]BankAccount, error) {
	return s.repo.ListBankAccounts(ctx, bankID)
}

func (s *Service) ListCardReaders(ctx context.Context) ([]CardReader, error) {
	return s.repo.ListCardReaders(ctx)
}

func (s *Service) ListCashboxes(ctx context.Context) ([]Cashbox, error) {
	return s.repo.ListCashboxes(ctx)
}

func (s *Service) ListCheckbooks(ctx context.Context, bankAccountID *int64) ([]Checkbook, error) {
	return s.repo.ListCheckbooks(ctx, bankAccountID)
}

func (s *Service) GetCheck(ctx context.Context, id int64) (Check, error) {
	return s.repo.GetCheck(ctx, id)
}

func (s *Service) ListChecks(ctx context.Context, filter CheckFilter) ([]Check, error) {
	return s.repo.ListChecks(ctx, filter)
}

// insertHandlerDetail allocates the next free code and writes the system
// detail in the current transaction.
func insertHandlerDetail(ctx context.Context, tx TxRepository, offset int64, name string) (int64, error) {
	used, err := tx.UsedDetailCodes(ctx)
	if err != nil {
		return 0, err
	}
	code, err := allocateDetailCode(used, offset)
	if err != nil {
		return 0, err
	}
	return tx.InsertSystemDetail(ctx, code, name)
}

// withCodeRetry reruns fn in fresh transactions until the detail code
// sticks or the attempt budget runs out.
func (s *Service) withCodeRetry(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	var err error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		err = s.repo.WithTx(ctx, fn)
		if !errors.Is(err, errDetailCodeConflict) {
			return err
		}
	}
	return ErrNoHandlerCodes
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}
