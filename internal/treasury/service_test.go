package treasury

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// memTreasury backs the service tests with in-memory state. It implements
// both RepositoryPort and TxRepository; WithTx runs the callback against
// the same maps, which is enough to exercise the business rules.
type memTreasury struct {
	banks      map[int64]*Bank
	accounts   map[int64]*BankAccount
	readers    map[int64]*CardReader
	cashboxes  map[int64]*Cashbox
	checkbooks map[int64]*Checkbook
	checks     map[int64]*Check
	documents  map[string]*Document
	details    map[int64]string // detail id -> code
	referenced map[int64]bool   // detail ids referenced by history
	nextID     int64
	numbers    map[string]int64 // kind -> last document number
	// detailConflicts forces the next n system-detail inserts to collide.
	detailConflicts int
	// numberConflicts forces the next n document inserts to collide.
	numberConflicts int
}

func newMemTreasury() *memTreasury {
	return &memTreasury{
		banks:      map[int64]*Bank{},
		accounts:   map[int64]*BankAccount{},
		readers:    map[int64]*CardReader{},
		cashboxes:  map[int64]*Cashbox{},
		checkbooks: map[int64]*Checkbook{},
		checks:     map[int64]*Check{},
		documents:  map[string]*Document{},
		details:    map[int64]string{},
		referenced: map[int64]bool{},
		numbers:    map[string]int64{},
	}
}

func (m *memTreasury) id() int64 {
	m.nextID++
	return m.nextID
}

func docKey(kind DocumentKind, id int64) string {
	return fmt.Sprintf("%s/%d", kind, id)
}

func (m *memTreasury) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memTreasury) GetBank(ctx context.Context, id int64) (Bank, error) {
	if b, ok := m.banks[id]; ok {
		return *b, nil
	}
	return Bank{}, ErrBankNotFound
}

func (m *memTreasury) ListBanks(ctx context.Context) ([]Bank, error) { return nil, nil }

func (m *memTreasury) ListBankAccounts(ctx context.Context, bankID *int64) ([]BankAccount, error) {
	return nil, nil
}

func (m *memTreasury) ListCardReaders(ctx context.Context) ([]CardReader, error) { return nil, nil }

func (m *memTreasury) ListCashboxes(ctx context.Context) ([]Cashbox, error) { return nil, nil }

func (m *memTreasury) ListCheckbooks(ctx context.Context, bankAccountID *int64) ([]Checkbook, error) {
	return nil, nil
}

func (m *memTreasury) GetCheck(ctx context.Context, id int64) (Check, error) {
	if c, ok := m.checks[id]; ok {
		return *c, nil
	}
	return Check{}, ErrCheckNotFound
}

func (m *memTreasury) ListChecks(ctx context.Context, filter CheckFilter) ([]Check, error) {
	return nil, nil
}

func (m *memTreasury) GetDocument(ctx context.Context, kind DocumentKind, id int64) (Document, error) {
	if d, ok := m.documents[docKey(kind, id)]; ok {
		return *d, nil
	}
	return Document{}, ErrDocumentNotFound
}

func (m *memTreasury) ListDocuments(ctx context.Context, kind DocumentKind, filter DocumentFilter) ([]Document, int, error) {
	return nil, 0, nil
}

func (m *memTreasury) InsertBank(ctx context.Context, bank Bank) (int64, error) {
	bank.ID = m.id()
	m.banks[bank.ID] = &bank
	return bank.ID, nil
}

func (m *memTreasury) UpdateBank(ctx context.Context, bank Bank) error {
	if _, ok := m.banks[bank.ID]; !ok {
		return ErrBankNotFound
	}
	m.banks[bank.ID] = &bank
	return nil
}

func (m *memTreasury) DeleteBank(ctx context.Context, id int64) error {
	delete(m.banks, id)
	return nil
}

func (m *memTreasury) BankHasAccounts(ctx context.Context, id int64) (bool, error) {
	for _, a := range m.accounts {
		if a.BankID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTreasury) InsertBankAccount(ctx context.Context, account BankAccount) (int64, error) {
	account.ID = m.id()
	m.accounts[account.ID] = &account
	return account.ID, nil
}

func (m *memTreasury) UpdateBankAccount(ctx context.Context, account BankAccount) error {
	m.accounts[account.ID] = &account
	return nil
}

func (m *memTreasury) DeleteBankAccount(ctx context.Context, id int64) error {
	delete(m.accounts, id)
	return nil
}

func (m *memTreasury) DeactivateBankAccount(ctx context.Context, id int64) error {
	if a, ok := m.accounts[id]; ok {
		a.IsActive = false
	}
	return nil
}

func (m *memTreasury) BankAccountInUse(ctx context.Context, id int64) (bool, error) {
	for _, b := range m.checkbooks {
		if b.BankAccountID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTreasury) GetBankAccount(ctx context.Context, id int64) (BankAccount, error) {
	if a, ok := m.accounts[id]; ok {
		return *a, nil
	}
	return BankAccount{}, ErrAccountNotFound
}

func (m *memTreasury) InsertCardReader(ctx context.Context, reader CardReader) (int64, error) {
	reader.ID = m.id()
	m.readers[reader.ID] = &reader
	return reader.ID, nil
}

func (m *memTreasury) UpdateCardReader(ctx context.Context, reader CardReader) error {
	m.readers[reader.ID] = &reader
	return nil
}

func (m *memTreasury) DeleteCardReader(ctx context.Context, id int64) error {
	delete(m.readers, id)
	return nil
}

func (m *memTreasury) DeactivateCardReader(ctx context.Context, id int64) error {
	if r, ok := m.readers[id]; ok {
		r.IsActive = false
	}
	return nil
}

func (m *memTreasury) CardReaderInUse(ctx context.Context, id int64) (bool, error) {
	return false, nil
}

func (m *memTreasury) GetCardReader(ctx context.Context, id int64) (CardReader, error) {
	if r, ok := m.readers[id]; ok {
		return *r, nil
	}
	return CardReader{}, ErrCardReaderNotFound
}

func (m *memTreasury) InsertCashbox(ctx context.Context, box Cashbox) (int64, error) {
	box.ID = m.id()
	m.cashboxes[box.ID] = &box
	return box.ID, nil
}

func (m *memTreasury) UpdateCashbox(ctx context.Context, box Cashbox) error {
	m.cashboxes[box.ID] = &box
	return nil
}

func (m *memTreasury) DeleteCashbox(ctx context.Context, id int64) error {
	delete(m.cashboxes, id)
	return nil
}

func (m *memTreasury) CashboxInUse(ctx context.Context, id int64) (bool, error) {
	for _, c := range m.checks {
		if c.CashboxID != nil && *c.CashboxID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTreasury) GetCashbox(ctx context.Context, id int64) (Cashbox, error) {
	if b, ok := m.cashboxes[id]; ok {
		return *b, nil
	}
	return Cashbox{}, ErrCashboxNotFound
}

func (m *memTreasury) UsedDetailCodes(ctx context.Context) (map[string]bool, error) {
	used := make(map[string]bool, len(m.details))
	for _, code := range m.details {
		used[code] = true
	}
	return used, nil
}

func (m *memTreasury) InsertSystemDetail(ctx context.Context, code, name string) (int64, error) {
	if m.detailConflicts > 0 {
		m.detailConflicts--
		return 0, errDetailCodeConflict
	}
	for _, existing := range m.details {
		if existing == code {
			return 0, errDetailCodeConflict
		}
	}
	id := m.id()
	m.details[id] = code
	return id, nil
}

func (m *memTreasury) RenameDetail(ctx context.Context, id int64, name string) error { return nil }

func (m *memTreasury) DeleteDetail(ctx context.Context, id int64) error {
	delete(m.details, id)
	return nil
}

func (m *memTreasury) DetailReferenced(ctx context.Context, id int64) (bool, error) {
	return m.referenced[id], nil
}

func (m *memTreasury) GetCheckbookForUpdate(ctx context.Context, id int64) (Checkbook, error) {
	if b, ok := m.checkbooks[id]; ok {
		return *b, nil
	}
	return Checkbook{}, ErrCheckbookNotFound
}

func (m *memTreasury) InsertCheckbook(ctx context.Context, book Checkbook) (int64, error) {
	book.ID = m.id()
	m.checkbooks[book.ID] = &book
	return book.ID, nil
}

func (m *memTreasury) DeleteCheckbook(ctx context.Context, id int64) error {
	delete(m.checkbooks, id)
	return nil
}

func (m *memTreasury) CheckbookHasChecks(ctx context.Context, id int64) (bool, error) {
	for _, c := range m.checks {
		if c.CheckbookID != nil && *c.CheckbookID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTreasury) SetCheckbookStatus(ctx context.Context, id int64, status CheckbookStatus) error {
	if b, ok := m.checkbooks[id]; ok {
		b.Status = status
	}
	return nil
}

func (m *memTreasury) CheckNumberExists(ctx context.Context, checkbookID int64, number string) (bool, error) {
	for _, c := range m.checks {
		if c.CheckbookID != nil && *c.CheckbookID == checkbookID && c.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTreasury) InsertCheck(ctx context.Context, check Check) (int64, error) {
	check.ID = m.id()
	m.checks[check.ID] = &check
	return check.ID, nil
}

func (m *memTreasury) GetCheckForUpdate(ctx context.Context, id int64) (Check, error) {
	return m.GetCheck(ctx, id)
}

func (m *memTreasury) SetCheckState(ctx context.Context, id int64, status CheckStatus, cashboxID *int64) error {
	c, ok := m.checks[id]
	if !ok {
		return ErrCheckNotFound
	}
	c.Status = status
	c.CashboxID = cashboxID
	return nil
}

func (m *memTreasury) DeleteCheck(ctx context.Context, id int64) error {
	delete(m.checks, id)
	return nil
}

func (m *memTreasury) CheckReferenced(ctx context.Context, checkID int64, excludeKind DocumentKind, excludeDocumentID int64) (bool, error) {
	for _, d := range m.documents {
		if d.Kind == excludeKind && d.ID == excludeDocumentID {
			continue
		}
		for _, item := range d.Items {
			if item.CheckID != nil && *item.CheckID == checkID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *memTreasury) NextDocumentNumber(ctx context.Context, kind DocumentKind, fiscalYearID int64) (int64, error) {
	return m.numbers[string(kind)] + 1, nil
}

func (m *memTreasury) InsertDocument(ctx context.Context, doc Document) (int64, error) {
	if m.numberConflicts > 0 {
		m.numberConflicts--
		return 0, ErrNumberConflict
	}
	m.numbers[string(doc.Kind)] = doc.Number
	doc.ID = m.id()
	m.documents[docKey(doc.Kind, doc.ID)] = &doc
	return doc.ID, nil
}

func (m *memTreasury) UpdateDocument(ctx context.Context, doc Document) error {
	stored, ok := m.documents[docKey(doc.Kind, doc.ID)]
	if !ok {
		return ErrDocumentNotFound
	}
	doc.Items = stored.Items
	m.documents[docKey(doc.Kind, doc.ID)] = &doc
	return nil
}

func (m *memTreasury) InsertItems(ctx context.Context, kind DocumentKind, documentID int64, items []DocumentItem) error {
	d, ok := m.documents[docKey(kind, documentID)]
	if !ok {
		return ErrDocumentNotFound
	}
	d.Items = items
	return nil
}

func (m *memTreasury) DeleteItems(ctx context.Context, kind DocumentKind, documentID int64) error {
	if d, ok := m.documents[docKey(kind, documentID)]; ok {
		d.Items = nil
	}
	return nil
}

func (m *memTreasury) GetDocumentForUpdate(ctx context.Context, kind DocumentKind, id int64) (Document, error) {
	return m.GetDocument(ctx, kind, id)
}

func (m *memTreasury) DeleteDocument(ctx context.Context, kind DocumentKind, id int64) error {
	delete(m.documents, docKey(kind, id))
	return nil
}

func (m *memTreasury) MarkDocumentSent(ctx context.Context, kind DocumentKind, id, journalID int64) error {
	d, ok := m.documents[docKey(kind, id)]
	if !ok {
		return ErrDocumentNotFound
	}
	d.Status = DocumentSent
	d.JournalID = &journalID
	return nil
}

type fixedSettings map[string]int64

func (s fixedSettings) Int64(ctx context.Context, name string, fallback int64) int64 {
	if v, ok := s[name]; ok {
		return v
	}
	return fallback
}

func mustCreateBankAccount(t *testing.T, svc *Service, repo *memTreasury) BankAccount {
	t.Helper()
	bank, err := svc.CreateBank(context.Background(), "First National", 1)
	if err != nil {
		t.Fatalf("create bank: %v", err)
	}
	account, err := svc.CreateBankAccount(context.Background(), BankAccountInput{BankID: bank.ID, Number: "001-1", Name: "Operating"}, 1)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func TestAllocateDetailCode(t *testing.T) {
	used := map[string]bool{"1200": true, "1201": true}
	code, err := allocateDetailCode(used, 1200)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if code != "1202" {
		t.Fatalf("code = %q, want 1202", code)
	}

	full := map[string]bool{}
	for n := 9990; n <= 9999; n++ {
		full[fmt.Sprintf("%04d", n)] = true
	}
	if _, err := allocateDetailCode(full, 9990); !errors.Is(err, ErrNoHandlerCodes) {
		t.Fatalf("err = %v, want ErrNoHandlerCodes", err)
	}
}

func TestCreateBankAccountAllocatesHandlerDetail(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)

	account := mustCreateBankAccount(t, svc, repo)
	if code := repo.details[account.HandlerDetailID]; code != "1200" {
		t.Fatalf("handler code = %q, want 1200", code)
	}

	second, err := svc.CreateBankAccount(context.Background(), BankAccountInput{BankID: account.BankID, Number: "001-2", Name: "Savings"}, 1)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if code := repo.details[second.HandlerDetailID]; code != "1201" {
		t.Fatalf("second handler code = %q, want 1201", code)
	}
}

func TestCreateCardReaderUsesReaderOffset(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{SettingCardReaderOffset: 1350}, nil)
	account := mustCreateBankAccount(t, svc, repo)

	reader, err := svc.CreateCardReader(context.Background(), CardReaderInput{BankAccountID: account.ID, Name: "POS 1"}, 1)
	if err != nil {
		t.Fatalf("create reader: %v", err)
	}
	if code := repo.details[reader.HandlerDetailID]; code != "1350" {
		t.Fatalf("handler code = %q, want 1350", code)
	}
}

func TestCreateBankAccountRetriesCodeConflicts(t *testing.T) {
	repo := newMemTreasury()
	repo.detailConflicts = 3
	svc := NewService(repo, fixedSettings{}, nil)

	if _, err := svc.CreateBankAccount(context.Background(), BankAccountInput{BankID: 1, Number: "001-1", Name: "Operating"}, 1); err != nil {
		t.Fatalf("create: %v", err)
	}

	repo.detailConflicts = 100
	if _, err := svc.CreateBankAccount(context.Background(), BankAccountInput{BankID: 1, Number: "001-2", Name: "Savings"}, 1); !errors.Is(err, ErrNoHandlerCodes) {
		t.Fatalf("err = %v, want ErrNoHandlerCodes", err)
	}
}

func TestDeleteBankAccountDeactivatesWhenReferenced(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)
	account := mustCreateBankAccount(t, svc, repo)
	repo.referenced[account.HandlerDetailID] = true

	if err := svc.DeleteBankAccount(context.Background(), account.ID, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	stored, ok := repo.accounts[account.ID]
	if !ok {
		t.Fatal("referenced account must survive as a row")
	}
	if stored.IsActive {
		t.Fatal("referenced account should be deactivated")
	}
	if _, ok := repo.details[account.HandlerDetailID]; !ok {
		t.Fatal("handler detail must survive with the account")
	}
}

func TestDeleteBankAccountRemovesUnusedPair(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)
	account := mustCreateBankAccount(t, svc, repo)

	if err := svc.DeleteBankAccount(context.Background(), account.ID, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := repo.accounts[account.ID]; ok {
		t.Fatal("account should be gone")
	}
	if _, ok := repo.details[account.HandlerDetailID]; ok {
		t.Fatal("handler detail should be gone with the account")
	}
}

func TestCreateCashboxKeepsCodeInLockstep(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)
	ctx := context.Background()

	box, err := svc.CreateCashbox(ctx, CashboxInput{Code: "1101", Name: "Front desk", StartingDate: time.Now()}, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if repo.details[box.HandlerDetailID] != "1101" {
		t.Fatalf("detail code = %q, want 1101", repo.details[box.HandlerDetailID])
	}

	if _, err := svc.CreateCashbox(ctx, CashboxInput{Code: "1101", Name: "Duplicate", StartingDate: time.Now()}, 1); !errors.Is(err, ErrDuplicateCashboxCode) {
		t.Fatalf("err = %v, want ErrDuplicateCashboxCode", err)
	}
	if _, err := svc.CreateCashbox(ctx, CashboxInput{Code: "12345", Name: "Bad code", StartingDate: time.Now()}, 1); err == nil {
		t.Fatal("five-digit code must be rejected")
	}
}

func TestIssueCheckRangeAndDuplicate(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)
	ctx := context.Background()
	account := mustCreateBankAccount(t, svc, repo)

	book, err := svc.CreateCheckbook(ctx, CheckbookInput{BankAccountID: account.ID, StartNumber: 100, PageCount: 3}, 1)
	if err != nil {
		t.Fatalf("create book: %v", err)
	}

	issue := func(number int64) error {
		_, err := svc.IssueCheck(ctx, IssueCheckInput{
			CheckbookID: book.ID, Number: number, Amount: 50,
			IssueDate: time.Now(), DueDate: time.Now(), BeneficiaryDetailID: 7,
		}, 1)
		return err
	}

	if err := issue(99); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("below range err = %v, want ErrOutOfRange", err)
	}
	if err := issue(103); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("above range err = %v, want ErrOutOfRange", err)
	}
	if err := issue(100); err != nil {
		t.Fatalf("issue 100: %v", err)
	}
	if err := issue(100); !errors.Is(err, ErrDuplicateNumber) {
		t.Fatalf("duplicate err = %v, want ErrDuplicateNumber", err)
	}
}

func TestIssuingLastPageExhaustsBook(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)
	ctx := context.Background()
	account := mustCreateBankAccount(t, svc, repo)

	book, err := svc.CreateCheckbook(ctx, CheckbookInput{BankAccountID: account.ID, StartNumber: 1, PageCount: 2}, 1)
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	for _, n := range []int64{1, 2} {
		if _, err := svc.IssueCheck(ctx, IssueCheckInput{
			CheckbookID: book.ID, Number: n, Amount: 10,
			IssueDate: time.Now(), DueDate: time.Now(), BeneficiaryDetailID: 7,
		}, 1); err != nil {
			t.Fatalf("issue %d: %v", n, err)
		}
	}
	if repo.checkbooks[book.ID].Status != CheckbookExhausted {
		t.Fatal("book should be exhausted after its last page")
	}
	if _, err := svc.IssueCheck(ctx, IssueCheckInput{
		CheckbookID: book.ID, Number: 1, Amount: 10,
		IssueDate: time.Now(), DueDate: time.Now(), BeneficiaryDetailID: 7,
	}, 1); !errors.Is(err, ErrCheckbookExhausted) {
		t.Fatalf("err = %v, want ErrCheckbookExhausted", err)
	}
}

func TestRegisterIncomingCheck(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)
	ctx := context.Background()

	beneficiary := int64(410)
	check, err := svc.RegisterIncomingCheck(ctx, IncomingCheckInput{
		Number: "AB-123", Amount: 80, IssueDate: time.Now(), DueDate: time.Now(),
		BeneficiaryDetailID: &beneficiary,
	}, 1)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if check.Status != CheckCreated || check.Type != CheckIncoming {
		t.Fatalf("check = %+v", check)
	}
	if check.Number != "AB-123" {
		t.Fatalf("number = %q, want the free-form number kept verbatim", check.Number)
	}
	stored, err := repo.GetCheck(ctx, check.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.BeneficiaryDetailID == nil || *stored.BeneficiaryDetailID != beneficiary {
		t.Fatal("registered check should keep its beneficiary detail")
	}
}

func TestDeleteCheckGuards(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)
	ctx := context.Background()

	check, err := svc.RegisterIncomingCheck(ctx, IncomingCheckInput{Number: "555", Amount: 80, IssueDate: time.Now(), DueDate: time.Now()}, 1)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if check.Status != CheckCreated {
		t.Fatalf("status = %s, want CREATED", check.Status)
	}
	if err := svc.DeleteCheck(ctx, check.ID, 1); err != nil {
		t.Fatalf("delete created check: %v", err)
	}

	spent := &Check{ID: repo.id(), Type: CheckIncoming, Number: "556", Status: CheckSpent}
	repo.checks[spent.ID] = spent
	if err := svc.DeleteCheck(ctx, spent.ID, 1); !errors.Is(err, ErrCheckState) {
		t.Fatalf("err = %v, want ErrCheckState", err)
	}
}

func TestCheckTransitionTable(t *testing.T) {
	allowed := []struct{ from, to CheckStatus }{
		{CheckCreated, CheckInCashbox},
		{CheckInCashbox, CheckCreated},
		{CheckInCashbox, CheckSpent},
		{CheckIssued, CheckSpent},
		{CheckSpent, CheckInCashbox},
		{CheckSpent, CheckIssued},
	}
	for _, tr := range allowed {
		if !CanTransitionCheck(tr.from, tr.to) {
			t.Errorf("%s -> %s should be allowed", tr.from, tr.to)
		}
	}
	denied := []struct{ from, to CheckStatus }{
		{CheckCreated, CheckSpent},
		{CheckCreated, CheckIssued},
		{CheckIssued, CheckInCashbox},
		{CheckIssued, CheckCreated},
		{CheckSpent, CheckCreated},
	}
	for _, tr := range denied {
		if CanTransitionCheck(tr.from, tr.to) {
			t.Errorf("%s -> %s should be denied", tr.from, tr.to)
		}
	}
}
