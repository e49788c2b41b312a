package treasury

import (
	"context"
	"errors"
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func seedIncomingCheck(repo *memTreasury, status CheckStatus, cashboxID *int64) int64 {
	id := repo.id()
	repo.checks[id] = &Check{ID: id, Type: CheckIncoming, Number: "900", Amount: 50, Status: status, CashboxID: cashboxID}
	return id
}

func seedOutgoingCheck(repo *memTreasury, status CheckStatus) int64 {
	id := repo.id()
	book := int64(1)
	repo.checks[id] = &Check{ID: id, Type: CheckOutgoing, CheckbookID: &book, Number: "100", Amount: 50, Status: status}
	return id
}

func receiptInput(boxID int64, items ...DocumentItemInput) DocumentInput {
	var total float64
	for _, item := range items {
		total += item.Amount
	}
	return DocumentInput{
		Date:         time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		FiscalYearID: 1,
		DetailID:     42,
		CashboxID:    &boxID,
		TotalAmount:  total,
		Items:        items,
	}
}

func TestValidateDocumentRules(t *testing.T) {
	cases := []struct {
		name  string
		kind  DocumentKind
		input DocumentInput
		want  error
	}{
		{
			name: "total mismatch",
			kind: KindReceipt,
			input: DocumentInput{
				FiscalYearID: 1, DetailID: 1, CashboxID: ptr(int64(1)), TotalAmount: 160,
				Items: []DocumentItemInput{{Instrument: InstrumentCash, Amount: 100}, {Instrument: InstrumentCash, Amount: 50}},
			},
			want: ErrTotalMismatch,
		},
		{
			name: "cash without cashbox",
			kind: KindReceipt,
			input: DocumentInput{
				FiscalYearID: 1, DetailID: 1, TotalAmount: 100,
				Items: []DocumentItemInput{{Instrument: InstrumentCash, Amount: 100}},
			},
			want: ErrCashboxRequired,
		},
		{
			name: "receipt check without cashbox",
			kind: KindReceipt,
			input: DocumentInput{
				FiscalYearID: 1, DetailID: 1, TotalAmount: 50,
				Items: []DocumentItemInput{{Instrument: InstrumentCheck, Amount: 50, CheckID: ptr(int64(9))}},
			},
			want: ErrCashboxRequired,
		},
		{
			name: "payment check needs no cashbox",
			kind: KindPayment,
			input: DocumentInput{
				FiscalYearID: 1, DetailID: 1, TotalAmount: 50,
				Items: []DocumentItemInput{{Instrument: InstrumentCheck, Amount: 50, CheckID: ptr(int64(9))}},
			},
			want: nil,
		},
		{
			name: "checkin on receipt",
			kind: KindReceipt,
			input: DocumentInput{
				FiscalYearID: 1, DetailID: 1, TotalAmount: 50,
				Items: []DocumentItemInput{{Instrument: InstrumentCheckIn, Amount: 50, CheckID: ptr(int64(9))}},
			},
			want: errAnyValidation,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateDocument(tc.kind, tc.input)
			switch {
			case tc.want == nil:
				if err != nil {
					t.Fatalf("err = %v, want nil", err)
				}
			case errors.Is(tc.want, errAnyValidation):
				if err == nil {
					t.Fatal("expected a validation error")
				}
			default:
				if !errors.Is(err, tc.want) {
					t.Fatalf("err = %v, want %v", err, tc.want)
				}
			}
		})
	}
}

// errAnyValidation marks table cases that only assert an error occurred.
var errAnyValidation = errors.New("any validation error")

func TestSaveReceiptDepositsCheck(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)
	ctx := context.Background()
	boxID := repo.id()
	repo.cashboxes[boxID] = &Cashbox{ID: boxID, Code: "1101", Name: "Front"}
	checkID := seedIncomingCheck(repo, CheckCreated, nil)

	doc, err := svc.SaveReceipt(ctx, receiptInput(boxID,
		DocumentItemInput{Instrument: InstrumentCash, Amount: 100},
		DocumentItemInput{Instrument: InstrumentCheck, Amount: 50, CheckID: &checkID},
	), 1)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if doc.Status != DocumentDraft {
		t.Fatalf("status = %s, want DRAFT", doc.Status)
	}
	if doc.Number != 1 {
		t.Fatalf("number = %d, want 1", doc.Number)
	}
	check := repo.checks[checkID]
	if check.Status != CheckInCashbox {
		t.Fatalf("check status = %s, want INCASHBOX", check.Status)
	}
	if check.CashboxID == nil || *check.CashboxID != boxID {
		t.Fatal("check should sit in the receipt's cashbox")
	}
}

func TestSaveReceiptRejectsDepositedCheck(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)
	boxID := repo.id()
	repo.cashboxes[boxID] = &Cashbox{ID: boxID}
	checkID := seedIncomingCheck(repo, CheckInCashbox, &boxID)

	_, err := svc.SaveReceipt(context.Background(), receiptInput(boxID,
		DocumentItemInput{Instrument: InstrumentCheck, Amount: 50, CheckID: &checkID},
	), 1)
	if !errors.Is(err, ErrCheckState) {
		t.Fatalf("err = %v, want ErrCheckState", err)
	}
}

func TestRewriteReceiptReleasesDroppedCheck(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)
	ctx := context.Background()
	boxID := repo.id()
	repo.cashboxes[boxID] = &Cashbox{ID: boxID}
	checkID := seedIncomingCheck(repo, CheckCreated, nil)

	doc, err := svc.SaveReceipt(ctx, receiptInput(boxID,
		DocumentItemInput{Instrument: InstrumentCheck, Amount: 50, CheckID: &checkID},
	), 1)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	rewrite := receiptInput(boxID, DocumentItemInput{Instrument: InstrumentCash, Amount: 70})
	rewrite.ID = doc.ID
	if _, err := svc.SaveReceipt(ctx, rewrite, 1); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	check := repo.checks[checkID]
	if check.Status != CheckCreated {
		t.Fatalf("check status = %s, want CREATED after release", check.Status)
	}
	if check.CashboxID != nil {
		t.Fatal("released check should leave the cashbox")
	}
}

func TestRewriteReceiptMovesRetainedCheckToNewCashbox(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)
	ctx := context.Background()
	boxA := repo.id()
	boxB := repo.id()
	repo.cashboxes[boxA] = &Cashbox{ID: boxA}
	repo.cashboxes[boxB] = &Cashbox{ID: boxB}
	checkID := seedIncomingCheck(repo, CheckCreated, nil)

	doc, err := svc.SaveReceipt(ctx, receiptInput(boxA,
		DocumentItemInput{Instrument: InstrumentCheck, Amount: 50, CheckID: &checkID},
	), 1)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	rewrite := receiptInput(boxB, DocumentItemInput{Instrument: InstrumentCheck, Amount: 50, CheckID: &checkID})
	rewrite.ID = doc.ID
	if _, err := svc.SaveReceipt(ctx, rewrite, 1); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	check := repo.checks[checkID]
	if check.Status != CheckInCashbox {
		t.Fatalf("status = %s, want INCASHBOX", check.Status)
	}
	if check.CashboxID == nil || *check.CashboxID != boxB {
		t.Fatal("retained check should follow the receipt to the new cashbox")
	}
}

func TestPaymentSpendsInCashboxCheck(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)
	ctx := context.Background()
	boxID := repo.id()
	repo.cashboxes[boxID] = &Cashbox{ID: boxID}
	checkID := seedIncomingCheck(repo, CheckInCashbox, &boxID)

	_, err := svc.SavePayment(ctx, DocumentInput{
		Date: time.Now(), FiscalYearID: 1, DetailID: 42, TotalAmount: 50,
		Items: []DocumentItemInput{{Instrument: InstrumentCheckIn, Amount: 50, CheckID: &checkID}},
	}, 1)
	if err != nil {
		t.Fatalf("save payment: %v", err)
	}
	check := repo.checks[checkID]
	if check.Status != CheckSpent {
		t.Fatalf("status = %s, want SPENT", check.Status)
	}
	if check.CashboxID == nil || *check.CashboxID != boxID {
		t.Fatal("spent checkin keeps its cashbox for history")
	}
}

func TestPaymentSpendsIssuedCheck(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)
	checkID := seedOutgoingCheck(repo, CheckIssued)

	_, err := svc.SavePayment(context.Background(), DocumentInput{
		Date: time.Now(), FiscalYearID: 1, DetailID: 42, TotalAmount: 50,
		Items: []DocumentItemInput{{Instrument: InstrumentCheck, Amount: 50, CheckID: &checkID}},
	}, 1)
	if err != nil {
		t.Fatalf("save payment: %v", err)
	}
	if repo.checks[checkID].Status != CheckSpent {
		t.Fatalf("status = %s, want SPENT", repo.checks[checkID].Status)
	}
}

func TestPaymentRejectsCheckHeldByAnotherState(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)
	checkID := seedOutgoingCheck(repo, CheckSpent)

	_, err := svc.SavePayment(context.Background(), DocumentInput{
		Date: time.Now(), FiscalYearID: 1, DetailID: 42, TotalAmount: 50,
		Items: []DocumentItemInput{{Instrument: InstrumentCheck, Amount: 50, CheckID: &checkID}},
	}, 1)
	if !errors.Is(err, ErrCheckState) {
		t.Fatalf("err = %v, want ErrCheckState", err)
	}
}

func TestDeleteDraftRevertsCheckLines(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)
	ctx := context.Background()
	boxID := repo.id()
	repo.cashboxes[boxID] = &Cashbox{ID: boxID}
	checkID := seedIncomingCheck(repo, CheckCreated, nil)

	doc, err := svc.SaveReceipt(ctx, receiptInput(boxID,
		DocumentItemInput{Instrument: InstrumentCheck, Amount: 50, CheckID: &checkID},
	), 1)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := svc.DeleteReceipt(ctx, doc.ID, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if repo.checks[checkID].Status != CheckCreated {
		t.Fatalf("status = %s, want CREATED", repo.checks[checkID].Status)
	}
}

func TestSentDocumentsAreImmutable(t *testing.T) {
	repo := newMemTreasury()
	svc := NewService(repo, fixedSettings{}, nil)
	ctx := context.Background()
	boxID := repo.id()
	repo.cashboxes[boxID] = &Cashbox{ID: boxID}

	doc, err := svc.SaveReceipt(ctx, receiptInput(boxID,
		DocumentItemInput{Instrument: InstrumentCash, Amount: 100},
	), 1)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.MarkDocumentSent(ctx, KindReceipt, doc.ID, 5); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	rewrite := receiptInput(boxID, DocumentItemInput{Instrument: InstrumentCash, Amount: 120})
	rewrite.ID = doc.ID
	if _, err := svc.SaveReceipt(ctx, rewrite, 1); !errors.Is(err, ErrDocumentSent) {
		t.Fatalf("rewrite err = %v, want ErrDocumentSent", err)
	}
	if err := svc.DeleteReceipt(ctx, doc.ID, 1); !errors.Is(err, ErrDocumentSent) {
		t.Fatalf("delete err = %v, want ErrDocumentSent", err)
	}
}

func TestCreateDocumentNumberRetry(t *testing.T) {
	repo := newMemTreasury()
	repo.numberConflicts = 3
	svc := NewService(repo, fixedSettings{}, nil)
	boxID := repo.id()
	repo.cashboxes[boxID] = &Cashbox{ID: boxID}

	if _, err := svc.SaveReceipt(context.Background(), receiptInput(boxID,
		DocumentItemInput{Instrument: InstrumentCash, Amount: 10},
	), 1); err != nil {
		t.Fatalf("save: %v", err)
	}

	repo.numberConflicts = 100
	if _, err := svc.SaveReceipt(context.Background(), receiptInput(boxID,
		DocumentItemInput{Instrument: InstrumentCash, Amount: 10},
	), 1); !errors.Is(err, ErrNumberExhausted) {
		t.Fatalf("err = %v, want ErrNumberExhausted", err)
	}
}
