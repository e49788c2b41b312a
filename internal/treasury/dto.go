package treasury

const dateLayout = "2006-01-02"

// BankRequest is the JSON payload for banks.
type BankRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// BankResponse is the JSON shape of a bank.
type BankResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BankAccountRequest is the JSON payload for bank accounts.
type BankAccountRequest struct {
	BankID int64  `json:"bank_id" validate:"required"`
	Number string `json:"number" validate:"required,max=60"`
	Name   string `json:"name" validate:"required,max=120"`
}

// BankAccountResponse is the JSON shape of a bank account.
type BankAccountResponse struct {
	ID              int64  `json:"id"`
	BankID          int64  `json:"bank_id"`
	Number          string `json:"number"`
	Name            string `json:"name"`
	HandlerDetailID int64  `json:"handler_detail_id"`
	IsActive        bool   `json:"is_active"`
}

// CardReaderRequest is the JSON payload for card readers.
type CardReaderRequest struct {
	BankAccountID int64  `json:"bank_account_id" validate:"required"`
	Name          string `json:"name" validate:"required,max=120"`
}

// CardReaderResponse is the JSON shape of a card reader.
type CardReaderResponse struct {
	ID              int64  `json:"id"`
	BankAccountID   int64  `json:"bank_account_id"`
	Name            string `json:"name"`
	HandlerDetailID int64  `json:"handler_detail_id"`
	IsActive        bool   `json:"is_active"`
}

// CashboxRequest is the JSON payload for cashboxes.
type CashboxRequest struct {
	Code           string  `json:"code" validate:"required,len=4,numeric"`
	Name           string  `json:"name" validate:"required,max=120"`
	StartingAmount float64 `json:"starting_amount" validate:"gte=0"`
	StartingDate   string  `json:"starting_date" validate:"required,datetime=2006-01-02"`
}

// CashboxResponse is the JSON shape of a cashbox.
type CashboxResponse struct {
	ID              int64   `json:"id"`
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	HandlerDetailID int64   `json:"handler_detail_id"`
	StartingAmount  float64 `json:"starting_amount"`
	StartingDate    string  `json:"starting_date"`
}

// CheckbookRequest is the JSON payload for registering a checkbook.
type CheckbookRequest struct {
	BankAccountID int64 `json:"bank_account_id" validate:"required"`
	StartNumber   int64 `json:"start_number" validate:"required,min=1"`
	PageCount     int   `json:"page_count" validate:"required,min=1"`
}

// CheckbookResponse is the JSON shape of a checkbook.
type CheckbookResponse struct {
	ID            int64  `json:"id"`
	BankAccountID int64  `json:"bank_account_id"`
	StartNumber   int64  `json:"start_number"`
	PageCount     int    `json:"page_count"`
	Status        string `json:"status"`
}

// IssueCheckRequest is the JSON payload for issuing an outgoing check.
type IssueCheckRequest struct {
	CheckbookID         int64   `json:"checkbook_id" validate:"required"`
	Number              int64   `json:"number" validate:"required,min=1"`
	Amount              float64 `json:"amount" validate:"required,gt=0"`
	IssueDate           string  `json:"issue_date" validate:"required,datetime=2006-01-02"`
	DueDate             string  `json:"due_date" validate:"required,datetime=2006-01-02"`
	BeneficiaryDetailID int64   `json:"beneficiary_detail_id" validate:"required"`
}

// IncomingCheckRequest is the JSON payload for registering a received check.
type IncomingCheckRequest struct {
	Number              string  `json:"number" validate:"required,max=60"`
	Amount              float64 `json:"amount" validate:"required,gt=0"`
	IssueDate           string  `json:"issue_date" validate:"required,datetime=2006-01-02"`
	DueDate             string  `json:"due_date" validate:"required,datetime=2006-01-02"`
	BeneficiaryDetailID *int64  `json:"beneficiary_detail_id"`
}

// CheckResponse is the JSON shape of a check.
type CheckResponse struct {
	ID                  int64   `json:"id"`
	Type                string  `json:"type"`
	CheckbookID         *int64  `json:"checkbook_id,omitempty"`
	Number              string  `json:"number"`
	Amount              float64 `json:"amount"`
	IssueDate           string  `json:"issue_date"`
	DueDate             string  `json:"due_date"`
	BeneficiaryDetailID *int64  `json:"beneficiary_detail_id,omitempty"`
	Status              string  `json:"status"`
	CashboxID           *int64  `json:"cashbox_id,omitempty"`
}

// DocumentItemRequest is one instrument line on a document payload.
type DocumentItemRequest struct {
	Instrument    string  `json:"instrument" validate:"required,oneof=CASH CARD TRANSFER CHECK CHECKIN"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	BankAccountID *int64  `json:"bank_account_id,omitempty"`
	CardReaderID  *int64  `json:"card_reader_id,omitempty"`
	CheckID       *int64  `json:"check_id,omitempty"`
	Reference     string  `json:"reference,omitempty" validate:"max=120"`
}

// DocumentRequest is the JSON payload for saving a receipt or payment.
type DocumentRequest struct {
	Date          string                `json:"date" validate:"required,datetime=2006-01-02"`
	FiscalYearID  int64                 `json:"fiscal_year_id" validate:"required"`
	DetailID      int64                 `json:"detail_id" validate:"required"`
	SpecialCodeID *int64                `json:"special_code_id,omitempty"`
	CashboxID     *int64                `json:"cashbox_id,omitempty"`
	TotalAmount   float64               `json:"total_amount" validate:"gte=0"`
	Items         []DocumentItemRequest `json:"items" validate:"dive"`
}

// DocumentItemResponse is one stored instrument line.
type DocumentItemResponse struct {
	ID            int64   `json:"id"`
	Instrument    string  `json:"instrument"`
	Amount        float64 `json:"amount"`
	BankAccountID *int64  `json:"bank_account_id,omitempty"`
	CardReaderID  *int64  `json:"card_reader_id,omitempty"`
	CheckID       *int64  `json:"check_id,omitempty"`
	Reference     string  `json:"reference,omitempty"`
	Position      int     `json:"position"`
}

// DocumentResponse is the JSON shape of a receipt or payment.
type DocumentResponse struct {
	ID            int64                  `json:"id"`
	Number        int64                  `json:"number"`
	Status        string                 `json:"status"`
	Date          string                 `json:"date"`
	FiscalYearID  int64                  `json:"fiscal_year_id"`
	DetailID      int64                  `json:"detail_id"`
	SpecialCodeID *int64                 `json:"special_code_id,omitempty"`
	CashboxID     *int64                 `json:"cashbox_id,omitempty"`
	TotalAmount   float64                `json:"total_amount"`
	JournalID     *int64                 `json:"journal_id,omitempty"`
	Items         []DocumentItemResponse `json:"items"`
}

func toBankResponse(b Bank) BankResponse {
	return BankResponse{ID: b.ID, Name: b.Name}
}

func toAccountResponse(a BankAccount) BankAccountResponse {
	return BankAccountResponse{ID: a.ID, BankID: a.BankID, Number: a.Number, Name: a.Name,
		HandlerDetailID: a.HandlerDetailID, IsActive: a.IsActive}
}

func toReaderResponse(cr CardReader) CardReaderResponse {
	return CardReaderResponse{ID: cr.ID, BankAccountID: cr.BankAccountID, Name: cr.Name,
		HandlerDetailID: cr.HandlerDetailID, IsActive: cr.IsActive}
}

func toCashboxResponse(cb Cashbox) CashboxResponse {
	return CashboxResponse{ID: cb.ID, Code: cb.Code, Name: cb.Name, HandlerDetailID: cb.HandlerDetailID,
		StartingAmount: cb.StartingAmount, StartingDate: cb.StartingDate.Format(dateLayout)}
}

func toCheckbookResponse(b Checkbook) CheckbookResponse {
	return CheckbookResponse{ID: b.ID, BankAccountID: b.BankAccountID, StartNumber: b.StartNumber,
		PageCount: b.PageCount, Status: string(b.Status)}
}

func toCheckResponse(c Check) CheckResponse {
	return CheckResponse{
		ID:                  c.ID,
		Type:                string(c.Type),
		CheckbookID:         c.CheckbookID,
		Number:              c.Number,
		Amount:              c.Amount,
		IssueDate:           c.IssueDate.Format(dateLayout),
		DueDate:             c.DueDate.Format(dateLayout),
		BeneficiaryDetailID: c.BeneficiaryDetailID,
		Status:              string(c.Status),
		CashboxID:           c.CashboxID,
	}
}

func toDocumentResponse(d Document) DocumentResponse {
	items := make([]DocumentItemResponse, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, DocumentItemResponse{
			ID:            item.ID,
			Instrument:    string(item.Instrument),
			Amount:        item.Amount,
			BankAccountID: item.BankAccountID,
			CardReaderID:  item.CardReaderID,
			CheckID:       item.CheckID,
			Reference:     item.Reference,
			Position:      item.Position,
		})
	}
	return DocumentResponse{
		ID:            d.ID,
		Number:        d.Number,
		Status:        string(d.Status),
		Date:          d.Date.Format(dateLayout),
		FiscalYearID:  d.FiscalYearID,
		DetailID:      d.DetailID,
		SpecialCodeID: d.SpecialCodeID,
		CashboxID:     d.CashboxID,
		TotalAmount:   d.TotalAmount,
		JournalID:     d.JournalID,
		Items:         items,
	}
}
