package ledger

import "time"

// ItemRequest is the JSON shape of a journal line.
type ItemRequest struct {
	CodeID      int64   `json:"code_id" validate:"required"`
	PartyID     *int64  `json:"party_id"`
	DetailID    *int64  `json:"detail_id"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
	Description string  `json:"description" validate:"max=500"`
}

// JournalRequest is the JSON payload for creating or updating a journal.
type JournalRequest struct {
	FiscalYearID int64         `json:"fiscal_year_id" validate:"required"`
	Date         string        `json:"date" validate:"required,datetime=2006-01-02"`
	Description  string        `json:"description" validate:"max=500"`
	Items        []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ItemResponse is the JSON shape of a persisted line.
type ItemResponse struct {
	ID          int64   `json:"id"`
	CodeID      int64   `json:"code_id"`
	PartyID     *int64  `json:"party_id,omitempty"`
	DetailID    *int64  `json:"detail_id,omitempty"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Description string  `json:"description,omitempty"`
	Position    int     `json:"position"`
}

// JournalResponse is the JSON shape of a journal.
type JournalResponse struct {
	ID           int64          `json:"id"`
	FiscalYearID int64          `json:"fiscal_year_id"`
	RefNo        string         `json:"ref_no"`
	Code         int64          `json:"code"`
	Date         string         `json:"date"`
	Description  string         `json:"description,omitempty"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	Items        []ItemResponse `json:"items,omitempty"`
}

func toJournalResponse(j Journal) JournalResponse {
	items := make([]ItemResponse, 0, len(j.Items))
	for _, item := range j.Items {
		items = append(items, ItemResponse{
			ID:          item.ID,
			CodeID:      item.CodeID,
			PartyID:     item.PartyID,
			DetailID:    item.DetailID,
			Debit:       item.Debit,
			Credit:      item.Credit,
			Description: item.Description,
			Position:    item.Position,
		})
	}
	return JournalResponse{
		ID:           j.ID,
		FiscalYearID: j.FiscalYearID,
		RefNo:        j.RefNo,
		Code:         j.Code,
		Date:         j.Date.Format("2006-01-02"),
		Description:  j.Description,
		Status:       string(j.Status),
		CreatedAt:    j.CreatedAt,
		Items:        items,
	}
}

func toItemInputs(reqs []ItemRequest) []ItemInput {
	items := make([]ItemInput, 0, len(reqs))
	for _, req := range reqs {
		items = append(items, ItemInput{
			CodeID:      req.CodeID,
			PartyID:     req.PartyID,
			DetailID:    req.DetailID,
			Debit:       req.Debit,
			Credit:      req.Credit,
			Description: req.Description,
		})
	}
	return items
}
