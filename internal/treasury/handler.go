package treasury

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/daftar-erp/daftar-erp/internal/platform/httpx"
	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// Handler exposes treasury instruments and documents over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the treasury handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func actorID(r *http.Request) int64 {
	if caller := shared.CallerFromContext(r.Context()); caller != nil {
		return caller.ID
	}
	return 0
}

func decodeValid[T any](h *Handler, r *http.Request, req *T) error {
	if err := httpx.DecodeJSON(r, req); err != nil {
		return shared.Validation("invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return shared.Validation(err.Error())
	}
	return nil
}

func (h *Handler) listBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := h.service.ListBanks(r.Context())
	if err != nil {
		h.logger.Error("list banks", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]BankResponse, 0, len(banks))
	for _, b := range banks {
		items = append(items, toBankResponse(b))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createBank(w http.ResponseWriter, r *http.Request) {
	var req BankRequest
	if err := decodeValid(h, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	bank, err := h.service.CreateBank(r.Context(), req.Name, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toBankResponse(bank))
}

func (h *Handler) updateBank(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid bank id"))
		return
	}
	var req BankRequest
	if err := decodeValid(h, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.UpdateBank(r.Context(), id, req.Name); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteBank(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid bank id"))
		return
	}
	if err := h.service.DeleteBank(r.Context(), id, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listBankAccounts(w http.ResponseWriter, r *http.Request) {
	var bankID *int64
	if v := r.URL.Query().Get("bank_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			bankID = &id
		}
	}
	accounts, err := h.service.ListBankAccounts(r.Context(), bankID)
	if err != nil {
		h.logger.Error("list bank accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]BankAccountResponse, 0, len(accounts))
	for _, a := range accounts {
		items = append(items, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createBankAccount(w http.ResponseWriter, r *http.Request) {
	var req BankAccountRequest
	if err := decodeValid(h, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.CreateBankAccount(r.Context(), BankAccountInput{
		BankID: req.BankID, Number: req.Number, Name: req.Name,
	}, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) updateBankAccount(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid account id"))
		return
	}
	var req BankAccountRequest
	if err := decodeValid(h, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.UpdateBankAccount(r.Context(), id, BankAccountInput{
		BankID: req.BankID, Number: req.Number, Name: req.Name,
	}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteBankAccount(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid account id"))
		return
	}
	if err := h.service.DeleteBankAccount(r.Context(), id, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCardReaders(w http.ResponseWriter, r *http.Request) {
	readers, err := h.service.ListCardReaders(r.Context())
	if err != nil {
		h.logger.Error("list card readers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]CardReaderResponse, 0, len(readers))
	for _, cr := range readers {
		items = append(items, toReaderResponse(cr))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createCardReader(w http.ResponseWriter, r *http.Request) {
	var req CardReaderRequest
	if err := decodeValid(h, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	reader, err := h.service.CreateCardReader(r.Context(), CardReaderInput{
		BankAccountID: req.BankAccountID, Name: req.Name,
	}, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toReaderResponse(reader))
}

func (h *Handler) updateCardReader(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid card reader id"))
		return
	}
	var req CardReaderRequest
	if err := decodeValid(h, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.UpdateCardReader(r.Context(), id, CardReaderInput{
		BankAccountID: req.BankAccountID, Name: req.Name,
	}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteCardReader(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid card reader id"))
		return
	}
	if err := h.service.DeleteCardReader(r.Context(), id, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCashboxes(w http.ResponseWriter, r *http.Request) {
	boxes, err := h.service.ListCashboxes(r.Context())
	if err != nil {
		h.logger.Error("list cashboxes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]CashboxResponse, 0, len(boxes))
	for _, cb := range boxes {
		items = append(items, toCashboxResponse(cb))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createCashbox(w http.ResponseWriter, r *http.Request) {
	var req CashboxRequest
	if err := decodeValid(h, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, _ := time.Parse(dateLayout, req.StartingDate)
	box, err := h.service.CreateCashbox(r.Context(), CashboxInput{
		Code: req.Code, Name: req.Name, StartingAmount: req.StartingAmount, StartingDate: date,
	}, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCashboxResponse(box))
}

func (h *Handler) updateCashbox(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid cashbox id"))
		return
	}
	var req CashboxRequest
	if err := decodeValid(h, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, _ := time.Parse(dateLayout, req.StartingDate)
	if err := h.service.UpdateCashbox(r.Context(), id, CashboxInput{
		Code: req.Code, Name: req.Name, StartingAmount: req.StartingAmount, StartingDate: date,
	}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteCashbox(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid cashbox id"))
		return
	}
	if err := h.service.DeleteCashbox(r.Context(), id, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCheckbooks(w http.ResponseWriter, r *http.Request) {
	var accountID *int64
	if v := r.URL.Query().Get("bank_account_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			accountID = &id
		}
	}
	books, err := h.service.ListCheckbooks(r.Context(), accountID)
	if err != nil {
		h.logger.Error("list checkbooks", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]CheckbookResponse, 0, len(books))
	for _, b := range books {
		items = append(items, toCheckbookResponse(b))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createCheckbook(w http.ResponseWriter, r *http.Request) {
	var req CheckbookRequest
	if err := decodeValid(h, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	book, err := h.service.CreateCheckbook(r.Context(), CheckbookInput{
		BankAccountID: req.BankAccountID, StartNumber: req.StartNumber, PageCount: req.PageCount,
	}, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCheckbookResponse(book))
}

func (h *Handler) deleteCheckbook(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid checkbook id"))
		return
	}
	if err := h.service.DeleteCheckbook(r.Context(), id, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listChecks(w http.ResponseWriter, r *http.Request) {
	filter := CheckFilter{}
	if v := r.URL.Query().Get("type"); v != "" {
		t := CheckType(v)
		filter.Type = &t
	}
	if v := r.URL.Query().Get("status"); v != "" {
		st := CheckStatus(v)
		filter.Status = &st
	}
	if v := r.URL.Query().Get("cashbox_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.CashboxID = &id
		}
	}
	checks, err := h.service.ListChecks(r.Context(), filter)
	if err != nil {
		h.logger.Error("list checks", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]CheckResponse, 0, len(checks))
	for _, c := range checks {
		items = append(items, toCheckResponse(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) getCheck(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid check id"))
		return
	}
	check, err := h.service.GetCheck(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCheckResponse(check))
}

func (h *Handler) issueCheck(w http.ResponseWriter, r *http.Request) {
	var req IssueCheckRequest
	if err := decodeValid(h, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	issueDate, _ := time.Parse(dateLayout, req.IssueDate)
	dueDate, _ := time.Parse(dateLayout, req.DueDate)
	check, err := h.service.IssueCheck(r.Context(), IssueCheckInput{
		CheckbookID:         req.CheckbookID,
		Number:              req.Number,
		Amount:              req.Amount,
		IssueDate:           issueDate,
		DueDate:             dueDate,
		BeneficiaryDetailID: req.BeneficiaryDetailID,
	}, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCheckResponse(check))
}

func (h *Handler) registerIncomingCheck(w http.ResponseWriter, r *http.Request) {
	var req IncomingCheckRequest
	if err := decodeValid(h, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	issueDate, _ := time.Parse(dateLayout, req.IssueDate)
	dueDate, _ := time.Parse(dateLayout, req.DueDate)
	check, err := h.service.RegisterIncomingCheck(r.Context(), IncomingCheckInput{
		Number: req.Number, Amount: req.Amount, IssueDate: issueDate, DueDate: dueDate,
		BeneficiaryDetailID: req.BeneficiaryDetailID,
	}, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCheckResponse(check))
}

func (h *Handler) deleteCheck(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid check id"))
		return
	}
	if err := h.service.DeleteCheck(r.Context(), id, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeDocument(r *http.Request, id int64) (DocumentInput, error) {
	var req DocumentRequest
	if err := decodeValid(h, r, &req); err != nil {
		return DocumentInput{}, err
	}
	date, _ := time.Parse(dateLayout, req.Date)
	items := make([]DocumentItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, DocumentItemInput{
			Instrument:    InstrumentType(item.Instrument),
			Amount:        item.Amount,
			BankAccountID: item.BankAccountID,
			CardReaderID:  item.CardReaderID,
			CheckID:       item.CheckID,
			Reference:     item.Reference,
		})
	}
	return DocumentInput{
		ID:            id,
		Date:          date,
		FiscalYearID:  req.FiscalYearID,
		DetailID:      req.DetailID,
		SpecialCodeID: req.SpecialCodeID,
		CashboxID:     req.CashboxID,
		TotalAmount:   req.TotalAmount,
		Items:         items,
	}, nil
}

func (h *Handler) documentFilter(r *http.Request) DocumentFilter {
	page, perPage := shared.PageParams(r)
	filter := DocumentFilter{Limit: perPage, Offset: shared.Offset(page, perPage)}
	if v := r.URL.Query().Get("fiscal_year_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.FiscalYearID = &id
		}
	}
	if v := r.URL.Query().Get("status"); v != "" {
		st := DocumentStatus(v)
		filter.Status = &st
	}
	return filter
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	h.listDocuments(w, r, KindReceipt)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	h.listDocuments(w, r, KindPayment)
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request, kind DocumentKind) {
	page, perPage := shared.PageParams(r)
	filter := h.documentFilter(r)
	var (
		docs  []Document
		total int
		err   error
	)
	if kind == KindReceipt {
		docs, total, err = h.service.ListReceipts(r.Context(), filter)
	} else {
		docs, total, err = h.service.ListPayments(r.Context(), filter)
	}
	if err != nil {
		h.logger.Error("list documents", slog.String("kind", string(kind)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, toDocumentResponse(d))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid receipt id"))
		return
	}
	doc, err := h.service.GetReceipt(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid payment id"))
		return
	}
	doc, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *Handler) createReceipt(w http.ResponseWriter, r *http.Request) {
	input, err := h.decodeDocument(r, 0)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.SaveReceipt(r.Context(), input, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *Handler) updateReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid receipt id"))
		return
	}
	input, err := h.decodeDocument(r, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.SaveReceipt(r.Context(), input, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *Handler) deleteReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid receipt id"))
		return
	}
	if err := h.service.DeleteReceipt(r.Context(), id, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	input, err := h.decodeDocument(r, 0)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.SavePayment(r.Context(), input, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid payment id"))
		return
	}
	input, err := h.decodeDocument(r, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.SavePayment(r.Context(), input, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid payment id"))
		return
	}
	if err := h.service.DeletePayment(r.Context(), id, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
