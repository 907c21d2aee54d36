package http

import (
	"net/http"
	"strings"
	"time"

	"kanakku/internal/core"
	"kanakku/internal/ledger"
)

type openAccountRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type createTransactionRequest struct {
	AccountID       string      `json:"accountId"`
	Type            string      `json:"type"`
	Amount          amountField `json:"amount"`
	Description     string      `json:"description"`
	CategoryID      string      `json:"categoryId"`
	Subcategory     string      `json:"subcategory"`
	Date            string      `json:"date"`
	GoalID          string      `json:"goalId"`
	EventID         string      `json:"eventId"`
	EventCategoryID string      `json:"eventCategoryId"`
	NeedsReview     bool        `json:"needsReview"`
}

// editTransactionRequest leaves absent fields unchanged; an empty string
// clears an optional reference.
type editTransactionRequest struct {
	AccountID       *string      `json:"accountId"`
	Type            *string      `json:"type"`
	Amount          *amountField `json:"amount"`
	Description     *string      `json:"description"`
	CategoryID      *string      `json:"categoryId"`
	Subcategory     *string      `json:"subcategory"`
	Date            *string      `json:"date"`
	GoalID          *string      `json:"goalId"`
	EventID         *string      `json:"eventId"`
	EventCategoryID *string      `json:"eventCategoryId"`
	NeedsReview     *bool        `json:"needsReview"`
	ExpectedVersion int64        `json:"expectedVersion"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	accounts, err := s.deps.Ledger.Accounts(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountViews(accounts))
}

func (s *Server) handleOpenAccount(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	var req openAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	acc, err := s.deps.Ledger.OpenAccount(r.Context(), actor, sanitizeInput(req.Name), core.AccountType(sanitizeInput(req.Type)))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAccountView(acc))
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	report, err := s.deps.Ledger.Reconcile(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReconcileView(report))
}

// handleListTransactions filters by accountId, goalId, eventId,
// eventCategoryId, type and an inclusive from/to date range.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	q := r.URL.Query()
	filter := ledger.TransactionFilter{
		AccountID:       sanitizeInput(q.Get("accountId")),
		GoalID:          sanitizeInput(q.Get("goalId")),
		EventID:         sanitizeInput(q.Get("eventId")),
		EventCategoryID: sanitizeInput(q.Get("eventCategoryId")),
	}
	if v := sanitizeInput(q.Get("type")); v != "" {
		t, err := core.ParseTransactionType(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		filter.Type = t
	}
	from, err := parseDay(q.Get("from"), s.deps.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := parseDay(q.Get("to"), s.deps.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filter.From = from
	if !to.IsZero() {
		// inclusive of the whole last day
		filter.To = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	txs, err := s.deps.Ledger.Transactions(r.Context(), actor, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransactionView(t, s.deps.Location))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	t, err := s.deps.Ledger.Transaction(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionView(t, s.deps.Location))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input(s.deps.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	change, err := s.deps.Ledger.CreateTransaction(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newChangeView(change, s.deps.Location))
}

func (req createTransactionRequest) input(loc *time.Location) (ledger.CreateInput, error) {
	typ, err := core.ParseTransactionType(req.Type)
	if err != nil {
		return ledger.CreateInput{}, err
	}
	amount, err := req.Amount.parse()
	if err != nil {
		return ledger.CreateInput{}, err
	}
	date, err := parseDay(req.Date, loc)
	if err != nil {
		return ledger.CreateInput{}, err
	}
	return ledger.CreateInput{
		AccountID:       sanitizeInput(req.AccountID),
		Type:            typ,
		Amount:          amount,
		Description:     sanitizeInput(req.Description),
		CategoryID:      sanitizeInput(req.CategoryID),
		Subcategory:     sanitizeInput(req.Subcategory),
		Date:            date,
		GoalID:          sanitizeInput(req.GoalID),
		EventID:         sanitizeInput(req.EventID),
		EventCategoryID: sanitizeInput(req.EventCategoryID),
		NeedsReview:     req.NeedsReview,
	}, nil
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	var req editTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input(s.deps.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	change, err := s.deps.Ledger.EditTransaction(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newChangeView(change, s.deps.Location))
}

func (req editTransactionRequest) input(loc *time.Location) (ledger.EditInput, error) {
	const op = "http.edit_transaction"
	if req.ExpectedVersion < 0 {
		return ledger.EditInput{}, core.Validationf(op, "expectedVersion must not be negative")
	}
	in := ledger.EditInput{
		AccountID:       optionalString(req.AccountID),
		Description:     optionalString(req.Description),
		CategoryID:      optionalString(req.CategoryID),
		Subcategory:     optionalString(req.Subcategory),
		GoalID:          optionalString(req.GoalID),
		EventID:         optionalString(req.EventID),
		EventCategoryID: optionalString(req.EventCategoryID),
		NeedsReview:     req.NeedsReview,
		ExpectedVersion: req.ExpectedVersion,
	}
	if req.Type != nil {
		t, err := core.ParseTransactionType(*req.Type)
		if err != nil {
			return ledger.EditInput{}, err
		}
		in.Type = &t
	}
	if req.Amount != nil {
		amount, err := req.Amount.parse()
		if err != nil {
			return ledger.EditInput{}, err
		}
		in.Amount = &amount
	}
	if req.Date != nil {
		if strings.TrimSpace(*req.Date) == "" {
			return ledger.EditInput{}, core.Validationf(op, "date cannot be cleared")
		}
		date, err := parseDay(*req.Date, loc)
		if err != nil {
			return ledger.EditInput{}, err
		}
		in.Date = &date
	}
	return in, nil
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	version, err := parseVersion(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	change, err := s.deps.Ledger.DeleteTransaction(r.Context(), actor, r.PathValue("id"), version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newChangeView(change, s.deps.Location))
}

func (s *Server) handleReviewTransaction(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	version, err := parseVersion(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	change, err := s.deps.Ledger.ReviewTransaction(r.Context(), actor, r.PathValue("id"), version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newChangeView(change, s.deps.Location))
}
