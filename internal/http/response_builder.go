// Package http provides HTTP server and handler implementations.
//
// This file renders JSON responses: the views of ledger documents and the
// mapping of typed errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"kanakku/internal/aggregate"
	"kanakku/internal/core"
	"kanakku/internal/ledger"
	"kanakku/internal/log"
	"kanakku/internal/services"
)

const dateLayout = "2006-01-02"

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind core.Kind) int {
	switch kind {
	case core.KindValidation:
		return http.StatusUnprocessableEntity
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindConflict:
		return http.StatusConflict
	case core.KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    core.Kind `json:"kind"`
	Message string    `json:"message"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", log.FieldError, err)
	}
}

// writeError renders err as {"error": {"kind", "message"}}. Unknown errors
// are logged and their details withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	detail := errorDetailFor(err)
	kind := detail.Kind
	status := StatusFor(kind)

	logger := log.FromContext(r.Context())
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldErrorKind, string(kind),
			log.FieldError, err)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldPath, r.URL.Path,
			log.FieldErrorKind, string(kind),
			log.FieldError, err)
	}
	writeJSON(w, status, errorBody{Error: detail})
}

// errorDetailFor exposes the message of typed errors only.
func errorDetailFor(err error) errorDetail {
	kind := core.KindOf(err)
	var typed *core.Error
	if kind == core.KindUnknown || !errors.As(err, &typed) {
		return errorDetail{Kind: kind, Message: "internal error"}
	}
	return errorDetail{Kind: kind, Message: typed.Msg}
}

// badRequest reports a malformed request as a validation failure.
func badRequest(w http.ResponseWriter, r *http.Request, format string, args ...any) {
	writeError(w, r, core.Validationf("http", format, args...))
}

func money(d decimal.Decimal) string {
	return d.StringFixed(core.MoneyPlaces)
}

// day renders the calendar day of t in the reporting location.
func day(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(dateLayout)
}

type userView struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	FamilyID string `json:"familyId,omitempty"`
	Role     string `json:"role,omitempty"`
}

func newUserView(u core.User) userView {
	return userView{UID: u.UID, Email: u.Email, FamilyID: u.FamilyID, Role: string(u.Role)}
}

type familyView struct {
	ID         string `json:"id"`
	OwnerID    string `json:"ownerId"`
	InviteCode string `json:"inviteCode,omitempty"`
}

type accountView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Balance string `json:"balance"`
	Version int64  `json:"version"`
}

func newAccountView(a core.Account) accountView {
	return accountView{ID: a.ID, Name: a.Name, Type: string(a.Type), Balance: money(a.Balance), Version: a.Version}
}

func accountViews(accounts []core.Account) []accountView {
	out := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, newAccountView(a))
	}
	return out
}

type transactionView struct {
	ID              string `json:"id"`
	UID             string `json:"uid"`
	AccountID       string `json:"accountId"`
	Amount          string `json:"amount"`
	Type            string `json:"type"`
	Description     string `json:"description,omitempty"`
	CategoryID      string `json:"categoryId"`
	Category        string `json:"category"`
	Subcategory     string `json:"subcategory,omitempty"`
	Date            string `json:"date"`
	GoalID          string `json:"goalId,omitempty"`
	EventID         string `json:"eventId,omitempty"`
	EventCategoryID string `json:"eventCategoryId,omitempty"`
	NeedsReview     bool   `json:"needsReview"`
	ReviewedBy      string `json:"reviewedBy,omitempty"`
	Version         int64  `json:"version"`
}

func newTransactionView(t core.Transaction, loc *time.Location) transactionView {
	return transactionView{
		ID:              t.ID,
		UID:             t.UID,
		AccountID:       t.AccountID,
		Amount:          money(t.Amount),
		Type:            string(t.Type),
		Description:     t.Description,
		CategoryID:      t.CategoryID,
		Category:        t.Category,
		Subcategory:     t.Subcategory,
		Date:            day(t.Date, loc),
		GoalID:          t.GoalID,
		EventID:         t.EventID,
		EventCategoryID: t.EventCategoryID,
		NeedsReview:     t.NeedsReview,
		ReviewedBy:      t.ReviewedBy,
		Version:         t.Version,
	}
}

// changeView is the response of every ledger write.
type changeView struct {
	Transaction transactionView `json:"transaction"`
	Accounts    []accountView   `json:"accounts"`
}

func newChangeView(c ledger.Change, loc *time.Location) changeView {
	return changeView{Transaction: newTransactionView(c.Transaction, loc), Accounts: accountViews(c.Accounts)}
}

type categoryView struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	IsDefault     bool     `json:"isDefault"`
	Subcategories []string `json:"subcategories"`
}

func newCategoryView(c core.Category) categoryView {
	subs := c.Subcategories
	if subs == nil {
		subs = []string{}
	}
	return categoryView{ID: c.ID, Name: c.Name, Type: string(c.Type), IsDefault: c.IsDefault, Subcategories: subs}
}

type budgetView struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Month    string `json:"month"`
}

func newBudgetView(b core.Budget) budgetView {
	return budgetView{ID: b.ID, Category: b.Category, Amount: money(b.Amount), Month: b.Month}
}

type goalView struct {
	ID           string `json:"id"`
	GoalName     string `json:"goalName"`
	TargetAmount string `json:"targetAmount"`
	TargetDate   string `json:"targetDate"`
}

func newGoalView(g core.Goal, loc *time.Location) goalView {
	return goalView{ID: g.ID, GoalName: g.GoalName, TargetAmount: money(g.TargetAmount), TargetDate: day(g.TargetDate, loc)}
}

type eventView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	EstimatedCost string `json:"estimatedCost"`
	EventDate     string `json:"eventDate"`
}

func newEventView(e core.Event, loc *time.Location) eventView {
	return eventView{ID: e.ID, Name: e.Name, EstimatedCost: money(e.EstimatedCost), EventDate: day(e.EventDate, loc)}
}

type eventCategoryView struct {
	ID              string `json:"id"`
	EventID         string `json:"eventId"`
	Name            string `json:"name"`
	EstimatedBudget string `json:"estimatedBudget"`
}

func newEventCategoryView(c core.EventCategory) eventCategoryView {
	return eventCategoryView{ID: c.ID, EventID: c.EventID, Name: c.Name, EstimatedBudget: money(c.EstimatedBudget)}
}

type summaryView struct {
	TotalIncome   string `json:"totalIncome"`
	TotalExpenses string `json:"totalExpenses"`
	NetBalance    string `json:"netBalance"`
}

type budgetStatusView struct {
	Budget      budgetView `json:"budget"`
	Spent       string     `json:"spent"`
	Remaining   string     `json:"remaining"`
	ProgressPct string     `json:"progressPct"`
}

type goalStatusView struct {
	Goal          goalView `json:"goal"`
	CurrentAmount string   `json:"currentAmount"`
	ProgressPct   string   `json:"progressPct"`
}

type eventStatusView struct {
	Event       eventView `json:"event"`
	CurrentCost string    `json:"currentCost"`
	ProgressPct string    `json:"progressPct"`
}

type eventCategoryStatusView struct {
	Category    eventCategoryView `json:"category"`
	Spent       string            `json:"spent"`
	ProgressPct string            `json:"progressPct"`
}

type categoryTotalView struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

type trendPointView struct {
	Label    string `json:"label"`
	Income   string `json:"income"`
	Expenses string `json:"expenses"`
}

type dashboardView struct {
	Year        int                 `json:"year"`
	Month       int                 `json:"month"`
	Label       string              `json:"label"`
	Summary     summaryView         `json:"summary"`
	Accounts    []accountView       `json:"accounts"`
	Budgets     []budgetStatusView  `json:"budgets"`
	Goals       []goalStatusView    `json:"goals"`
	Events      []eventStatusView   `json:"events"`
	Breakdown   []categoryTotalView `json:"breakdown"`
	Trend       []trendPointView    `json:"trend"`
	NeedsReview int                 `json:"needsReview"`
}

func newEventStatusView(s aggregate.EventStatus, loc *time.Location) eventStatusView {
	return eventStatusView{Event: newEventView(s.Event, loc), CurrentCost: money(s.CurrentCost), ProgressPct: money(s.ProgressPct)}
}

func newDashboardView(d services.Dashboard, loc *time.Location) dashboardView {
	v := dashboardView{
		Year:  d.Year,
		Month: int(d.Month),
		Label: d.Label,
		Summary: summaryView{
			TotalIncome:   money(d.Summary.TotalIncome),
			TotalExpenses: money(d.Summary.TotalExpenses),
			NetBalance:    money(d.Summary.NetBalance),
		},
		Accounts:    accountViews(d.Accounts),
		Budgets:     make([]budgetStatusView, 0, len(d.Budgets)),
		Goals:       make([]goalStatusView, 0, len(d.Goals)),
		Events:      make([]eventStatusView, 0, len(d.Events)),
		Breakdown:   make([]categoryTotalView, 0, len(d.Breakdown)),
		Trend:       make([]trendPointView, 0, len(d.Trend)),
		NeedsReview: d.NeedsReview,
	}
	for _, b := range d.Budgets {
		v.Budgets = append(v.Budgets, budgetStatusView{
			Budget:      newBudgetView(b.Budget),
			Spent:       money(b.Spent),
			Remaining:   money(b.Remaining),
			ProgressPct: money(b.ProgressPct),
		})
	}
	for _, g := range d.Goals {
		v.Goals = append(v.Goals, goalStatusView{
			Goal:          newGoalView(g.Goal, loc),
			CurrentAmount: money(g.CurrentAmount),
			ProgressPct:   money(g.ProgressPct),
		})
	}
	for _, e := range d.Events {
		v.Events = append(v.Events, newEventStatusView(e, loc))
	}
	for _, c := range d.Breakdown {
		v.Breakdown = append(v.Breakdown, categoryTotalView{Category: c.Category, Amount: money(c.Amount)})
	}
	for _, p := range d.Trend {
		v.Trend = append(v.Trend, trendPointView{Label: p.Label, Income: money(p.Income), Expenses: money(p.Expenses)})
	}
	return v
}

type eventPlanView struct {
	Event      eventStatusView           `json:"event"`
	Categories []eventCategoryStatusView `json:"categories"`
}

func newEventPlanView(p services.EventPlan, loc *time.Location) eventPlanView {
	v := eventPlanView{
		Event:      newEventStatusView(p.Event, loc),
		Categories: make([]eventCategoryStatusView, 0, len(p.Categories)),
	}
	for _, c := range p.Categories {
		v.Categories = append(v.Categories, eventCategoryStatusView{
			Category:    newEventCategoryView(c.Category),
			Spent:       money(c.Spent),
			ProgressPct: money(c.ProgressPct),
		})
	}
	return v
}

type discrepancyView struct {
	AccountID string `json:"accountId"`
	Stored    string `json:"stored"`
	Computed  string `json:"computed"`
}

type reconcileView struct {
	Consistent     bool              `json:"consistent"`
	Accounts       int               `json:"accounts"`
	Transactions   int               `json:"transactions"`
	Discrepancies  []discrepancyView `json:"discrepancies"`
	SignViolations []string          `json:"signViolations"`
	Orphans        []string          `json:"orphans"`
}

func newReconcileView(rep ledger.Report) reconcileView {
	v := reconcileView{
		Consistent:     rep.Consistent(),
		Accounts:       rep.Accounts,
		Transactions:   rep.Transactions,
		Discrepancies:  make([]discrepancyView, 0, len(rep.Discrepancies)),
		SignViolations: make([]string, 0, len(rep.SignViolations)),
		Orphans:        rep.Orphans,
	}
	if v.Orphans == nil {
		v.Orphans = []string{}
	}
	for _, d := range rep.Discrepancies {
		v.Discrepancies = append(v.Discrepancies, discrepancyView{AccountID: d.AccountID, Stored: money(d.Stored), Computed: money(d.Computed)})
	}
	for _, sv := range rep.SignViolations {
		v.SignViolations = append(v.SignViolations, sv.TransactionID)
	}
	return v
}
