package http

import (
	"net/http"

	"kanakku/internal/core"
)

type addCategoryRequest struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Subcategories []string `json:"subcategories"`
}

type addBudgetRequest struct {
	Category string      `json:"category"`
	Amount   amountField `json:"amount"`
	Month    string      `json:"month"`
}

type addGoalRequest struct {
	GoalName     string      `json:"goalName"`
	TargetAmount amountField `json:"targetAmount"`
	TargetDate   string      `json:"targetDate"`
}

type addEventRequest struct {
	Name          string      `json:"name"`
	EstimatedCost amountField `json:"estimatedCost"`
	EventDate     string      `json:"eventDate"`
}

type addEventCategoryRequest struct {
	Name            string      `json:"name"`
	EstimatedBudget amountField `json:"estimatedBudget"`
}

// handleListCategories lists every category, or one type with ?type=.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	var typ core.TransactionType
	if v := sanitizeInput(r.URL.Query().Get("type")); v != "" {
		t, err := core.ParseTransactionType(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		typ = t
	}
	cats, err := s.deps.Planning.Categories(r.Context(), actor, typ)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, newCategoryView(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	var req addCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	typ, err := core.ParseTransactionType(req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}
	subs := make([]string, 0, len(req.Subcategories))
	for _, sub := range req.Subcategories {
		subs = append(subs, sanitizeInput(sub))
	}
	c, err := s.deps.Planning.AddCategory(r.Context(), actor, core.Category{
		Name:          sanitizeInput(req.Name),
		Type:          typ,
		Subcategories: subs,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCategoryView(c))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	if err := s.deps.Planning.DeleteCategory(r.Context(), actor, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	budgets, err := s.deps.Planning.Budgets(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]budgetView, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, newBudgetView(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddBudget(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	var req addBudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := req.Amount.parse()
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.deps.Planning.AddBudget(r.Context(), actor, core.Budget{
		Category: sanitizeInput(req.Category),
		Amount:   amount,
		Month:    sanitizeInput(req.Month),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBudgetView(b))
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	goals, err := s.deps.Planning.Goals(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]goalView, 0, len(goals))
	for _, g := range goals {
		out = append(out, newGoalView(g, s.deps.Location))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddGoal(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	var req addGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	target, err := req.TargetAmount.parse()
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDay(req.TargetDate, s.deps.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.deps.Planning.AddGoal(r.Context(), actor, core.Goal{
		GoalName:     sanitizeInput(req.GoalName),
		TargetAmount: target,
		TargetDate:   date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newGoalView(g, s.deps.Location))
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	events, err := s.deps.Planning.Events(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, newEventView(e, s.deps.Location))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	var req addEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cost, err := req.EstimatedCost.parse()
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDay(req.EventDate, s.deps.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.deps.Planning.AddEvent(r.Context(), actor, core.Event{
		Name:          sanitizeInput(req.Name),
		EstimatedCost: cost,
		EventDate:     date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEventView(e, s.deps.Location))
}

func (s *Server) handleListEventCategories(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	cats, err := s.deps.Planning.EventCategories(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]eventCategoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, newEventCategoryView(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddEventCategory(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	var req addEventCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	budget, err := req.EstimatedBudget.parse()
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.deps.Planning.AddEventCategory(r.Context(), actor, core.EventCategory{
		EventID:         r.PathValue("id"),
		Name:            sanitizeInput(req.Name),
		EstimatedBudget: budget,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEventCategoryView(c))
}
