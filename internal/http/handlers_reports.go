package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kanakku/internal/core"
	"kanakku/internal/log"
)

// handleDashboard serves the monthly overview for ?year=&month=, defaulting
// to the current month.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	year, month, err := parseYearMonth(r.URL.Query(), s.deps.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.deps.Reports.Dashboard(r.Context(), actor, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDashboardView(d, s.deps.Location))
}

func (s *Server) handleEventPlan(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	plan, err := s.deps.Reports.EventPlan(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventPlanView(plan, s.deps.Location))
}

// sseWriter frames server-sent events on a flushable response.
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// startSSE commits the event-stream headers. It fails when the response
// cannot be flushed.
func startSSE(w http.ResponseWriter) (*sseWriter, error) {
	rc := http.NewResponseController(w)
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, err
	}
	return &sseWriter{w: w, rc: rc}, nil
}

func (s *sseWriter) event(name string, id uint64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if id > 0 {
		if _, err := fmt.Fprintf(s.w, "id: %d\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *sseWriter) keepalive() error {
	if _, err := fmt.Fprint(s.w, ": keepalive\n\n"); err != nil {
		return err
	}
	return s.rc.Flush()
}

// handleDashboardStream pushes a "dashboard" event with the recomputed
// overview after every change in the family, until the client goes away or
// the server shuts down.
func (s *Server) handleDashboardStream(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	year, month, err := parseYearMonth(r.URL.Query(), s.deps.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stream, err := s.deps.Reports.WatchDashboard(r.Context(), s.streams, actor, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer stream.Close()

	sse, err := startSSE(w)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Streaming unsupported", log.FieldError, err)
		return
	}
	logger := log.FromContext(r.Context())
	logger.DebugContext(r.Context(), "Dashboard stream opened",
		log.FieldFamilyID, actor.FamilyID, log.FieldYear, year, log.FieldMonth, int(month))

	ticker := time.NewTicker(s.deps.Heartbeat)
	defer ticker.Stop()

	for {
		var werr error
		select {
		case <-r.Context().Done():
			return
		case <-stream.Done():
			return
		case res, ok := <-stream.C():
			if !ok {
				return
			}
			if res.Err != nil {
				logger.WarnContext(r.Context(), "Dashboard recompute failed", log.FieldError, res.Err)
				werr = sse.event("error", res.Seq, errorDetailFor(res.Err))
			} else {
				werr = sse.event("dashboard", res.Seq, newDashboardView(res.Value, s.deps.Location))
			}
		case <-ticker.C:
			werr = sse.keepalive()
		}
		if werr != nil {
			logger.DebugContext(r.Context(), "Dashboard stream closed by client", log.FieldError, werr)
			return
		}
	}
}

type planEvent struct {
	EventID string         `json:"eventId"`
	Plan    *eventPlanView `json:"plan,omitempty"`
	Error   *errorDetail   `json:"error,omitempty"`
}

// handleEventPlanStream pushes a "plan" event for every event of the family
// whenever its spending changes. Events added or removed rebuild the feed.
func (s *Server) handleEventPlanStream(w http.ResponseWriter, r *http.Request, actor core.Actor) {
	feed, err := s.deps.Reports.WatchEventPlans(r.Context(), s.streams, actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer feed.Close()

	sse, err := startSSE(w)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Streaming unsupported", log.FieldError, err)
		return
	}
	logger := log.FromContext(r.Context())

	ticker := time.NewTicker(s.deps.Heartbeat)
	defer ticker.Stop()

	for {
		var werr error
		select {
		case <-r.Context().Done():
			return
		case <-feed.Done():
			return
		case u := <-feed.C():
			ev := planEvent{EventID: u.EventID}
			if u.Err != nil {
				detail := errorDetailFor(u.Err)
				ev.Error = &detail
			} else {
				view := newEventPlanView(u.Plan, s.deps.Location)
				ev.Plan = &view
			}
			werr = sse.event("plan", 0, ev)
		case <-ticker.C:
			werr = sse.keepalive()
		}
		if werr != nil {
			logger.DebugContext(r.Context(), "Event plan stream closed by client", log.FieldError, werr)
			return
		}
	}
}
