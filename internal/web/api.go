package web

import (
	"encoding/json"
	"net/http"

	"plancal/internal/calendar"
	"plancal/internal/ics"
	appLog "plancal/internal/log"
	"plancal/internal/model"
)

// maxJSONBody bounds API request bodies.
const maxJSONBody = 64 << 10

// calendarResponse is the JSON shape for /api/calendar.
type calendarResponse struct {
	Month     string    `json:"month"`
	Title     string    `json:"title"`
	WeekStart string    `json:"week_start"`
	Headers   []string  `json:"headers"`
	Prev      string    `json:"prev"`
	Next      string    `json:"next"`
	Cells     []cellDTO `json:"cells"`
}

type cellDTO struct {
	Date    string        `json:"date"`
	InMonth bool          `json:"in_month"`
	IsToday bool          `json:"is_today"`
	Events  []model.Event `json:"events"`
}

// statusPatch is the PATCH /api/events/{id} body.
type statusPatch struct {
	CompletionStatus *model.Status `json:"completion_status"`
}

func (s *Server) handleAPIList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.List())
}

func (s *Server) handleAPICreate(w http.ResponseWriter, r *http.Request) {
	var d model.Draft
	if err := decodeJSON(w, r, &d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ev, err := s.svc.Add(r.Context(), d)
	if err != nil {
		s.writeDomainError(w, "api create event failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleAPIGet(w http.ResponseWriter, r *http.Request) {
	ev, err := s.svc.Get(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, "api get event failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleAPIPatch(w http.ResponseWriter, r *http.Request) {
	var p statusPatch
	if err := decodeJSON(w, r, &p); err != nil || p.CompletionStatus == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"completion_status\": 0|1}")
		return
	}
	ev, err := s.svc.SetStatus(r.Context(), r.PathValue("id"), *p.CompletionStatus)
	if err != nil {
		s.writeDomainError(w, "api patch event failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleAPIDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeDomainError(w, "api delete event failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAPICalendar returns the month grid for ?month=YYYY-MM.
func (s *Server) handleAPICalendar(w http.ResponseWriter, r *http.Request) {
	month := calendar.ParseMonth(r.URL.Query().Get("month"), s.svc.Now())
	grid, err := s.svc.Month(month)
	if err != nil {
		s.writeDomainError(w, "api calendar failed", err)
		return
	}

	resp := calendarResponse{
		Month:     grid.Param(),
		Title:     grid.Title(),
		WeekStart: grid.WeekStart.String(),
		Headers:   grid.Headers,
		Prev:      grid.Prev().Format(model.MonthLayout),
		Next:      grid.Next().Format(model.MonthLayout),
		Cells:     make([]cellDTO, 0, len(grid.Cells)),
	}
	for _, c := range grid.Cells {
		evs := c.Events
		if evs == nil {
			evs = []model.Event{}
		}
		resp.Cells = append(resp.Cells, cellDTO{
			Date:    c.Key,
			InMonth: c.InMonth,
			IsToday: c.IsToday,
			Events:  evs,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleICS exports every event as an iCalendar feed.
func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	body := ics.Export(s.svc.List(), s.svc.Location(), s.svc.Now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="plancal.ics"`)
	_, _ = w.Write([]byte(body))
}

func (s *Server) writeDomainError(w http.ResponseWriter, msg string, err error) {
	status, text := errorStatus(err)
	if status == http.StatusInternalServerError {
		appLog.Error(msg, err)
	}
	writeError(w, status, text)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
}
