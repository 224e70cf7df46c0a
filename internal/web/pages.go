package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"plancal/internal/calendar"
	appLog "plancal/internal/log"
	"plancal/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// pages holds one template set per page, each sharing the layout.
var pages = map[string]*template.Template{
	"home":   parsePage("home.html"),
	"events": parsePage("events.html"),
	"detail": parsePage("detail.html"),
}

func parsePage(name string) *template.Template {
	return template.Must(template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name))
}

// page is the data shared by every layout render.
type page struct {
	Title  string
	Active string
	Print  bool
}

type homePage struct {
	page
	Today       string
	TodayEvents []model.Event
	Grid        calendar.Grid
}

type eventsPage struct {
	page
	Events []model.Event
	Draft  model.Draft
	Added  bool
	Error  string
}

type detailPage struct {
	page
	Event model.Event
	Zone  string
}

// render executes into a buffer first so a template error never leaves
// a half-written page behind.
func render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		appLog.Error("template render failed", err, "page", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// handleHome renders today's events and the month grid for ?month=YYYY-MM.
// ?print=1 drops navigation for snapshot capture.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.svc.Now()
	month := calendar.ParseMonth(q.Get("month"), now)

	grid, err := s.svc.Month(month)
	if err != nil {
		appLog.Error("month grid build failed", err, "month", month.Format(model.MonthLayout))
		http.Error(w, "failed to build calendar", http.StatusInternalServerError)
		return
	}

	render(w, http.StatusOK, "home", homePage{
		page:        page{Title: "Home", Active: "home", Print: q.Get("print") == "1"},
		Today:       now.Format("Monday, January 2, 2006"),
		TodayEvents: s.svc.Today(),
		Grid:        grid,
	})
}

func (s *Server) eventsPage(d model.Draft) eventsPage {
	return eventsPage{
		page:   page{Title: "Events", Active: "events"},
		Events: s.svc.List(),
		Draft:  d,
	}
}

func (s *Server) handleEventsPage(w http.ResponseWriter, r *http.Request) {
	data := s.eventsPage(model.NewDraft(s.svc.Now()))
	data.Added = r.URL.Query().Get("added") == "1"
	render(w, http.StatusOK, "events", data)
}

// handleEventsSubmit is the add-event form. Success redirects so a reload
// does not resubmit; failures re-render the form with what was typed.
func (s *Server) handleEventsSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	d := model.Draft{
		Title: r.PostFormValue("title"),
		Date:  r.PostFormValue("date"),
		Start: r.PostFormValue("start_time"),
		End:   r.PostFormValue("end_time"),
	}

	if _, err := s.svc.Add(r.Context(), d); err != nil {
		status, msg := errorStatus(err)
		if status == http.StatusInternalServerError {
			appLog.Error("add event failed", err)
		}
		data := s.eventsPage(d)
		data.Error = msg
		render(w, status, "events", data)
		return
	}
	http.Redirect(w, r, "/events?added=1", http.StatusSeeOther)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	ev, err := s.svc.Get(r.PathValue("id"))
	if err != nil {
		status, msg := errorStatus(err)
		http.Error(w, msg, status)
		return
	}
	render(w, http.StatusOK, "detail", detailPage{
		page:  page{Title: ev.Title, Active: "events"},
		Event: ev,
		Zone:  zoneLabel(s.svc.Now()),
	})
}

// zoneLabel formats t's zone as "GMT+5:30 Kolkata".
func zoneLabel(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign, offset = "-", -offset
	}
	city := t.Location().String()
	if i := strings.LastIndexByte(city, '/'); i >= 0 {
		city = city[i+1:]
	}
	city = strings.ReplaceAll(city, "_", " ")
	return fmt.Sprintf("GMT%s%d:%02d %s", sign, offset/3600, offset%3600/60, city)
}

func (s *Server) handleStatusSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status := model.Status(parseIntDefault(r.PostFormValue("status"), -1))
	if _, err := s.svc.SetStatus(r.Context(), id, status); err != nil {
		code, msg := errorStatus(err)
		http.Error(w, msg, code)
		return
	}
	http.Redirect(w, r, "/events/"+id, http.StatusSeeOther)
}

func (s *Server) handleDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		code, msg := errorStatus(err)
		http.Error(w, msg, code)
		return
	}
	http.Redirect(w, r, "/events", http.StatusSeeOther)
}
