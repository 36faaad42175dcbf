package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"vinyl_scanner/internal/retry"
	"vinyl_scanner/internal/session"
	"vinyl_scanner/internal/sheets"

	"github.com/rs/zerolog/hlog"
	"golang.org/x/oauth2"
)

const recentScans = 5

var pageNames = []string{
	"landing.html",
	"login.html",
	"connect_sheet.html",
	"home.html",
	"scanner.html",
	"collection.html",
}

type pageData struct {
	FirstName  string
	Recent     []sheets.ScanRecord
	Records    []sheets.ScanRecord
	TotalValue string
	Error      string
}

var templateFuncs = template.FuncMap{
	"pounds": func(v string) string {
		if v == "" {
			return "-"
		}
		return "£" + v
	},
}

func parsePages() (map[string]*template.Template, error) {
	layout, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.Must(layout.Clone()).ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	s.renderStatus(w, r, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	t, ok := s.pages[name]
	if !ok {
		hlog.FromRequest(r).Error().Str("page", name).Msg("Unknown page")
		http.Error(w, "page not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "layout.html", data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("page", name).Msg("Failed to render page")
	}
}

// requireSheet gates the signed-in pages: no Google session goes to the
// Google login, no bound sheet goes to /connect_sheet. It also refreshes the
// user's first name.
func (s *Server) requireSheet(w http.ResponseWriter, r *http.Request) (*session.Data, oauth2.TokenSource, bool) {
	sess := s.loadSession(w, r)
	if !sess.Authenticated() {
		http.Redirect(w, r, "/login/google", http.StatusFound)
		return nil, nil, false
	}
	if sess.SheetID == "" {
		http.Redirect(w, r, "/connect_sheet", http.StatusFound)
		return nil, nil, false
	}

	ts := s.tokenSource(r.Context(), sess)
	info, err := s.users.UserInfo(r.Context(), ts)
	switch {
	case errors.Is(err, errTokenExpired):
		s.expire(w, r, sess)
		return nil, nil, false
	case err != nil:
		hlog.FromRequest(r).Warn().Err(err).Msg("Failed to load user info")
	case info.FirstName() != sess.FirstName:
		sess.FirstName = info.FirstName()
		s.saveSession(r, sess)
	}
	return sess, ts, true
}

// readRecords loads the sheet in row order, retrying transient API errors.
func (s *Server) readRecords(ctx context.Context, sess *session.Data, ts oauth2.TokenSource) ([]sheets.ScanRecord, error) {
	client, err := s.users.Sheets(ctx, ts)
	if err != nil {
		return nil, err
	}
	if err := client.EnsureHeaderRow(ctx, sess.SheetID, sheets.Headers); err != nil {
		return nil, err
	}
	rows, err := retry.WithRetry(ctx, s.cfg.SheetRead, func(ctx context.Context) ([][]interface{}, error) {
		return client.ReadAllRows(ctx, sess.SheetID)
	})
	if err != nil {
		return nil, err
	}
	return sheets.ParseRecords(rows), nil
}

func (s *Server) handleConnectSheetForm(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if !sess.Authenticated() {
		http.Redirect(w, r, "/login/google", http.StatusFound)
		return
	}
	s.render(w, r, "connect_sheet.html", pageData{FirstName: sess.FirstName})
}

func (s *Server) handleConnectSheet(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if !sess.Authenticated() {
		http.Redirect(w, r, "/login/google", http.StatusFound)
		return
	}

	sheetID := sheets.ParseSheetID(r.FormValue("sheet_url"))
	if sheetID == "" {
		s.renderStatus(w, r, http.StatusBadRequest, "connect_sheet.html", pageData{
			FirstName: sess.FirstName,
			Error:     "Paste the link to your Google Sheet.",
		})
		return
	}

	sess.SheetID = sheetID
	if !s.saveSession(r, sess) {
		http.Error(w, "failed to save sheet", http.StatusInternalServerError)
		return
	}
	hlog.FromRequest(r).Info().Str("sheet_id", sheetID).Msg("Sheet connected")
	http.Redirect(w, r, "/home", http.StatusFound)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	sess, ts, ok := s.requireSheet(w, r)
	if !ok {
		return
	}

	records, err := s.readRecords(r.Context(), sess, ts)
	if err != nil {
		s.sheetError(w, r, sess, err)
		return
	}

	s.render(w, r, "home.html", pageData{
		FirstName:  sess.FirstName,
		Recent:     sheets.Recent(records, recentScans),
		TotalValue: sheets.FormatPounds(sheets.TotalValue(records)),
	})
}

func (s *Server) handleScanner(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.requireSheet(w, r)
	if !ok {
		return
	}
	s.render(w, r, "scanner.html", pageData{FirstName: sess.FirstName})
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	sess, ts, ok := s.requireSheet(w, r)
	if !ok {
		return
	}

	records, err := s.readRecords(r.Context(), sess, ts)
	if err != nil {
		s.sheetError(w, r, sess, err)
		return
	}

	s.render(w, r, "collection.html", pageData{
		FirstName: sess.FirstName,
		Records:   sheets.NewestFirst(records),
	})
}

func (s *Server) sheetError(w http.ResponseWriter, r *http.Request, sess *session.Data, err error) {
	if errors.Is(err, errTokenExpired) {
		s.expire(w, r, sess)
		return
	}
	hlog.FromRequest(r).Error().Err(err).Str("sheet_id", sess.SheetID).Msg("Failed to read sheet")
	s.renderStatus(w, r, http.StatusBadGateway, "connect_sheet.html", pageData{
		FirstName: sess.FirstName,
		Error:     "Could not read your sheet: " + strings.TrimSpace(err.Error()),
	})
}
