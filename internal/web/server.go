// Package web is the browser-facing side of the scanner: Google sign in,
// sheet binding, the scan endpoint and the pages that read the sheet back.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"vinyl_scanner/internal/notifications"
	"vinyl_scanner/internal/retry"
	"vinyl_scanner/internal/scan"
	"vinyl_scanner/internal/session"

	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const sessionCookie = "vinyl_session"

type Config struct {
	SecretKey      string
	CORSOrigins    []string
	MaxUploadBytes int64
	// ScanRatePerMinute and ScanBurst bound POST /scan per client address.
	ScanRatePerMinute float64
	ScanBurst         int
	ScanTimeout       time.Duration
	SheetRead         retry.Config
	SecureCookies     bool
}

type Scanner interface {
	Scan(ctx context.Context, sess scan.Session, upload *scan.Upload) scan.Response
}

type Notifier interface {
	NotifyScanLogged(ctx context.Context, info notifications.ScanInfo)
}

type Server struct {
	cfg      Config
	oauth    *oauth2.Config
	store    session.Store
	users    UserServices
	scanner  Scanner
	notifier Notifier
	pages    map[string]*template.Template
	limiter  *rateLimiter
}

func NewServer(cfg Config, oauth *oauth2.Config, store session.Store, users UserServices, scanner Scanner, notifier Notifier) (*Server, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		oauth:    oauth,
		store:    store,
		users:    users,
		scanner:  scanner,
		notifier: notifier,
		pages:    pages,
		limiter:  newRateLimiter(cfg.ScanRatePerMinute, cfg.ScanBurst),
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	static, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /landing", s.handleLanding)
	mux.HandleFunc("GET /login", s.handleLogin)
	mux.HandleFunc("GET /login/google", s.handleGoogleLogin)
	mux.HandleFunc("GET /login/google/authorized", s.handleGoogleCallback)
	mux.HandleFunc("GET /connect_sheet", s.handleConnectSheetForm)
	mux.HandleFunc("POST /connect_sheet", s.handleConnectSheet)
	mux.HandleFunc("GET /home", s.handleHome)
	mux.HandleFunc("GET /scanner", s.handleScanner)
	mux.HandleFunc("GET /collection", s.handleCollection)
	mux.HandleFunc("GET /logout", s.handleLogout)

	scanHandler := chain(http.HandlerFunc(s.handleScan),
		s.scanGate,
		s.limiter.middleware,
		limitBody(s.cfg.MaxUploadBytes),
	)
	mux.Handle("POST /scan", scanHandler)

	return chain(mux,
		hlog.NewHandler(log.Logger),
		requestID,
		accessLog(),
		recovery,
		cors(s.cfg.CORSOrigins),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loadSession returns the caller's session, starting a new one (and setting
// its cookie) when there is none. New sessions are not stored until saved.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) *session.Data {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		sess, err := s.store.Get(r.Context(), cookie.Value)
		if err == nil {
			return sess
		}
		if !errors.Is(err, session.ErrNotFound) {
			hlog.FromRequest(r).Warn().Err(err).Msg("Failed to load session")
		}
	}

	sess := session.New()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(session.DefaultTTL.Seconds()),
	})
	return sess
}

func (s *Server) saveSession(r *http.Request, sess *session.Data) bool {
	if err := s.store.Save(r.Context(), sess); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to save session")
		return false
	}
	return true
}

// expire signs the user out after Google refused to refresh their token.
func (s *Server) expire(w http.ResponseWriter, r *http.Request, sess *session.Data) {
	hlog.FromRequest(r).Warn().Msg("Token expired, logging out user")
	if err := s.store.Delete(r.Context(), sess.ID); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Failed to delete session")
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("Failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func isXHR(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}
