package web

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"
	"golang.org/x/oauth2"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess.Authenticated() {
		http.Redirect(w, r, "/home", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/landing", http.StatusFound)
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "landing.html", pageData{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess.Authenticated() {
		http.Redirect(w, r, "/home", http.StatusFound)
		return
	}
	s.render(w, r, "login.html", pageData{})
}

// handleGoogleLogin starts the authorization code flow.
func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if !s.saveSession(r, sess) {
		http.Error(w, "failed to start login", http.StatusInternalServerError)
		return
	}

	state, err := signState(s.cfg.SecretKey, sess.ID, safeNext(r.URL.Query().Get("next")))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to sign oauth state")
		http.Error(w, "failed to start login", http.StatusInternalServerError)
		return
	}

	url := s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)
	sess := s.loadSession(w, r)

	query := r.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		logger.Warn().Str("error", errParam).Msg("Google sign in refused")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	next, err := verifyState(s.cfg.SecretKey, query.Get("state"), sess.ID)
	if err != nil {
		logger.Warn().Err(err).Msg("Rejected oauth callback")
		http.Error(w, "invalid login state", http.StatusBadRequest)
		return
	}

	token, err := s.oauth.Exchange(r.Context(), query.Get("code"))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to exchange authorization code")
		http.Error(w, "failed to complete login", http.StatusBadGateway)
		return
	}
	sess.Token = token

	if info, err := s.users.UserInfo(r.Context(), s.tokenSource(r.Context(), sess)); err != nil {
		logger.Warn().Err(err).Msg("Failed to load user info")
	} else {
		sess.FirstName = info.FirstName()
	}

	if !s.saveSession(r, sess) {
		http.Error(w, "failed to complete login", http.StatusInternalServerError)
		return
	}
	logger.Info().Msg("User signed in")

	if next == "" {
		next = "/home"
	}
	http.Redirect(w, r, next, http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if err := s.store.Delete(r.Context(), sess.ID); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Failed to delete session")
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	http.Redirect(w, r, "/landing", http.StatusFound)
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}
	return next
}
