package web

import (
	"context"
	"errors"
	"io"
	"net/http"

	"vinyl_scanner/internal/notifications"
	"vinyl_scanner/internal/scan"
	"vinyl_scanner/internal/session"

	"github.com/rs/zerolog/hlog"
)

const uploadField = "image"

type scanSuccess struct {
	Status string       `json:"status"`
	Data   *scan.Result `json:"data"`
}

type scanSessionKey struct{}

// scanGate answers requests without a signed-in, sheet-bound session before
// the rate limit and body limit see them, so auth errors win over upload
// errors.
func (s *Server) scanGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.loadSession(w, r)
		if !sess.Authenticated() {
			s.respondOutcome(w, r, scan.Response{Outcome: scan.OutcomeUnauthenticated})
			return
		}
		if sess.SheetID == "" {
			s.respondOutcome(w, r, scan.Response{Outcome: scan.OutcomeNoSheet})
			return
		}
		ctx := context.WithValue(r.Context(), scanSessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)
	sess, ok := r.Context().Value(scanSessionKey{}).(*session.Data)
	if !ok {
		sess = s.loadSession(w, r)
	}

	upload, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		logger.Warn().Err(err).Msg("Failed to read upload")
		writeError(w, http.StatusBadRequest, "Could not read upload")
		return
	}

	ctx := r.Context()
	if s.cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ScanTimeout)
		defer cancel()
	}

	scanSession := scan.Session{
		Authenticated: sess.Authenticated(),
		SheetID:       sess.SheetID,
	}
	if scanSession.Authenticated && scanSession.SheetID != "" {
		sheet, err := s.users.Sheets(ctx, s.tokenSource(ctx, sess))
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create sheets client")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		scanSession.Sheet = sheet
	}

	resp := s.scanner.Scan(ctx, scanSession, upload)
	if resp.Outcome == scan.OutcomeInternal && errors.Is(resp.Err, errTokenExpired) {
		if err := s.store.Delete(r.Context(), sess.ID); err != nil {
			logger.Warn().Err(err).Msg("Failed to delete session")
		}
	}
	s.respondOutcome(w, r, resp)
	if resp.Outcome == scan.OutcomeLogged && s.notifier != nil {
		s.notifier.NotifyScanLogged(ctx, notifications.ScanInfo{
			MatrixNumber: resp.Result.MatrixNumber,
			Title:        resp.Result.Title,
			Year:         resp.Result.Year,
			MedianPrice:  resp.Result.MedianPrice,
		})
	}
}

func (s *Server) respondOutcome(w http.ResponseWriter, r *http.Request, resp scan.Response) {
	switch resp.Outcome {
	case scan.OutcomeLogged:
		writeJSON(w, http.StatusOK, scanSuccess{Status: resp.Message(), Data: resp.Result})
	case scan.OutcomeUnauthenticated:
		if isXHR(r) {
			writeError(w, http.StatusUnauthorized, resp.Message())
			return
		}
		http.Redirect(w, r, "/login/google", http.StatusFound)
	case scan.OutcomeNoSheet:
		http.Redirect(w, r, "/connect_sheet", http.StatusFound)
	default:
		writeError(w, resp.Outcome.StatusCode(), resp.Message())
	}
}

// readUpload returns the uploaded image, or nil when the form carries none.
func readUpload(r *http.Request) (*scan.Upload, error) {
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &scan.Upload{Data: data, ContentType: header.Header.Get("Content-Type")}, nil
}
