package web

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"vinyl_scanner/internal/session"
	"vinyl_scanner/internal/sheets"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Scopes requested at sign in. drive.file and spreadsheets let the app
// write to a sheet the user names.
var Scopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/drive.file",
	"https://www.googleapis.com/auth/spreadsheets",
}

// errTokenExpired marks a user token that could not be refreshed.
var errTokenExpired = errors.New("google token expired")

func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}

type UserInfo struct {
	Name      string
	GivenName string
	Email     string
}

// FirstName is the first word of the display name.
func (u *UserInfo) FirstName() string {
	if u == nil {
		return ""
	}
	if fields := strings.Fields(u.Name); len(fields) > 0 {
		return fields[0]
	}
	return u.GivenName
}

// SheetService is what the pages and the scanner need from a user's sheet.
type SheetService interface {
	EnsureHeaderRow(ctx context.Context, spreadsheetID string, headers []string) error
	AppendRow(ctx context.Context, spreadsheetID string, row []interface{}) error
	ReadAllRows(ctx context.Context, spreadsheetID string) ([][]interface{}, error)
}

// UserServices builds Google API clients acting as the signed-in user.
type UserServices interface {
	Sheets(ctx context.Context, ts oauth2.TokenSource) (SheetService, error)
	UserInfo(ctx context.Context, ts oauth2.TokenSource) (*UserInfo, error)
}

type GoogleServices struct {
	opts []option.ClientOption
}

// NewGoogleServices returns the production UserServices. Extra options are
// appended after the token source, which tests use to point at fakes.
func NewGoogleServices(opts ...option.ClientOption) *GoogleServices {
	return &GoogleServices{opts: opts}
}

func (g *GoogleServices) Sheets(ctx context.Context, ts oauth2.TokenSource) (SheetService, error) {
	client, err := sheets.NewClient(ctx, g.options(ts)...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (g *GoogleServices) UserInfo(ctx context.Context, ts oauth2.TokenSource) (*UserInfo, error) {
	service, err := googleoauth.NewService(ctx, g.options(ts)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo service: %w", err)
	}
	info, err := service.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	return &UserInfo{Name: info.Name, GivenName: info.GivenName, Email: info.Email}, nil
}

func (g *GoogleServices) options(ts oauth2.TokenSource) []option.ClientOption {
	return append([]option.ClientOption{option.WithTokenSource(ts)}, g.opts...)
}

// savingTokenSource refreshes through the OAuth config and writes any new
// token back to the session store.
type savingTokenSource struct {
	base  oauth2.TokenSource
	store session.Store
	sess  *session.Data

	mu sync.Mutex
}

func (s *Server) tokenSource(ctx context.Context, sess *session.Data) oauth2.TokenSource {
	return &savingTokenSource{
		base:  s.oauth.TokenSource(context.WithoutCancel(ctx), sess.Token),
		store: s.store,
		sess:  sess,
	}
}

func (t *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := t.base.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errTokenExpired, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess.Token == nil || token.AccessToken != t.sess.Token.AccessToken {
		t.sess.Token = token
		if err := t.store.Save(context.Background(), t.sess); err != nil {
			log.Warn().Err(err).Msg("Failed to persist refreshed token")
		} else {
			log.Debug().Msg("Persisted refreshed Google token")
		}
	}
	return token, nil
}
