package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/unclebandit/koya-caller/internal/model"
)

const DefaultGoogleBaseURL = "https://www.googleapis.com/calendar/v3"

// Event is the slice of an external calendar event reconciliation needs.
type Event struct {
	ID     string
	Status string
	Start  time.Time
	End    time.Time
	AllDay bool
}

func (e *Event) Cancelled() bool { return e.Status == "cancelled" }

// Client reads single events. GetEvent returns nil, nil when the event no
// longer exists.
type Client interface {
	GetEvent(ctx context.Context, calendarID, eventID string) (*Event, error)
}

// Provider builds a Client for one tenant connection.
type Provider interface {
	ClientFor(ctx context.Context, conn *model.CalendarConnection) (Client, error)
}

// TokenSaver persists refreshed OAuth tokens.
type TokenSaver func(ctx context.Context, tenantID string, tok *oauth2.Token) error

type GoogleProvider struct {
	OAuth     *oauth2.Config
	BaseURL   string
	SaveToken TokenSaver
	Log       *zap.Logger
}

func NewGoogleProvider(clientID, clientSecret string, save TokenSaver, log *zap.Logger) *GoogleProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &GoogleProvider{
		OAuth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"https://www.googleapis.com/auth/calendar.readonly"},
		},
		BaseURL:   DefaultGoogleBaseURL,
		SaveToken: save,
		Log:       log,
	}
}

func (p *GoogleProvider) ClientFor(ctx context.Context, conn *model.CalendarConnection) (Client, error) {
	if conn.Provider != "google" {
		return nil, fmt.Errorf("unsupported calendar provider %q", conn.Provider)
	}
	if conn.AccessToken == "" && conn.RefreshToken == "" {
		return nil, errors.New("calendar connection has no credentials")
	}

	tok := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		TokenType:    "Bearer",
	}
	if conn.TokenExpiry != nil {
		tok.Expiry = *conn.TokenExpiry
	}

	ts := &savingTokenSource{
		base:     oauth2.ReuseTokenSource(tok, p.OAuth.TokenSource(ctx, tok)),
		last:     tok.AccessToken,
		tenantID: conn.TenantID,
		save:     p.SaveToken,
		log:      p.Log,
	}
	baseURL := p.BaseURL
	if baseURL == "" {
		baseURL = DefaultGoogleBaseURL
	}
	return &googleClient{
		http:    oauth2.NewClient(ctx, ts),
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// savingTokenSource hands refreshed tokens to SaveToken once per refresh.
type savingTokenSource struct {
	base     oauth2.TokenSource
	tenantID string
	save     TokenSaver
	log      *zap.Logger

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, errors.Wrap(err, "calendar token")
	}
	s.mu.Lock()
	refreshed := tok.AccessToken != s.last
	s.last = tok.AccessToken
	s.mu.Unlock()

	if refreshed && s.save != nil {
		if err := s.save(context.Background(), s.tenantID, tok); err != nil {
			s.log.Warn("persist refreshed calendar token", zap.String("tenant_id", s.tenantID), zap.Error(err))
		}
	}
	return tok, nil
}

type googleClient struct {
	http    *http.Client
	baseURL string
}

type googleEvent struct {
	ID     string     `json:"id"`
	Status string     `json:"status"`
	Start  googleTime `json:"start"`
	End    googleTime `json:"end"`
}

type googleTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
	TimeZone string `json:"timeZone"`
}

func (c *googleClient) GetEvent(ctx context.Context, calendarID, eventID string) (*Event, error) {
	u := fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, url.PathEscape(calendarID), url.PathEscape(eventID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build calendar request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "get calendar event")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil, nil
	case resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("calendar api %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var ge googleEvent
	if err := json.NewDecoder(resp.Body).Decode(&ge); err != nil {
		return nil, errors.Wrap(err, "decode calendar event")
	}
	return ge.toEvent()
}

func (ge googleEvent) toEvent() (*Event, error) {
	ev := &Event{ID: ge.ID, Status: ge.Status}
	if ge.Start.DateTime == "" && ge.Start.Date != "" {
		ev.AllDay = true
		start, err := time.Parse("2006-01-02", ge.Start.Date)
		if err != nil {
			return nil, errors.Wrap(err, "parse all-day start")
		}
		ev.Start = start
		ev.End = start.Add(24 * time.Hour)
		if end, err := time.Parse("2006-01-02", ge.End.Date); err == nil {
			ev.End = end
		}
		return ev, nil
	}
	if ge.Start.DateTime == "" {
		// cancelled instances can come back without times
		return ev, nil
	}

	start, err := time.Parse(time.RFC3339, ge.Start.DateTime)
	if err != nil {
		return nil, errors.Wrap(err, "parse event start")
	}
	ev.Start = start
	ev.End = start
	if ge.End.DateTime != "" {
		end, err := time.Parse(time.RFC3339, ge.End.DateTime)
		if err != nil {
			return nil, errors.Wrap(err, "parse event end")
		}
		ev.End = end
	}
	return ev, nil
}
