package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
)

// ErrCursorInvalid is returned when the provider rejects a stored sync token.
// The reconciler responds with a full resync from an empty cursor.
var ErrCursorInvalid = errors.New("sync cursor invalid")

// ChangeSet is one page of a provider's incremental change feed.
type ChangeSet struct {
	Events     []domain.ExternalEvent
	NextCursor string
}

// Provider pulls external calendar changes for a connected account.
type Provider interface {
	Changes(ctx context.Context, account domain.CalendarAccount, cursor string, pageSize int) (ChangeSet, error)
}

// Credentials are the OAuth client credentials for one provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Client talks to the Google and Microsoft change feeds over HTTP with a
// bounded timeout per call.
type Client struct {
	google      Credentials
	microsoft   Credentials
	redirectURL string
	http        *http.Client

	googleBaseURL    string
	microsoftBaseURL string
}

func NewClient(google, microsoft Credentials, redirectURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		google:      google,
		microsoft:   microsoft,
		redirectURL: redirectURL,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		googleBaseURL:    "https://www.googleapis.com/calendar/v3",
		microsoftBaseURL: "https://graph.microsoft.com/v1.0",
	}
}

// AuthorizeURL builds the provider consent URL for connecting a staff
// member's calendar. Fails when client credentials are absent.
func (c *Client) AuthorizeURL(provider domain.CalendarProvider, staffID string) (string, error) {
	switch provider {
	case domain.ProviderGoogle:
		if !c.google.Configured() {
			return "", domain.ErrIntegrationNotConfigured
		}
		q := url.Values{}
		q.Set("client_id", c.google.ClientID)
		q.Set("redirect_uri", c.redirectURL)
		q.Set("response_type", "code")
		q.Set("scope", "https://www.googleapis.com/auth/calendar.events.readonly")
		q.Set("access_type", "offline")
		q.Set("state", staffID)
		return "https://accounts.google.com/o/oauth2/v2/auth?" + q.Encode(), nil
	case domain.ProviderMicrosoft:
		if !c.microsoft.Configured() {
			return "", domain.ErrIntegrationNotConfigured
		}
		q := url.Values{}
		q.Set("client_id", c.microsoft.ClientID)
		q.Set("redirect_uri", c.redirectURL)
		q.Set("response_type", "code")
		q.Set("scope", "Calendars.Read offline_access")
		q.Set("state", staffID)
		return "https://login.microsoftonline.com/common/oauth2/v2.0/authorize?" + q.Encode(), nil
	default:
		return "", domain.ErrIntegrationNotConfigured
	}
}

type feedResponse struct {
	Events []struct {
		ID      string `json:"id"`
		Start   string `json:"start"`
		End     string `json:"end"`
		Status  string `json:"status"`
		Updated string `json:"updated"`
	} `json:"events"`
	NextSyncToken string `json:"nextSyncToken"`
}

// Changes fetches one page of changed events since cursor. An empty cursor
// requests the full feed.
func (c *Client) Changes(ctx context.Context, account domain.CalendarAccount, cursor string, pageSize int) (ChangeSet, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	endpoint, err := c.feedURL(account, cursor, pageSize)
	if err != nil {
		return ChangeSet{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ChangeSet{}, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ChangeSet{}, fmt.Errorf("fetch changes: %w", err)
	}
	defer resp.Body.Close()

	// Providers signal an expired/invalid sync token with 410.
	if resp.StatusCode == http.StatusGone {
		return ChangeSet{}, ErrCursorInvalid
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return ChangeSet{}, fmt.Errorf("feed returned %d: %s", resp.StatusCode, string(body))
	}

	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return ChangeSet{}, fmt.Errorf("decode feed: %w", err)
	}

	set := ChangeSet{NextCursor: feed.NextSyncToken}
	for _, raw := range feed.Events {
		ev := domain.ExternalEvent{
			Ref:     raw.ID,
			Deleted: raw.Status == "cancelled",
		}
		if ev.Start, err = parseEventTime(raw.Start); err != nil && !ev.Deleted {
			continue
		}
		if ev.End, err = parseEventTime(raw.End); err != nil && !ev.Deleted {
			continue
		}
		if t, err := parseEventTime(raw.Updated); err == nil {
			ev.UpdatedAt = t
		}
		set.Events = append(set.Events, ev)
	}
	return set, nil
}

func (c *Client) feedURL(account domain.CalendarAccount, cursor string, pageSize int) (string, error) {
	var base string
	switch account.Provider {
	case domain.ProviderGoogle:
		if !c.google.Configured() {
			return "", domain.ErrIntegrationNotConfigured
		}
		base = fmt.Sprintf("%s/calendars/%s/events", c.googleBaseURL, url.PathEscape(account.ID))
	case domain.ProviderMicrosoft:
		if !c.microsoft.Configured() {
			return "", domain.ErrIntegrationNotConfigured
		}
		base = fmt.Sprintf("%s/me/calendarView/delta", c.microsoftBaseURL)
	default:
		return "", domain.ErrIntegrationNotConfigured
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	q.Set("maxResults", fmt.Sprintf("%d", pageSize))
	if cursor != "" {
		q.Set("syncToken", cursor)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func parseEventTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
