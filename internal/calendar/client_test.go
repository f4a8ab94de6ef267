package calendar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
)

func newTestClient(feedURL string) *Client {
	c := NewClient(
		Credentials{ClientID: "id", ClientSecret: "secret"},
		Credentials{},
		"https://app.example/oauth/callback",
		5*time.Second,
	)
	c.googleBaseURL = feedURL
	return c
}

func googleAccount() domain.CalendarAccount {
	return domain.CalendarAccount{
		ID:       "7b0d8cf0-6f2e-4c43-9a52-1f6a9a1f0c01",
		Provider: domain.ProviderGoogle,
	}
}

func TestClientChanges(t *testing.T) {
	t.Run("decodes events and the next sync token", func(t *testing.T) {
		var gotCursor string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotCursor = r.URL.Query().Get("syncToken")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"events": [
					{"id": "evt-1", "start": "2025-03-10T10:00:00Z", "end": "2025-03-10T11:00:00Z", "status": "confirmed", "updated": "2025-03-09T08:00:00Z"},
					{"id": "evt-2", "status": "cancelled"}
				],
				"nextSyncToken": "tok-2"
			}`))
		}))
		defer srv.Close()

		set, err := newTestClient(srv.URL).Changes(context.Background(), googleAccount(), "tok-1", 50)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if gotCursor != "tok-1" {
			t.Fatalf("expected cursor tok-1 sent, got %q", gotCursor)
		}
		if set.NextCursor != "tok-2" {
			t.Fatalf("expected next cursor tok-2, got %q", set.NextCursor)
		}
		if len(set.Events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(set.Events))
		}
		if set.Events[0].Ref != "evt-1" || set.Events[0].Deleted {
			t.Fatalf("expected live evt-1, got %+v", set.Events[0])
		}
		want := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
		if !set.Events[0].Start.Equal(want) {
			t.Fatalf("expected start %v, got %v", want, set.Events[0].Start)
		}
		if !set.Events[1].Deleted {
			t.Fatalf("expected cancelled event marked deleted")
		}
	})

	t.Run("gone cursor maps to ErrCursorInvalid", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusGone)
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).Changes(context.Background(), googleAccount(), "stale", 50)
		if err != ErrCursorInvalid {
			t.Fatalf("expected ErrCursorInvalid, got %v", err)
		}
	})

	t.Run("server errors surface with status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "backend down", http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).Changes(context.Background(), googleAccount(), "", 50)
		if err == nil || !strings.Contains(err.Error(), "502") {
			t.Fatalf("expected 502 error, got %v", err)
		}
	})

	t.Run("unconfigured provider is rejected before any request", func(t *testing.T) {
		_, err := newTestClient("http://unused").Changes(context.Background(), domain.CalendarAccount{
			ID:       "7b0d8cf0-6f2e-4c43-9a52-1f6a9a1f0c01",
			Provider: domain.ProviderMicrosoft,
		}, "", 50)
		if err != domain.ErrIntegrationNotConfigured {
			t.Fatalf("expected ErrIntegrationNotConfigured, got %v", err)
		}
	})
}

func TestClientAuthorizeURL(t *testing.T) {
	c := newTestClient("http://unused")

	u, err := c.AuthorizeURL(domain.ProviderGoogle, "staff-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.HasPrefix(u, "https://accounts.google.com/o/oauth2/v2/auth?") {
		t.Fatalf("unexpected authorize url %q", u)
	}
	if !strings.Contains(u, "state=staff-1") {
		t.Fatalf("expected staff id in state, got %q", u)
	}

	if _, err := c.AuthorizeURL(domain.ProviderMicrosoft, "staff-1"); err != domain.ErrIntegrationNotConfigured {
		t.Fatalf("expected ErrIntegrationNotConfigured, got %v", err)
	}
}
