package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Token: "tok", Timeout: time.Second})
}

func TestClient_CheckRelationSendsTokenAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/bookmarks/evt-1" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer token; got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]bool{"exists": true})
	})

	ok, err := c.CheckRelation(context.Background(), "bookmarks", "evt-1")
	if err != nil {
		t.Fatalf("CheckRelation error: %v", err)
	}
	if !ok {
		t.Fatalf("expected exists=true")
	}
}

func TestClient_ConflictCarriesPortalMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "event_full", "message": "This event is full"})
	})

	_, err := c.Register(context.Background(), "evt-1")
	var re *Error
	if !errors.As(err, &re) {
		t.Fatalf("expected *Error; got %T %v", err, err)
	}
	if re.Kind != KindConflict || re.Status != http.StatusConflict || re.Message != "This event is full" {
		t.Fatalf("unexpected error: %+v", re)
	}
}

func TestClient_StatusClassification(t *testing.T) {
	cases := map[int]Kind{
		http.StatusBadRequest:          KindValidation,
		http.StatusUnprocessableEntity: KindValidation,
		http.StatusServiceUnavailable:  KindNetwork,
		http.StatusGatewayTimeout:      KindNetwork,
		http.StatusInternalServerError: KindUnknown,
		http.StatusForbidden:           KindUnknown,
	}
	for status, want := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		err := c.AddRelation(context.Background(), "bookmarks", "evt-1")
		if got := KindOf(err); got != want {
			t.Fatalf("status %d: expected %s; got %s (%v)", status, want, got, err)
		}
		if re := AsError(err); re.Message != http.StatusText(status) {
			t.Fatalf("status %d: expected status text message; got %q", status, re.Message)
		}
	}
}

func TestClient_TimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	err := c.RemoveRelation(context.Background(), "bookmarks", "evt-1")
	if got := KindOf(err); got != KindNetwork {
		t.Fatalf("expected network error; got %s (%v)", got, err)
	}
}

func TestClient_UnreachableIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url, Timeout: time.Second})
	if _, err := c.ListEvents(context.Background()); KindOf(err) != KindNetwork {
		t.Fatalf("expected network error; got %v", err)
	}
}

func TestClient_FindRegistration(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("event_id") != "evt-1" {
			t.Errorf("expected event_id query; got %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode([]Registration{{ID: "reg-9", EventID: "evt-1"}})
	})

	reg, err := c.FindRegistration(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("FindRegistration error: %v", err)
	}
	if reg == nil || reg.ID != "reg-9" {
		t.Fatalf("expected reg-9; got %+v", reg)
	}
}

func TestClient_FindRegistrationIgnoresOtherEvents(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// A portal that ignores the event_id filter.
		json.NewEncoder(w).Encode([]Registration{
			{ID: "reg-1"},
			{ID: "reg-2", EventID: "evt-2"},
		})
	})

	reg, err := c.FindRegistration(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("FindRegistration error: %v", err)
	}
	if reg != nil {
		t.Fatalf("expected no registration for evt-1; got %+v", reg)
	}
}

func TestClient_FindRegistrationTrustsSoleUnlabelledResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Registration{{ID: "reg-1"}})
	})

	reg, err := c.FindRegistration(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("FindRegistration error: %v", err)
	}
	if reg == nil || reg.ID != "reg-1" {
		t.Fatalf("expected reg-1; got %+v", reg)
	}
}

func TestAsError(t *testing.T) {
	if AsError(nil) != nil {
		t.Fatalf("expected nil for nil")
	}
	if got := KindOf(context.DeadlineExceeded); got != KindNetwork {
		t.Fatalf("expected deadline to be network; got %s", got)
	}
	if got := KindOf(errors.New("boom")); got != KindUnknown {
		t.Fatalf("expected unknown; got %s", got)
	}
}
