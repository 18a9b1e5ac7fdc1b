package lemonsqueezy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mihaimyh/lemongate/pkg/billing"
	"github.com/mihaimyh/lemongate/pkg/users"
	"github.com/mihaimyh/lemongate/storage/memory"
)

const testAPIKey = "ls_test_key"

func newSyncProvider(t *testing.T, store users.Storage, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := newTestProvider(t, store, func(c *billing.Config) {
		c.APIKey = testAPIKey
		c.HTTPClient = server.Client()
	})
	p.apiBaseURL = server.URL
	return p
}

func TestSyncUser_LatestSubscriptionWins(t *testing.T) {
	store := memory.New()
	p := newSyncProvider(t, store, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subscriptions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("filter[user_email]"); got != "a@example.com" {
			t.Errorf("filter = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer "+testAPIKey {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.api+json" {
			t.Errorf("Accept = %q", got)
		}
		w.Header().Set("Content-Type", "application/vnd.api+json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":"1","attributes":{"user_email":"a@example.com","status":"expired","updated_at":"2024-01-01T00:00:00.000000Z"}},
			{"id":"2","attributes":{"user_email":"a@example.com","status":"on_trial","updated_at":"2025-01-01T00:00:00.000000Z"}}
		]}`))
	})

	plan, err := p.SyncUser(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}
	if plan != string(users.PlanPremium) {
		t.Errorf("plan = %q, want premium", plan)
	}

	rec, err := store.GetUser(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if rec.SubscriptionStatus != "on_trial" || !rec.LastUpdated.Equal(testNow) {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestSyncUser_NoSubscriptions(t *testing.T) {
	store := memory.New()
	p := newSyncProvider(t, store, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	_, err := p.SyncUser(context.Background(), "nobody@example.com")
	if !errors.Is(err, billing.ErrCustomerNotFound) {
		t.Fatalf("SyncUser() error = %v, want ErrCustomerNotFound", err)
	}
	if store.Writes() != 0 {
		t.Errorf("writes = %d, want 0", store.Writes())
	}
}

func TestSyncUser_LatestWithoutStatus(t *testing.T) {
	store := memory.New()
	p := newSyncProvider(t, store, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"id":"7","attributes":{"user_email":"a@example.com","updated_at":"2025-01-01T00:00:00.000000Z"}}
		]}`))
	})

	_, err := p.SyncUser(context.Background(), "a@example.com")
	if !errors.Is(err, billing.ErrMissingSubscriptionStatus) {
		t.Fatalf("SyncUser() error = %v, want ErrMissingSubscriptionStatus", err)
	}
	if !errors.Is(err, billing.ErrProviderAPIError) {
		t.Errorf("SyncUser() error = %v, want ErrProviderAPIError", err)
	}
	if store.Writes() != 0 {
		t.Errorf("writes = %d, want 0", store.Writes())
	}
}

func TestSyncUser_APIError(t *testing.T) {
	store := memory.New()
	p := newSyncProvider(t, store, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"detail":"Unauthenticated."}]}`))
	})

	_, err := p.SyncUser(context.Background(), "a@example.com")
	if !errors.Is(err, billing.ErrProviderAPIError) {
		t.Fatalf("SyncUser() error = %v, want ErrProviderAPIError", err)
	}
	if store.Writes() != 0 {
		t.Errorf("writes = %d, want 0", store.Writes())
	}
}

func TestSyncUser_NotConfigured(t *testing.T) {
	p := newTestProvider(t, memory.New(), nil)

	if _, err := p.SyncUser(context.Background(), "a@example.com"); !errors.Is(err, billing.ErrProviderNotConfigured) {
		t.Errorf("SyncUser() error = %v, want ErrProviderNotConfigured", err)
	}
	if _, err := p.SyncUser(context.Background(), " "); !errors.Is(err, users.ErrInvalidEmail) {
		t.Errorf("SyncUser() error = %v, want ErrInvalidEmail", err)
	}
}

func TestSyncUser_ConcurrentCallsShareRequest(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	p := newSyncProvider(t, memory.New(), func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"data":[{"id":"1","attributes":{"status":"active","updated_at":"2025-01-01T00:00:00Z"}}]}`))
	})

	const callers = 5
	var wg sync.WaitGroup
	plans := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			plans[i], errs[i] = p.SyncUser(context.Background(), "a@example.com")
		}(i)
	}

	// Let every caller reach the flight before the first response arrives.
	for calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range plans {
		if errs[i] != nil || plans[i] != string(users.PlanPremium) {
			t.Errorf("caller %d: plan=%q err=%v", i, plans[i], errs[i])
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("API called %d times, want 1", got)
	}
}
