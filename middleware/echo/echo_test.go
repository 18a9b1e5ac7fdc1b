package echo

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/lemongate/pkg/billing"
	"github.com/mihaimyh/lemongate/pkg/billing/lemonsqueezy"
	"github.com/mihaimyh/lemongate/pkg/users"
	"github.com/mihaimyh/lemongate/storage/memory"
)

const testSecret = "whsec_echo"

func setupEcho(t *testing.T, maxBody int64) (*echo.Echo, *memory.Storage) {
	t.Helper()

	store := memory.New()
	provider, err := lemonsqueezy.NewProvider(billing.Config{
		Store:         store,
		WebhookSecret: testSecret,
		MaxBodyBytes:  maxBody,
		RateLimit:     -1,
	})
	require.NoError(t, err)

	e := echo.New()
	e.Any("/webhook", Handler(provider))
	return e, store
}

func signedRequest(method string, body []byte) *http.Request {
	req := httptest.NewRequest(method, "/webhook", bytes.NewReader(body))
	req.Header.Set(lemonsqueezy.SignatureHeader, lemonsqueezy.Sign([]byte(testSecret), body))
	return req
}

var subscriptionBody = []byte(`{"meta":{"event_name":"subscription_updated"},"data":{"id":"sub_3","attributes":{"user_email":"echo@example.com","status":"cancelled"}}}`)

func TestHandler_AcceptsSignedDelivery(t *testing.T) {
	e, store := setupEcho(t, 0)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, signedRequest(http.MethodPost, subscriptionBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	user, err := store.GetUser(context.Background(), "echo@example.com")
	require.NoError(t, err)
	assert.Equal(t, users.PlanFree, user.Subscription)
	assert.Equal(t, "cancelled", user.SubscriptionStatus)
}

func TestHandler_Rejections(t *testing.T) {
	t.Run("GET", func(t *testing.T) {
		e, store := setupEcho(t, 0)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, 0, store.Writes())
	})

	t.Run("missing signature", func(t *testing.T) {
		e, store := setupEcho(t, 0)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(subscriptionBody)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid signature"}`, rec.Body.String())
		assert.Equal(t, 0, store.Writes())
	})

	t.Run("too large", func(t *testing.T) {
		e, store := setupEcho(t, 32)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, signedRequest(http.MethodPost, subscriptionBody))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, 0, store.Writes())
	})
}
