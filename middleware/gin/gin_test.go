package gin

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gongin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/lemongate/pkg/billing"
	"github.com/mihaimyh/lemongate/pkg/billing/lemonsqueezy"
	"github.com/mihaimyh/lemongate/pkg/users"
	"github.com/mihaimyh/lemongate/storage/memory"
)

const testSecret = "whsec_gin"

func setupRouter(t *testing.T, maxBody int64) (*gongin.Engine, *memory.Storage) {
	t.Helper()
	gongin.SetMode(gongin.TestMode)

	store := memory.New()
	provider, err := lemonsqueezy.NewProvider(billing.Config{
		Store:         store,
		WebhookSecret: testSecret,
		MaxBodyBytes:  maxBody,
		RateLimit:     -1,
	})
	require.NoError(t, err)

	router := gongin.New()
	router.Any("/webhook", Handler(provider))
	return router, store
}

func signedRequest(method string, body []byte) *http.Request {
	req := httptest.NewRequest(method, "/webhook", bytes.NewReader(body))
	req.Header.Set(lemonsqueezy.SignatureHeader, lemonsqueezy.Sign([]byte(testSecret), body))
	return req
}

var orderBody = []byte(`{"meta":{"event_name":"order_created"},"data":{"id":"7","attributes":{"user_email":"gin@example.com","status":"paid","first_order_item":{"product_name":"Pro Yearly Plan"}}}}`)

func TestHandler_AcceptsSignedDelivery(t *testing.T) {
	router, store := setupRouter(t, 0)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(http.MethodPost, orderBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	rec, err := store.GetUser(context.Background(), "gin@example.com")
	require.NoError(t, err)
	assert.Equal(t, users.TermYearly, rec.SubscriptionType)
}

func TestHandler_Rejections(t *testing.T) {
	t.Run("GET", func(t *testing.T) {
		router, store := setupRouter(t, 0)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.JSONEq(t, `{"error":"Method not allowed"}`, w.Body.String())
		assert.Equal(t, 0, store.Writes())
	})

	t.Run("bad signature", func(t *testing.T) {
		router, store := setupRouter(t, 0)
		req := signedRequest(http.MethodPost, orderBody)
		req.Header.Set(lemonsqueezy.SignatureHeader, strings.Repeat("0", 64))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, 0, store.Writes())
	})

	t.Run("too large", func(t *testing.T) {
		router, store := setupRouter(t, 32)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, signedRequest(http.MethodPost, orderBody))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.JSONEq(t, `{"error":"Payload too large"}`, w.Body.String())
		assert.Equal(t, 0, store.Writes())
	})
}
