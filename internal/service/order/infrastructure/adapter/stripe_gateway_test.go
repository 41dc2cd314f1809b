package adapter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/pkg/apperr"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

const testWebhookSecret = "whsec_test"

func sign(payload []byte, secret string, ts time.Time) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(t + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", t, hex.EncodeToString(mac.Sum(nil)))
}

func newTestGateway(backendURL string) *StripeGateway {
	return NewStripeGateway(StripeConfig{
		SecretKey:        "sk_test_123",
		WebhookSecret:    testWebhookSecret,
		Currency:         "cad",
		AllowedCountries: []string{"US", "CA", "ES", "MX"},
		SuccessURL:       "http://shop.test/success",
		CancelURL:        "http://shop.test/checkout",
		Timeout:          2 * time.Second,
		BackendURL:       backendURL,
	}, http.DefaultClient)
}

func TestStripeGateway_ParseEvent(t *testing.T) {
	g := newTestGateway("")
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","object":"checkout.session"}}}`)

	t.Run("valid signature", func(t *testing.T) {
		event, err := g.ParseEvent(payload, sign(payload, testWebhookSecret, time.Now()))
		require.NoError(t, err)
		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, port.EventCheckoutSessionCompleted, event.Type)
		assert.Equal(t, "cs_test_1", event.SessionID)
	})

	t.Run("missing signature", func(t *testing.T) {
		_, err := g.ParseEvent(payload, "")
		assert.ErrorIs(t, err, apperr.ErrAuthentication)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := g.ParseEvent(payload, sign(payload, "whsec_other", time.Now()))
		assert.ErrorIs(t, err, apperr.ErrAuthentication)
	})

	t.Run("tampered payload", func(t *testing.T) {
		header := sign(payload, testWebhookSecret, time.Now())
		tampered := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_evil","object":"checkout.session"}}}`)
		_, err := g.ParseEvent(tampered, header)
		assert.ErrorIs(t, err, apperr.ErrAuthentication)
	})

	t.Run("other event type", func(t *testing.T) {
		other := []byte(`{"id":"evt_2","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1","object":"charge"}}}`)
		event, err := g.ParseEvent(other, sign(other, testWebhookSecret, time.Now()))
		require.NoError(t, err)
		assert.Equal(t, "charge.refunded", event.Type)
		assert.Empty(t, event.SessionID)
	})

	t.Run("signed but undecodable body", func(t *testing.T) {
		broken := []byte(`{"id":"evt_3","object":"event","type":`)
		_, err := g.ParseEvent(broken, sign(broken, testWebhookSecret, time.Now()))
		assert.ErrorIs(t, err, apperr.ErrValidation)
		assert.NotErrorIs(t, err, apperr.ErrAuthentication)
	})

	t.Run("signed but session is not an object", func(t *testing.T) {
		odd := []byte(`{"id":"evt_4","object":"event","type":"checkout.session.completed","data":{"object":{"id":123,"object":"checkout.session"}}}`)
		_, err := g.ParseEvent(odd, sign(odd, testWebhookSecret, time.Now()))
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestStripeGateway_CreateCheckoutSession(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_9","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_9"}`))
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL)
	sess, err := g.CreateCheckoutSession(context.Background(), []domain.LineItem{
		{ProductID: "P1", Name: "Tee", Price: 2500, Quantity: 2, Size: "M", Color: "black"},
		{ProductID: "GC", Name: "Gift card", Price: 1000, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_9", sess.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_9", sess.URL)

	get := func(key string) string {
		if v := form[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	assert.Equal(t, "payment", get("mode"))
	assert.Equal(t, "required", get("billing_address_collection"))
	assert.Equal(t, "card", get("payment_method_types[0]"))
	assert.Equal(t, "Tee - Talla: M - Color: black", get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "2500", get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "cad", get("line_items[0][price_data][currency]"))
	assert.Equal(t, "2", get("line_items[0][quantity]"))
	assert.Equal(t, "Gift card", get("line_items[1][price_data][product_data][name]"))
	assert.Equal(t, "MX", get("shipping_address_collection[allowed_countries][3]"))
	assert.Equal(t, "http://shop.test/success", get("success_url"))
}

func TestStripeGateway_RetrieveSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_test_9", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"cs_test_9","object":"checkout.session",
			"customer_details":{"email":"ana@example.com"},
			"shipping_details":{"name":"Ana","address":{"line1":"1 Main St","city":"Toronto","state":"ON","postal_code":"M5V","country":"CA"}}
		}`))
	}))
	defer srv.Close()

	details, err := newTestGateway(srv.URL).RetrieveSession(context.Background(), "cs_test_9")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", details.CustomerEmail)
	require.NotNil(t, details.ShippingAddress)
	assert.Equal(t, domain.ShippingAddress{Name: "Ana", Line1: "1 Main St", City: "Toronto", State: "ON", PostalCode: "M5V", Country: "CA"}, *details.ShippingAddress)
}

func TestProductLabel(t *testing.T) {
	assert.Equal(t, "Tee - Talla: M - Color: black", ProductLabel(domain.LineItem{Name: "Tee", Size: "M", Color: "black"}))
	assert.Equal(t, "Gift card", ProductLabel(domain.LineItem{Name: "Gift card"}))
}
