package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"datematch-backend/internal/config"
	"datematch-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.PaymentConfig {
	return config.PaymentConfig{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/payments/callback",
		TimeoutSeconds: 5,
	}
}

// gatewayStub stands in for the remote payment API.
type gatewayStub struct {
	tokenCalls int32
	pushCalls  int32
	pushStatus int
	pushBody   string
}

func (g *gatewayStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&g.tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123", "expires_in": "3599"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&g.pushCalls, 1)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		var req stkPushRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "174379", req.BusinessShortCode)
		assert.Equal(t, "254700000001", req.PhoneNumber, "leading plus must be stripped")
		assert.Equal(t, int64(500), req.Amount)
		assert.NotEmpty(t, req.Password)

		if g.pushStatus != 0 {
			w.WriteHeader(g.pushStatus)
		}
		w.Write([]byte(g.pushBody))
	})
	return mux
}

func TestInitiatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("successful push returns the checkout reference", func(t *testing.T) {
		stub := &gatewayStub{pushBody: `{"CheckoutRequestID":"ws_CO_1","ResponseCode":"0","ResponseDescription":"Accepted"}`}
		srv := httptest.NewServer(stub.handler(t))
		defer srv.Close()

		client := NewClient(testConfig(srv.URL))
		ref, err := client.InitiatePayment(ctx, "+254700000001", 500)
		require.NoError(t, err)
		assert.Equal(t, "ws_CO_1", ref)
	})

	t.Run("access token is cached across pushes", func(t *testing.T) {
		stub := &gatewayStub{pushBody: `{"CheckoutRequestID":"ws_CO_1","ResponseCode":"0"}`}
		srv := httptest.NewServer(stub.handler(t))
		defer srv.Close()

		client := NewClient(testConfig(srv.URL))
		for i := 0; i < 3; i++ {
			_, err := client.InitiatePayment(ctx, "+254700000001", 500)
			require.NoError(t, err)
		}
		assert.Equal(t, int32(1), atomic.LoadInt32(&stub.tokenCalls))
		assert.Equal(t, int32(3), atomic.LoadInt32(&stub.pushCalls))
	})

	t.Run("server errors are retried a bounded number of times", func(t *testing.T) {
		stub := &gatewayStub{pushStatus: http.StatusInternalServerError, pushBody: `oops`}
		srv := httptest.NewServer(stub.handler(t))
		defer srv.Close()

		client := NewClient(testConfig(srv.URL))
		_, err := client.InitiatePayment(ctx, "+254700000001", 500)
		require.Error(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&stub.pushCalls))
	})

	t.Run("gateway rejection is surfaced", func(t *testing.T) {
		stub := &gatewayStub{pushBody: `{"ResponseCode":"1","ResponseDescription":"Invalid shortcode"}`}
		srv := httptest.NewServer(stub.handler(t))
		defer srv.Close()

		client := NewClient(testConfig(srv.URL))
		_, err := client.InitiatePayment(ctx, "+254700000001", 500)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid shortcode")
	})
}

func TestParseCallback(t *testing.T) {
	t.Run("successful payment", func(t *testing.T) {
		raw := []byte(`{
			"Body": {
				"stkCallback": {
					"MerchantRequestID": "29115-34620561-1",
					"CheckoutRequestID": "ws_CO_1",
					"ResultCode": 0,
					"ResultDesc": "The service request is processed successfully.",
					"CallbackMetadata": {
						"Item": [
							{"Name": "Amount", "Value": 500.00},
							{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
							{"Name": "TransactionDate", "Value": 20260301121530},
							{"Name": "PhoneNumber", "Value": 254700000001}
						]
					}
				}
			}
		}`)

		result, err := ParseCallback(raw)
		require.NoError(t, err)
		assert.Equal(t, &services.PaymentResult{
			ExternalRef: "ws_CO_1",
			Amount:      500,
			Status:      services.ResultSuccess,
			Reason:      "The service request is processed successfully.",
			PayerPhone:  "254700000001",
			ReceiptCode: "NLJ7RT61SV",
		}, result)
	})

	t.Run("cancelled by subscriber", func(t *testing.T) {
		raw := []byte(`{
			"Body": {
				"stkCallback": {
					"CheckoutRequestID": "ws_CO_2",
					"ResultCode": 1032,
					"ResultDesc": "Request cancelled by user"
				}
			}
		}`)

		result, err := ParseCallback(raw)
		require.NoError(t, err)
		assert.Equal(t, services.ResultFailure, result.Status)
		assert.Equal(t, "ws_CO_2", result.ExternalRef)
		assert.Equal(t, "Request cancelled by user", result.Reason)
	})

	t.Run("malformed payloads are rejected", func(t *testing.T) {
		tests := []struct {
			name string
			raw  string
		}{
			{"not json", `<?xml version="1.0"?>`},
			{"missing checkout id", `{"Body":{"stkCallback":{"ResultCode":0}}}`},
			{"success without amount", `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_3","ResultCode":0}}}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ParseCallback([]byte(tt.raw))
				assert.Error(t, err)
			})
		}
	})
}
