package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"datematch-backend/internal/config"
	"datematch-backend/internal/services"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

const (
	tokenCacheKey    = "access_token"
	initiateAttempts = 3
)

// Client talks to an M-Pesa style STK-push gateway. It owns authentication,
// request shaping and retry; the payment core only sees InitiatePayment and
// the normalized PaymentResult.
type Client struct {
	httpClient *http.Client
	baseURL    string
	consumer   string
	secret     string
	shortCode  string
	passkey    string
	callback   string
	tokens     *gocache.Cache
}

// NewClient creates a new gateway client
func NewClient(cfg config.PaymentConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		consumer:   cfg.ConsumerKey,
		secret:     cfg.ConsumerSecret,
		shortCode:  cfg.ShortCode,
		passkey:    cfg.Passkey,
		callback:   cfg.CallbackURL,
		tokens:     gocache.New(50*time.Minute, 10*time.Minute),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// accessToken returns a cached OAuth token, fetching a fresh one when the
// cached entry has expired.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if tok, ok := c.tokens.Get(tokenCacheKey); ok {
		return tok.(string), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.consumer, c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.tokens.Set(tokenCacheKey, tr.AccessToken, gocache.DefaultExpiration)
	return tr.AccessToken, nil
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
}

// InitiatePayment fires an STK push at the subscriber's phone and returns
// the gateway's CheckoutRequestID as the external reference. Transport
// errors are retried with backoff; a request the gateway accepted is never
// re-sent, so a subscriber cannot be charged twice for one initiation.
func (c *Client) InitiatePayment(ctx context.Context, phoneNumber string, amount int64) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	ts := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.shortCode + c.passkey + ts))
	phone := strings.TrimPrefix(phoneNumber, "+")

	body, err := json.Marshal(stkPushRequest{
		BusinessShortCode: c.shortCode,
		Password:          password,
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.shortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.callback,
		AccountReference:  "subscription",
		TransactionDesc:   "Subscription payment",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal stk push request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= initiateAttempts; attempt++ {
		ref, err := c.sendPush(ctx, token, body)
		if err == nil {
			return ref, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("STK push attempt failed")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return "", lastErr
}

func (c *Client) sendPush(ctx context.Context, token string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build stk push request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stk push request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read stk push response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stk push returned status %d: %s", resp.StatusCode, raw)
	}

	var pr stkPushResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return "", fmt.Errorf("failed to decode stk push response: %w", err)
	}
	if pr.ResponseCode != "0" {
		return "", fmt.Errorf("gateway rejected stk push: %s", pr.ResponseDescription)
	}
	if pr.CheckoutRequestID == "" {
		return "", fmt.Errorf("gateway returned no checkout request id")
	}
	return pr.CheckoutRequestID, nil
}

// callbackEnvelope is the raw shape the gateway POSTs back.
type callbackEnvelope struct {
	Body struct {
		StkCallback struct {
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string          `json:"Name"`
					Value json.RawMessage `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback normalizes a raw gateway callback into a PaymentResult.
// Malformed payloads are rejected here so the reconciler only ever sees
// well-formed results.
func ParseCallback(raw []byte) (*services.PaymentResult, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to parse callback payload: %w", err)
	}

	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("callback has no checkout request id")
	}

	result := &services.PaymentResult{
		ExternalRef: cb.CheckoutRequestID,
		Reason:      cb.ResultDesc,
	}
	if cb.ResultCode == 0 {
		result.Status = services.ResultSuccess
	} else {
		result.Status = services.ResultFailure
	}

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			var amount float64
			if err := json.Unmarshal(item.Value, &amount); err == nil {
				result.Amount = int64(amount)
			}
		case "MpesaReceiptNumber":
			var receipt string
			if err := json.Unmarshal(item.Value, &receipt); err == nil {
				result.ReceiptCode = receipt
			}
		case "PhoneNumber":
			var phone json.Number
			if err := json.Unmarshal(item.Value, &phone); err == nil {
				result.PayerPhone = phone.String()
			}
		}
	}

	if result.Status == services.ResultSuccess && result.Amount == 0 {
		return nil, fmt.Errorf("success callback missing amount")
	}
	return result, nil
}
