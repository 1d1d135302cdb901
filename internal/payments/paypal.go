package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// PayPalClient speaks the PayPal Orders v2 REST API. Access tokens are
// cached until shortly before expiry.
type PayPalClient struct {
	baseURL  string
	clientID string
	secret   string
	client   *http.Client
	logger   *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewPayPalClient builds the client against the given API base URL
// (sandbox or live).
func NewPayPalClient(log *slog.Logger, baseURL, clientID, secret string) *PayPalClient {
	if log == nil {
		log = slog.Default()
	}
	return &PayPalClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		secret:   secret,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   log.With(slog.String("service", "paypal")),
	}
}

// Order is the subset of the PayPal order resource the bot needs.
type Order struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ApproveURL string `json:"-"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

// CreateOrder opens a CAPTURE-intent order for one purchase unit and
// returns the order with its buyer approval link.
func (c *PayPalClient) CreateOrder(ctx context.Context, referenceID, customID, description, amount, returnURL, cancelURL string) (Order, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": referenceID,
			"custom_id":    customID,
			"description":  description,
			"amount": map[string]string{
				"currency_code": "USD",
				"value":         amount,
			},
		}},
		"application_context": map[string]string{
			"return_url":  returnURL,
			"cancel_url":  cancelURL,
			"user_action": "PAY_NOW",
		},
	}

	var resp orderResponse
	if err := c.call(ctx, http.MethodPost, "/v2/checkout/orders", payload, &resp); err != nil {
		return Order{}, err
	}

	order := Order{ID: resp.ID, Status: resp.Status}
	for _, link := range resp.Links {
		if link.Rel == "approve" {
			order.ApproveURL = link.Href
			break
		}
	}
	if order.ApproveURL == "" {
		return Order{}, fmt.Errorf("paypal order %s has no approval link", order.ID)
	}
	return order, nil
}

// CaptureOrder captures an approved order. Status COMPLETED means the
// money moved.
func (c *PayPalClient) CaptureOrder(ctx context.Context, orderID string) (Order, error) {
	var resp orderResponse
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	if err := c.call(ctx, http.MethodPost, path, struct{}{}, &resp); err != nil {
		return Order{}, err
	}
	return Order{ID: resp.ID, Status: resp.Status}, nil
}

// GetOrder fetches the current state of an order.
func (c *PayPalClient) GetOrder(ctx context.Context, orderID string) (Order, error) {
	var resp orderResponse
	path := "/v2/checkout/orders/" + url.PathEscape(orderID)
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return Order{}, err
	}
	return Order{ID: resp.ID, Status: resp.Status}, nil
}

// call performs one authenticated JSON request. A nil payload sends no
// body.
func (c *PayPalClient) call(ctx context.Context, method, path string, payload, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader = http.NoBody
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode paypal request: %w", err)
		}
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build paypal request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("paypal request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read paypal response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("paypal %s %s answered %d: %s", method, path, resp.StatusCode, truncate(raw, 256))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode paypal response: %w", err)
		}
	}
	return nil
}

// accessToken returns the cached client-credentials token, refreshing
// it when missing or near expiry.
func (c *PayPalClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", form)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return "", fmt.Errorf("paypal token endpoint answered %d: %s", resp.StatusCode, truncate(raw, 256))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("paypal token response is empty")
	}

	c.token = tokenResp.AccessToken
	// Refresh a minute early so in-flight calls never carry a token
	// that expires mid-request.
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

func truncate(raw []byte, limit int) string {
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}
