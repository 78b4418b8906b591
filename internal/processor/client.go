package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient talks JSON to the payment processor API.
type HTTPClient struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL, secretKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) RetrieveAccount(ctx context.Context, accountID string) (*Account, error) {
	var out Account
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(accountID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateAccount(ctx context.Context, profile AccountProfile) (*Account, error) {
	var out Account
	if err := c.do(ctx, http.MethodPost, "/v1/accounts", profile, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateTransfer(ctx context.Context, req TransferRequest, idempotencyKey string) (*Transfer, error) {
	hdr := http.Header{}
	if idempotencyKey != "" {
		hdr.Set("Idempotency-Key", idempotencyKey)
	}
	var out Transfer
	if err := c.do(ctx, http.MethodPost, "/v1/transfers", req, hdr, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("processor: transfer response missing id")
	}
	return &out, nil
}

func (c *HTTPClient) RetrieveBalance(ctx context.Context, onBehalfOf string) (*Balance, error) {
	hdr := http.Header{}
	hdr.Set("On-Behalf-Of", onBehalfOf)
	var out Balance
	if err := c.do(ctx, http.MethodGet, "/v1/balance", nil, hdr, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateOnboardingLink(ctx context.Context, req OnboardingLinkRequest) (*OnboardingLink, error) {
	if req.Type == "" {
		req.Type = "account_onboarding"
	}
	var out OnboardingLink
	if err := c.do(ctx, http.MethodPost, "/v1/account_links", req, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, hdr http.Header, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("processor: marshal %s: %w", path, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		apiErr := &APIError{Status: res.StatusCode}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("processor: decode %s: %w", path, err)
	}
	return nil
}
