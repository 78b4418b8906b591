package processor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientCreateTransfer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/transfers", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "payout-7-abc", r.Header.Get("Idempotency-Key"))

		var req TransferRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(5850), req.Amount)
		assert.Equal(t, "acct_1", req.Destination)
		assert.Equal(t, "payment_7", req.CorrelationTag)

		_ = json.NewEncoder(w).Encode(Transfer{ID: "tr_123", Amount: req.Amount, Currency: req.Currency})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "sk_test", 0)
	tr, err := c.CreateTransfer(context.Background(), TransferRequest{
		Amount:         5850,
		Currency:       "usd",
		Destination:    "acct_1",
		CorrelationTag: "payment_7",
	}, "payout-7-abc")
	require.NoError(t, err)
	assert.Equal(t, "tr_123", tr.ID)
}

func TestHTTPClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"code":"insufficient_funds","message":"platform balance too low"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "sk_test", 0)
	_, err := c.CreateTransfer(context.Background(), TransferRequest{Amount: 1}, "")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusPaymentRequired, apiErr.Status)
	assert.Equal(t, "insufficient_funds", apiErr.Code)
}

func TestHTTPClientRetrieveAccountAndBalance(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/accounts/acct_9", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"acct_9","capabilities":{"transfers":"active"},"charges_enabled":true,"payouts_enabled":true,"details_submitted":true}`))
	})
	mux.HandleFunc("/v1/balance", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acct_9", r.Header.Get("On-Behalf-Of"))
		_, _ = w.Write([]byte(`{"available":[{"amount":300,"currency":"usd"},{"amount":200,"currency":"usd"},{"amount":9,"currency":"eur"}],"pending":[{"amount":50,"currency":"usd"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "sk_test", 0)

	acct, err := c.RetrieveAccount(context.Background(), "acct_9")
	require.NoError(t, err)
	assert.True(t, acct.TransfersActive())
	assert.True(t, acct.FullyEnabled())

	bal, err := c.RetrieveBalance(context.Background(), "acct_9")
	require.NoError(t, err)
	assert.Equal(t, int64(500), Sum(bal.Available, "usd"))
	assert.Equal(t, int64(50), Sum(bal.Pending, "usd"))
}
