package dispatch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/relaydock/docrelay/internal/testlib"
	"github.com/relaydock/docrelay/model"
	"github.com/stretchr/testify/require"
)

func testItem(url string) *model.DeliveryItem {
	secret := "supersecretvalue"
	return &model.DeliveryItem{
		URL:    url,
		Secret: &secret,
		Payload: &model.Payload{
			Event: "issue.created",
			Webhook: model.PayloadWebhook{ID: "sub1"},
		},
	}
}

func TestAttemptSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NotEmpty(t, r.Header.Get("X-Webhook-Signature"))
		body, _ := io.ReadAll(r.Body)
		require.True(t, VerifySignature(body, "supersecretvalue", r.Header.Get("X-Webhook-Signature")))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := New(DefaultConfig(), testlib.MakeLogger(t))
	result := d.Attempt(context.Background(), testItem(server.URL))

	require.True(t, result.Success)
	require.Equal(t, http.StatusOK, result.StatusCode)
}

func TestAttemptRetryableStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d := New(DefaultConfig(), testlib.MakeLogger(t))
	result := d.Attempt(context.Background(), testItem(server.URL))

	require.False(t, result.Success)
	require.True(t, result.Retryable)
	require.Equal(t, model.ErrorCategoryHTTPStatus, result.ErrorCategory)
}

func TestAttemptNonRetryableStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	d := New(DefaultConfig(), testlib.MakeLogger(t))
	result := d.Attempt(context.Background(), testItem(server.URL))

	require.False(t, result.Success)
	require.False(t, result.Retryable)
}

func TestAttemptInvalidURLScheme(t *testing.T) {
	d := New(DefaultConfig(), testlib.MakeLogger(t))
	result := d.Attempt(context.Background(), testItem("ftp://example.com/hook"))

	require.False(t, result.Success)
	require.Equal(t, model.ErrorCategoryInvalidURL, result.ErrorCategory)
}

func TestAttemptResponseTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.MaxPayloadSize = 1024
	d := New(cfg, testlib.MakeLogger(t))
	result := d.Attempt(context.Background(), testItem(server.URL))

	require.False(t, result.Success)
	require.Equal(t, model.ErrorCategoryResponseTooBig, result.ErrorCategory)
}

func TestAttemptDoesNotOverrideReservedHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "docrelay-webhook/1.0", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	item := testItem(server.URL)
	item.Headers = map[string]string{"User-Agent": "attacker-controlled"}

	d := New(DefaultConfig(), testlib.MakeLogger(t))
	result := d.Attempt(context.Background(), item)
	require.True(t, result.Success)
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"a":1}`)
	sig := "sha256=" + Sign(body, "right-secret")
	require.True(t, VerifySignature(body, "right-secret", sig))
	require.False(t, VerifySignature(body, "wrong-secret", sig))
}
