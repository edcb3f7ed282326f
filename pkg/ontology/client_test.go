package ontology

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr string
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"access_token":"tok-123","token_type":"Bearer","expires_in":600}`,
			want:   "tok-123",
		},
		{
			name:    "bad_credentials",
			status:  http.StatusUnauthorized,
			body:    `{"error":"invalid_client"}`,
			wantErr: "unexpected status 401",
		},
		{
			name:    "missing_token",
			status:  http.StatusOK,
			body:    `{"token_type":"Bearer"}`,
			wantErr: "missing access_token",
		},
		{
			name:    "malformed",
			status:  http.StatusOK,
			body:    `{not json`,
			wantErr: "unmarshal token response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
				assert.Equal(t, "id-1", r.PostForm.Get("client_id"))
				assert.Equal(t, "secret-1", r.PostForm.Get("client_secret"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("id-1", "secret-1", WithTokenURL(srv.URL))

			tok, err := client.Token(context.Background())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tok)
		})
	}
}

func TestTokenRetries5xx(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-retry"}`))
	}))
	defer srv.Close()

	client := NewClient("id-1", "secret-1", WithTokenURL(srv.URL))

	tok, err := client.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-retry", tok)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestTokenExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient("id-1", "secret-1", WithTokenURL(srv.URL))

	_, err := client.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retries exhausted")
	assert.Equal(t, int32(maxRetryAttempts), attempts.Load())
}

func TestTokenContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("id-1", "secret-1", WithTokenURL(srv.URL))
	_, err := client.Token(ctx)
	require.Error(t, err)
}

func TestNewClientDefaults(t *testing.T) {
	t.Parallel()
	c := NewClient("id", "secret")
	hc := c.(*httpClient)
	assert.Equal(t, defaultBaseURL, hc.baseURL)
	assert.Equal(t, defaultTokenURL, hc.tokenURL)
	assert.Equal(t, defaultSystem, hc.system)
	assert.NotNil(t, hc.http)
	assert.NotNil(t, hc.limiter)
}

func TestWithOptions(t *testing.T) {
	t.Parallel()
	custom := &http.Client{}
	c := NewClient("id", "secret",
		WithBaseURL("https://example.test/fhir/"),
		WithTokenURL("https://example.test/token"),
		WithSystem("https://snomed.test"),
		WithHTTPClient(custom),
		WithRateLimit(2),
	)
	hc := c.(*httpClient)
	assert.Equal(t, "https://example.test/fhir", hc.baseURL)
	assert.Equal(t, "https://example.test/token", hc.tokenURL)
	assert.Equal(t, "https://snomed.test", hc.system)
	assert.Equal(t, custom, hc.http)
	assert.InDelta(t, 2, float64(hc.limiter.Limit()), 0.001)
}
