// Package ontology provides a client for the NHS Terminology Server's FHIR
// API: OAuth2 client-credentials auth, code lookups, and the release
// version probe.
package ontology

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL  = "https://ontology.nhs.uk/production1/fhir"
	defaultTokenURL = "https://ontology.nhs.uk/authorisation/auth/realms/nhs-digital-terminology/protocol/openid-connect/token"
	defaultSystem   = "https://dmd.nhs.uk"

	maxRetryAttempts = 3
)

// Status is the server's verdict on a single code.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	// StatusUnknown means the server answered but the code could not be
	// classified: not found, or no inactive property in the response.
	StatusUnknown Status = "unknown"
)

// Client performs lookups against the terminology server.
type Client interface {
	Token(ctx context.Context) (string, error)
	Version(ctx context.Context, token, code string) (string, error)
	LookupBatch(ctx context.Context, token string, codes []string) (map[string]Status, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default FHIR base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTokenURL overrides the default OAuth2 token endpoint.
func WithTokenURL(u string) Option {
	return func(c *httpClient) {
		c.tokenURL = u
	}
}

// WithSystem overrides the default code system URI.
func WithSystem(system string) Option {
	return func(c *httpClient) {
		c.system = system
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a per-second request rate limit.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	clientID     string
	clientSecret string
	baseURL      string
	tokenURL     string
	system       string
	http         *http.Client
	limiter      *rate.Limiter
}

// NewClient creates a terminology server client.
func NewClient(clientID, clientSecret string, opts ...Option) Client {
	c := &httpClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      defaultBaseURL,
		tokenURL:     defaultTokenURL,
		system:       defaultSystem,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(5, 5),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// tokenResponse is the OAuth2 token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *httpClient) Token(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "ontology: create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.doWithRetry(ctx, req, func() io.Reader { return strings.NewReader(form.Encode()) })
	if err != nil {
		return "", eris.Wrap(err, "ontology: obtain token")
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", eris.Wrap(err, "ontology: unmarshal token response")
	}
	if tok.AccessToken == "" {
		return "", eris.New("ontology: token response missing access_token")
	}

	return tok.AccessToken, nil
}

// postFHIR sends a FHIR JSON payload and returns the response body.
func (c *httpClient) postFHIR(ctx context.Context, rawURL, token, contentType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "ontology: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "ontology: create request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	return c.doWithRetry(ctx, req, func() io.Reader { return bytes.NewReader(data) })
}

// doWithRetry issues the request, retrying 429 and 5xx responses with
// jittered exponential backoff. newBody rebuilds the request body for each
// attempt.
func (c *httpClient) doWithRetry(ctx context.Context, req *http.Request, newBody func() io.Reader) ([]byte, error) {
	var lastErr error
	for attempt := range maxRetryAttempts {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		cloned := req.Clone(ctx)
		cloned.Body = io.NopCloser(newBody())

		resp, err := c.http.Do(cloned)
		if err != nil {
			lastErr = err
			zap.L().Warn("terminology request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = eris.Errorf("http %d from %s: %s", resp.StatusCode, req.URL.String(), string(body))
			zap.L().Warn("terminology server error, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		if readErr != nil {
			return nil, eris.Wrap(readErr, "read response")
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("unexpected status %d from %s: %s", resp.StatusCode, req.URL.String(), string(body))
		}

		return body, nil
	}

	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

func (c *httpClient) backoff(ctx context.Context, attempt int) error {
	base := time.Second
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "backoff interrupted")
	case <-t.C:
		return nil
	}
}
