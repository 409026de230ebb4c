// Package verification provides a client for a NeverBounce-compatible
// single-address email verification API.
package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/cleanlist/pkg/logging"
	"github.com/ekaya-inc/cleanlist/pkg/models"
)

// DefaultTimeout is the maximum time to wait for one verification response.
const DefaultTimeout = 5 * time.Second

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 64 << 10

var (
	// ErrMalformedResponse is returned when the body has no usable result field.
	ErrMalformedResponse = errors.New("malformed verification response")
	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected verification status")
)

// Response is the subset of the single-check response the client reads.
type Response struct {
	Status  string `json:"status"`
	Result  string `json:"result"`
	Message string `json:"message,omitempty"`
}

// Client calls the verification API. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient creates a verification client for baseURL. A non-positive timeout
// falls back to DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		timeout:    timeout,
		logger:     logger.Named("verification"),
	}
}

// Verify checks one address and classifies the result. Any transport failure,
// timeout, non-2xx status or malformed body is returned as an error together
// with OutcomeError; callers decide whether to surface it.
func (c *Client) Verify(ctx context.Context, apiKey, email string) (models.ValidationOutcome, error) {
	resp, err := c.Check(ctx, apiKey, email)
	if err != nil {
		return models.OutcomeError, err
	}
	return Classify(resp.Result), nil
}

// Check performs a single verification request bounded by the client timeout.
func (c *Client) Check(ctx context.Context, apiKey, email string) (*Response, error) {
	endpoint, err := buildURL(c.baseURL, "v4", "single", "check")
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	query := url.Values{}
	query.Set("key", apiKey)
	query.Set("email", email)
	endpoint += "?" + query.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call verification service: %s", logging.SanitizeError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("Verification service returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", logging.TruncateString(string(body), 200)))
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var parsed Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if parsed.Result == "" {
		detail := parsed.Status
		if parsed.Message != "" {
			detail += ": " + parsed.Message
		}
		return nil, fmt.Errorf("%w: no result (%s)", ErrMalformedResponse, detail)
	}

	return &parsed, nil
}

// Classify maps a service result onto a ValidationOutcome.
func Classify(result string) models.ValidationOutcome {
	switch result {
	case "valid":
		return models.OutcomeValid
	case "invalid", "disposable":
		return models.OutcomeInvalid
	case "catchall", "unknown":
		return models.OutcomeUnknown
	default:
		return models.OutcomeError
	}
}

// buildURL constructs a URL by parsing the base and joining path segments.
func buildURL(baseURL string, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q", baseURL)
	}

	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)

	return u.String(), nil
}
