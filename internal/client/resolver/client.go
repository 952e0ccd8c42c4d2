package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

// HTTPClient wraps the stdlib client for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolver turns a track id into a download outcome.
type Resolver interface {
	Resolve(ctx context.Context, id string) Outcome
}

// Client implements Resolver against the download-resolution service.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	logger     *zap.Logger
}

// NewClient builds a resolver client rooted at baseURL.
func NewClient(baseURL string, httpClient HTTPClient, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Resolve issues GET {base}/{id} and classifies the response. It never
// returns an error: failures are reported as Failed outcomes.
func (c *Client) Resolve(ctx context.Context, id string) Outcome {
	out, err := c.fetch(ctx, id)
	if err != nil {
		c.logger.Warn("resolve failed", zap.String("trackID", id), zap.Error(err))
		return FailedWith(Fault, err.Error())
	}

	c.logger.Debug("resolve finished", zap.String("trackID", id), zap.Stringer("outcome", out.Kind))
	return out
}

func (c *Client) fetch(ctx context.Context, id string) (Outcome, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Outcome{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Outcome{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return QueuedOutcome(), nil
	default:
		c.logger.Debug("unexpected resolver status", zap.String("trackID", id), zap.Int("status", resp.StatusCode))
		return FailedWith(BadStatus, ""), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Outcome{}, fmt.Errorf("read response: %w", err)
	}

	if !gjson.ValidBytes(body) {
		return Outcome{}, fmt.Errorf("decode response: invalid JSON body")
	}

	link := gjson.GetBytes(body, "url")
	if !link.Exists() || link.Type == gjson.Null {
		return FailedWith(MissingURL, ""), nil
	}

	return ResolvedURL(link.String()), nil
}
