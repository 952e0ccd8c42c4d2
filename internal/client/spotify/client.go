package spotify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Searcher resolves free text to a catalog track id. An empty id means no match.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Options configures the catalog client.
type Options struct {
	ClientID     string
	ClientSecret string
	// HTTPClient is used for both token and search requests.
	HTTPClient *http.Client
	// BaseURL and TokenURL override the public Spotify endpoints.
	BaseURL  string
	TokenURL string
}

// Client implements Searcher against the Spotify Web API using the
// client-credentials grant.
type Client struct {
	api    *spotifyapi.Client
	logger *zap.Logger
}

// NewClient builds a Spotify search client. The token is fetched lazily on
// the first search and refreshed when it expires.
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}

	creds := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     tokenURL,
	}
	// token requests go through the same client so tests and timeouts apply
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	authed := &http.Client{
		Timeout: httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: creds.TokenSource(tokenCtx),
			Base:   httpClient.Transport,
		},
	}

	var apiOpts []spotifyapi.ClientOption
	if opts.BaseURL != "" {
		apiOpts = append(apiOpts, spotifyapi.WithBaseURL(opts.BaseURL))
	}

	return &Client{
		api:    spotifyapi.New(authed, apiOpts...),
		logger: logger,
	}
}

// Search returns the id of the first track the catalog lists for query.
// Transport and authentication failures are returned unchanged in meaning.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	res, err := c.api.Search(ctx, query, spotifyapi.SearchTypeTrack, spotifyapi.Limit(1))
	if err != nil {
		return "", fmt.Errorf("spotify search: %w", err)
	}

	if res == nil || res.Tracks == nil || len(res.Tracks.Tracks) == 0 {
		c.logger.Info("track not found", zap.String("query", query))
		return "", nil
	}

	id := string(res.Tracks.Tracks[0].ID)
	c.logger.Info("track found", zap.String("query", query), zap.String("trackID", id))
	return id, nil
}
