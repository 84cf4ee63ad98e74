package catalog

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
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	gostac "github.com/planetlabs/go-stac"
)

// Client handles communication with a STAC API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new STAC API client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the client.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// Close releases idle connections held by the client's transport.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// searchRequest is the POST /search body.
type searchRequest struct {
	Collections []string          `json:"collections"`
	Intersects  *geojson.Geometry `json:"intersects"`
	Limit       int               `json:"limit"`
}

// Connect fetches the catalog landing page and verifies it decodes as a STAC
// catalog. A failure here means the client cannot be established at all and
// is fatal to the whole run, unlike per-feature search errors.
func (c *Client) Connect(ctx context.Context) error {
	if _, err := url.ParseRequestURI(c.baseURL); err != nil {
		return fmt.Errorf("invalid catalog URL %q: %w", c.baseURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "stac-chipper/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, string(body))
	}

	var landing gostac.Catalog
	if err := json.NewDecoder(resp.Body).Decode(&landing); err != nil {
		return fmt.Errorf("failed to decode catalog landing page: %w", err)
	}

	c.logger.DebugContext(ctx, "connected to catalog",
		slog.String("url", c.baseURL),
		slog.String("catalog_id", landing.Id),
	)
	return nil
}

// Search issues a single bounded POST /search for items in the collection
// intersecting the geometry. Transport failures and non-2xx responses are a
// *CatalogError; they fail only the feature being processed, not the run.
func (c *Client) Search(ctx context.Context, collection string, intersects orb.Geometry, limit int) ([]*gostac.Item, error) {
	body, err := json.Marshal(searchRequest{
		Collections: []string{collection},
		Intersects:  geojson.NewGeometry(intersects),
		Limit:       limit,
	})
	if err != nil {
		return nil, &CatalogError{Op: "search", Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	searchURL := c.baseURL + "/search"
	c.logger.DebugContext(ctx, "executing STAC search",
		slog.String("url", searchURL),
		slog.String("collection", collection),
		slog.Int("limit", limit),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL, bytes.NewReader(body))
	if err != nil {
		return nil, &CatalogError{Op: "search", Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/geo+json")
	req.Header.Set("User-Agent", "stac-chipper/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "STAC search request failed",
			slog.String("error", err.Error()),
			slog.String("url", searchURL),
		)
		return nil, &CatalogError{Op: "search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		c.logger.ErrorContext(ctx, "STAC search returned non-2xx status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(respBody)),
		)
		return nil, &CatalogError{
			Op:  "search",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var result ItemCollection
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &CatalogError{Op: "search", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	c.logger.DebugContext(ctx, "STAC search completed",
		slog.Int("item_count", len(result.Features)),
	)
	return result.Features, nil
}
