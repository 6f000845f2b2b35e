// Package hotels proxies a third-party hotel price API with rate limiting and caching.
package hotels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yatri-app/backend/internal/apperr"
	"github.com/yatri-app/backend/pkg/cache"
)

// Lookup defaults applied when a query leaves currency or limit empty.
const (
	// DefaultCurrency prices results in Indian rupees.
	DefaultCurrency = "INR"
	// DefaultLimit is the number of hotels returned when no limit is given.
	DefaultLimit = 10
	// MaxLimit caps the limit a caller may ask for.
	MaxLimit = 50
)

// Hotel is one priced stay option.
type Hotel struct {
	HotelID   string  `json:"hotelId"`
	HotelName string  `json:"hotelName"`
	Location  string  `json:"location"`
	Stars     int     `json:"stars"`
	PriceFrom float64 `json:"priceFrom"`
}

// Query selects hotels near a location.
type Query struct {
	Location string
	Currency string
	Limit    int
}

func (q Query) normalize() (Query, error) {
	q.Location = strings.TrimSpace(q.Location)
	if q.Location == "" {
		return q, apperr.Validation("location is required")
	}
	q.Currency = strings.ToUpper(strings.TrimSpace(q.Currency))
	if q.Currency == "" {
		q.Currency = DefaultCurrency
	}
	if len(q.Currency) != 3 {
		return q, apperr.Validation("currency must be a 3-letter code")
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q, nil
}

func (q Query) cacheKey() string {
	return fmt.Sprintf("%s|%s|%d", strings.ToLower(q.Location), q.Currency, q.Limit)
}

// Config configures the upstream client.
type Config struct {
	BaseURL        string
	APIKey         string
	RequestsPerSec float64
	Burst          int
	CacheTTL       time.Duration
	Timeout        time.Duration
}

// Client looks up hotel prices.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cache   cache.Cache
	logger  *zap.Logger
}

// NewClient creates a hotel client. A nil httpClient uses one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client, c cache.Cache, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		cache:   c,
		logger:  logger,
	}
}

// Lookup returns hotels for q, served from cache when fresh.
func (c *Client) Lookup(ctx context.Context, q Query) ([]Hotel, error) {
	q, err := q.normalize()
	if err != nil {
		return nil, err
	}
	key := q.cacheKey()
	if c.cache != nil {
		cached, ok, err := cache.GetJSON[[]Hotel](ctx, c.cache, key)
		if err != nil {
			c.logger.Warn("hotel cache read failed", zap.Error(err))
		}
		if ok {
			return cached, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Transient("hotels.lookup", err)
	}
	hotels, err := c.fetch(ctx, q)
	if err != nil {
		c.logger.Warn("hotel lookup failed", zap.String("location", q.Location), zap.Error(err))
		return nil, apperr.Transient("hotels.lookup", err)
	}
	if c.cache != nil {
		if err := cache.SetJSON(ctx, c.cache, key, hotels, c.cfg.CacheTTL); err != nil {
			c.logger.Warn("hotel cache write failed", zap.Error(err))
		}
	}
	return hotels, nil
}

func (c *Client) fetch(ctx context.Context, q Query) ([]Hotel, error) {
	params := url.Values{}
	params.Set("location", q.Location)
	params.Set("currency", q.Currency)
	params.Set("limit", strconv.Itoa(q.Limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.BaseURL, "/")+"/hotels?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var wire struct {
		Hotels []Hotel `json:"hotels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(wire.Hotels) > q.Limit {
		wire.Hotels = wire.Hotels[:q.Limit]
	}
	if wire.Hotels == nil {
		wire.Hotels = []Hotel{}
	}
	return wire.Hotels, nil
}
