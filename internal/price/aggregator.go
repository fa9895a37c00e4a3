package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/anthroposcity/actgate/internal/models"
	"github.com/anthroposcity/actgate/pkg/logger"
)

const statsCacheKey = "actgate:price:stats"

// statsResponse is the body returned by the statistics endpoint
type statsResponse struct {
	Price      float64 `json:"price"`
	MarketCap  float64 `json:"marketCap"`
	Liquidity  float64 `json:"liquidity"`
	Holders    float64 `json:"holders"`
	CircSupply float64 `json:"circSupply"`
}

// Aggregator fetches ACT market statistics from an external endpoint and caches them
type Aggregator struct {
	logger *logger.Logger
	url    string
	ttl    time.Duration
	cache  Cache
	client *http.Client
}

// NewAggregator creates a new Aggregator instance
func NewAggregator(url string, ttl time.Duration, cache Cache, logger *logger.Logger) *Aggregator {
	return &Aggregator{
		logger: logger,
		url:    url,
		ttl:    ttl,
		cache:  cache,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Stats returns the cached snapshot or fetches a fresh one.
func (a *Aggregator) Stats(ctx context.Context) (*models.TokenStats, error) {
	if cached, ok := a.cached(ctx); ok {
		return cached, nil
	}

	stats, err := a.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPriceUnavailable, err)
	}

	if data, err := json.Marshal(stats); err == nil {
		if err := a.cache.Set(ctx, statsCacheKey, data, a.ttl); err != nil {
			a.logger.Warn("Failed to cache ACT stats", "error", err)
		}
	}

	return stats, nil
}

func (a *Aggregator) cached(ctx context.Context) (*models.TokenStats, bool) {
	data, ok, err := a.cache.Get(ctx, statsCacheKey)
	if err != nil {
		a.logger.Warn("Failed to read cached ACT stats", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var stats models.TokenStats
	if err := json.Unmarshal(data, &stats); err != nil {
		a.logger.Warn("Discarding malformed cached ACT stats", "error", err)
		return nil, false
	}
	return &stats, true
}

func (a *Aggregator) fetch(ctx context.Context) (*models.TokenStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build stats request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ACT stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var body statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode stats response: %w", err)
	}

	if !validPrice(body.Price) {
		return nil, fmt.Errorf("aggregator returned unusable price %v", body.Price)
	}

	a.logger.Debug("Fetched ACT stats", "price", body.Price, "holders", body.Holders)

	return &models.TokenStats{
		Price:             body.Price,
		MarketCap:         body.MarketCap,
		Liquidity:         body.Liquidity,
		Holders:           int64(body.Holders),
		CirculatingSupply: body.CircSupply,
	}, nil
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
