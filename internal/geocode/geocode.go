package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/example/carnest-gateway/internal/models"
	"github.com/example/carnest-gateway/internal/observability"
)

// Geocoder resolves free-text queries into place suggestions: the display
// name paired with coordinates, exactly what the form's place adapters
// consume.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]models.Place, error)
}

// Cache fronts the geocoder; lookups for the same text are frequent while a
// user types and the upstream rate-limits.
type Cache interface {
	Get(query string) ([]models.Place, bool)
	Set(query string, places []models.Place)
}

// Client queries a Photon-compatible forward-geocoding endpoint.
type Client struct {
	Endpoint   string
	Limit      int
	HTTPClient *http.Client
	Cache      Cache
}

func NewClient(endpoint string, limit int, cache Cache) *Client {
	return &Client{
		Endpoint:   strings.TrimRight(endpoint, "/"),
		Limit:      limit,
		HTTPClient: &http.Client{Timeout: 3 * time.Second},
		Cache:      cache,
	}
}

func (c *Client) Search(ctx context.Context, query string) ([]models.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	observability.GeocodeLookupsTotal.Inc()
	if c.Cache != nil {
		if places, ok := c.Cache.Get(query); ok {
			observability.GeocodeCacheHitsTotal.Inc()
			return places, nil
		}
	}

	limit := c.Limit
	if limit <= 0 {
		limit = 5
	}
	u := fmt.Sprintf("%s/api?q=%s&limit=%d", c.Endpoint, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder status %d", resp.StatusCode)
	}

	var out struct {
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"` // lng, lat
			} `json:"geometry"`
			Properties struct {
				Name    string `json:"name"`
				City    string `json:"city"`
				State   string `json:"state"`
				Country string `json:"country"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	places := make([]models.Place, 0, len(out.Features))
	for _, f := range out.Features {
		if len(f.Geometry.Coordinates) < 2 {
			continue
		}
		lng, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		places = append(places, models.Place{
			Name: displayName(f.Properties.Name, f.Properties.City, f.Properties.State, f.Properties.Country),
			Lat:  &lat,
			Lng:  &lng,
		})
	}
	if c.Cache != nil {
		c.Cache.Set(query, places)
	}
	return places, nil
}

func displayName(parts ...string) string {
	out := make([]string, 0, len(parts))
	seen := map[string]bool{}
	for _, p := range parts {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}

// MemoryCache is a tiny in-memory TTL cache for suggestion lists.
type MemoryCache struct {
	mu    sync.RWMutex
	store map[string]memEntry
	ttl   time.Duration
}

type memEntry struct {
	places []models.Place
	ts     time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{store: make(map[string]memEntry), ttl: ttl}
}

func (c *MemoryCache) Get(query string) ([]models.Place, bool) {
	c.mu.RLock()
	e, ok := c.store[query]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, query)
		c.mu.Unlock()
		return nil, false
	}
	return e.places, true
}

func (c *MemoryCache) Set(query string, places []models.Place) {
	c.mu.Lock()
	c.store[query] = memEntry{places: places, ts: time.Now()}
	c.mu.Unlock()
}
