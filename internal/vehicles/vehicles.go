package vehicles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/example/carnest-gateway/internal/models"
)

// Client fetches the signed-in user's vehicle list from the upstream API
// and caches it per access token. The list feeds the form's vehicle
// selector and the best-effort pre-submit check.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	mu    sync.Mutex
	cache map[string]entry
	ttl   time.Duration
}

type entry struct {
	list []models.Vehicle
	ts   time.Time
}

func NewClient(baseURL string, ttl time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		cache:      make(map[string]entry),
		ttl:        ttl,
	}
}

// List returns the user's vehicles, served from cache when fresh.
func (c *Client) List(ctx context.Context, accessToken string) ([]models.Vehicle, error) {
	c.mu.Lock()
	if e, ok := c.cache[accessToken]; ok && time.Since(e.ts) <= c.ttl {
		list := e.list
		c.mu.Unlock()
		return list, nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/vehicle/", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vehicle list status %d", resp.StatusCode)
	}
	var list []models.Vehicle
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[accessToken] = entry{list: list, ts: time.Now()}
	c.mu.Unlock()
	return list, nil
}

// Bind scopes the client to one access token so the form controller can ask
// about vehicles without holding credentials itself.
func (c *Client) Bind(accessToken string) TokenScope {
	return TokenScope{c: c, token: accessToken}
}

// TokenScope satisfies the form package's VehicleList interface.
type TokenScope struct {
	c     *Client
	token string
}

// Contains reports whether the vehicle id appears in the user's list. Any
// lookup failure answers true: the check is best-effort and the server
// validates authoritatively.
func (s TokenScope) Contains(ctx context.Context, id int64) bool {
	list, err := s.c.List(ctx, s.token)
	if err != nil {
		return true
	}
	for _, v := range list {
		if v.ID == id {
			return true
		}
	}
	return false
}
