// Package materials is a client for the supplier catalog API used by the
// specialized analysis stage to check materials availability near a project.
package materials

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.supplybridge.io/v1"

// Client looks up materials availability for a project category.
type Client interface {
	Find(ctx context.Context, req FindRequest) (*FindResponse, error)
}

// Location narrows availability to the project's area.
type Location struct {
	ZIP   string `json:"zip"`
	State string `json:"state,omitempty"`
	City  string `json:"city,omitempty"`
}

// FindRequest is the request body for POST /availability/search.
type FindRequest struct {
	Category string            `json:"category"`
	Details  map[string]string `json:"details,omitempty"`
	Location Location          `json:"location"`
}

// Product is a catalog item in the search response.
type Product struct {
	SKU     string  `json:"sku"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	InStock bool    `json:"in_stock"`
}

// FindResponse is the availability search result.
type FindResponse struct {
	Availability string    `json:"availability"` // "in_stock", "limited", "special_order"
	Products     []Product `json:"products"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a supplier catalog client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Find(ctx context.Context, req FindRequest) (*FindResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "materials: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/availability/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "materials: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "materials: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "materials: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("materials: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result FindResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "materials: unmarshal response")
	}

	return &result, nil
}
