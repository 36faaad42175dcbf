package discogs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL = "https://api.discogs.com"
	userAgent      = "VinylScannerApp/1.0 (+https://vinylscanner.local)"
)

type Client struct {
	token   string
	baseURL string
	client  *http.Client
}

// Release is a single hit from the database search endpoint.
type Release struct {
	ID              int      `json:"id"`
	Title           string   `json:"title"`
	Year            Year     `json:"year"`
	ResourceURL     string   `json:"resource_url"`
	CatalogueNumber string   `json:"catno"`
	Barcodes        []string `json:"barcode"`
}

type searchResponse struct {
	Results []Release `json:"results"`
}

// Year accepts both the string and the numeric form the API has used over time.
type Year string

func (y *Year) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*y = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*y = Year(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid year %s: %w", string(data), err)
	}
	*y = Year(n.String())
	return nil
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		token:   token,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Search runs a free-text database search. Every call goes to the API.
func (c *Client) Search(ctx context.Context, query, releaseType string, perPage int) ([]Release, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", releaseType)
	params.Set("per_page", strconv.Itoa(perPage))
	if c.token != "" {
		params.Set("token", c.token)
	}
	endpoint := c.baseURL + "/database/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	for _, r := range result.Results {
		log.Debug().
			Str("title", r.Title).
			Str("catno", r.CatalogueNumber).
			Strs("barcodes", r.Barcodes).
			Msg("Search result")
	}

	return result.Results, nil
}
