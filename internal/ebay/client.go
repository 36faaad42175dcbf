package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
	DefaultBaseURL  = "https://api.ebay.com"
	APIScope        = "https://api.ebay.com/oauth/api_scope"
)

type Client struct {
	appID    string
	certID   string
	tokenURL string
	baseURL  string
	client   *http.Client
}

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// ItemSummary is one listing from the Browse API search. Price is nil for
// listings that do not carry a fixed price.
type ItemSummary struct {
	ItemID string  `json:"itemId"`
	Title  string  `json:"title"`
	Price  *Amount `json:"price"`
}

type searchResponse struct {
	Total         int           `json:"total"`
	ItemSummaries []ItemSummary `json:"itemSummaries"`
}

func NewClient(appID, certID, tokenURL, baseURL string, timeout time.Duration) *Client {
	return &Client{
		appID:    appID,
		certID:   certID,
		tokenURL: tokenURL,
		baseURL:  baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Token performs a client-credentials exchange. Every call hits the identity
// endpoint; nothing is cached.
func (c *Client) Token(ctx context.Context) (string, error) {
	cfg := clientcredentials.Config{
		ClientID:     c.appID,
		ClientSecret: c.certID,
		TokenURL:     c.tokenURL,
		Scopes:       []string{APIScope},
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)

	tok, err := cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	return tok.AccessToken, nil
}

// SearchItems queries the Browse API item summary search.
func (c *Client) SearchItems(ctx context.Context, query string, limit int, accessToken string) ([]ItemSummary, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	endpoint := c.baseURL + "/buy/browse/v1/item_summary/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

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
	return result.ItemSummaries, nil
}
