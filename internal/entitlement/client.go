// Package entitlement resolves account access levels against the accounts
// service. The session trial timer only restricts accounts the service
// positively confirms as trial; any lookup failure grants full access.
package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Client queries the accounts service for entitlement state.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an entitlement client for the accounts service.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

type entitlementResponse struct {
	AccountID string `json:"accountId"`
	Plan      string `json:"plan"`
	Trial     bool   `json:"trial"`
}

// IsTrial reports whether the account is on a trial plan. An error means
// the state could not be determined; callers treat that as full access.
func (c *Client) IsTrial(ctx context.Context, accountID string) (bool, error) {
	if accountID == "" {
		return false, fmt.Errorf("account ID is empty")
	}

	endpoint := c.baseURL + "/accounts/" + url.PathEscape(accountID) + "/entitlement"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var ent entitlementResponse
	if err := json.NewDecoder(resp.Body).Decode(&ent); err != nil {
		return false, fmt.Errorf("decoding entitlement response: %w", err)
	}

	return ent.Trial, nil
}
