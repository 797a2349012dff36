// Package accounts resolves activation payloads against the remote
// account-lookup API.
package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zappedin/orchestrator/pkg/models"
)

// envelope is the lookup API's response wrapper.
type envelope struct {
	Data models.Account `json:"data"`
}

// Client fetches account records by id. Lookup failures are hard failures:
// they abort an activation before any browser resource is allocated.
type Client struct {
	http *resty.Client
}

// New builds a client against the given API base URL, authenticating with a
// bearer token.
func New(baseURL, token string) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &Client{http: httpClient}
}

// GetByID resolves one account record. A non-2xx response or a missing
// username field is an error; the record is otherwise returned as-is.
func (c *Client) GetByID(ctx context.Context, accountID string) (*models.Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account id is required")
	}

	var body envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		SetPathParam("id", accountID).
		Get("/api/v1/linkedin-account/get-by-id/{id}")
	if err != nil {
		return nil, fmt.Errorf("account lookup failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("account lookup returned %s", resp.Status())
	}

	if body.Data.Username == "" {
		return nil, fmt.Errorf("username field missing in account data")
	}

	return &body.Data, nil
}
