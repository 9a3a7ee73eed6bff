// Package remote is the client-side HTTP binding to the resolver API.
// All calls use bounded timeouts; failures are classified so the sync
// engine can tell a retryable outage from an ownership rejection.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	accountdto "pixeltrace/internal/account/dto"
	trackdto "pixeltrace/internal/track/dto"

	"golang.org/x/oauth2"
)

// APIError carries the HTTP status so callers can branch on the
// explicit Forbidden/Unauthorized/Conflict paths.
type APIError struct {
	Status        int
	Message       string
	ConflictCount int
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("remote: status %d: %s", e.Status, e.Message)
}

// IsTransient reports whether the failure is worth retrying: network
// errors and server-side 5xx. ACL rejections are never transient.
func IsTransient(err error) bool {
	apiErr, ok := err.(*APIError)
	if !ok {
		// Raw transport errors (timeouts, refused connections).
		return true
	}
	return apiErr.Status == 0 || apiErr.Status >= 500
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetSession authorizes subsequent requests with the session token.
// An empty token reverts to anonymous calls.
func (c *Client) SetSession(accessToken string) {
	if accessToken == "" {
		c.http = &http.Client{Timeout: 15 * time.Second}
		return
	}
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	c.http = oauth2.NewClient(context.Background(), source)
	c.http.Timeout = 15 * time.Second
}

func (c *Client) do(method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &APIError{Message: err.Error()}
		}
		reader = bytes.NewReader(encoded)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		return &APIError{Message: err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload struct {
			Error         string `json:"error"`
			ConflictCount int    `json:"conflict_count"`
		}
		raw, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(raw, &payload)
		message := payload.Error
		if message == "" {
			message = string(raw)
		}
		return &APIError{Status: resp.StatusCode, Message: message, ConflictCount: payload.ConflictCount}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &APIError{Status: resp.StatusCode, Message: "decode response: " + err.Error()}
		}
	}
	return nil
}

// FetchOwnerPage returns the owner-scoped remote page.
func (c *Client) FetchOwnerPage(ownerExternalID string, page, limit int) (*trackdto.ItemsResponse, error) {
	q := url.Values{}
	q.Set("ownerIdentity", ownerExternalID)
	q.Set("page", fmt.Sprint(page))
	q.Set("limit", fmt.Sprint(limit))

	var resp trackdto.ItemsResponse
	if err := c.do(http.MethodGet, "/api/items", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SyncStatus fetches the current server state for an explicit id set.
func (c *Client) SyncStatus(ids []string) (*trackdto.ItemsResponse, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("limit", fmt.Sprint(len(ids)))

	var resp trackdto.ItemsResponse
	if err := c.do(http.MethodGet, "/api/items", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes items remotely, returning the deleted count.
func (c *Client) Delete(ids []string, senderIdentity, ownerIdentity string) (int64, error) {
	q := url.Values{}
	if len(ids) > 0 {
		q.Set("ids", strings.Join(ids, ","))
	}
	if senderIdentity != "" {
		q.Set("senderIdentity", senderIdentity)
	}
	if ownerIdentity != "" {
		q.Set("ownerIdentity", ownerIdentity)
	}

	var resp trackdto.DeleteResponse
	if err := c.do(http.MethodDelete, "/api/items", q, nil, &resp); err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}

// BatchLink claims items for the account.
func (c *Client) BatchLink(accountID string, items []trackdto.LinkItem) error {
	req := trackdto.LinkRequest{AccountID: accountID, Items: items}
	return c.do(http.MethodPost, "/api/items/link", nil, req, nil)
}

// ConflictCheck asks whether a claim of ids by the intended owner would
// collide with an existing owner.
func (c *Client) ConflictCheck(ids []string, intendedOwnerExternalID string) (bool, error) {
	req := trackdto.ConflictCheckRequest{IDs: ids, IntendedOwnerExternalID: intendedOwnerExternalID}
	var resp trackdto.ConflictCheckResponse
	if err := c.do(http.MethodPost, "/api/items/conflict-check", nil, req, &resp); err != nil {
		return false, err
	}
	return resp.Conflict, nil
}

// SignIn exchanges an external id token for a session.
func (c *Client) SignIn(idToken string) (*accountdto.TokenResponse, error) {
	var resp accountdto.TokenResponse
	err := c.do(http.MethodPost, "/api/auth/google", nil, accountdto.SignInRequest{Token: idToken}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
