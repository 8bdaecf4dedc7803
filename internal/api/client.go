package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mfareport/cli/internal/models"
	"github.com/mfareport/cli/internal/utils"
)

const (
	authPath = "/api/v1/authenticate"
	// maxBodySize caps how much of a response is read
	maxBodySize = 32 << 20
)

// ErrNoTenant is returned when neither the platform nor the config names a tenant
var ErrNoTenant = errors.New("authentication response carried no tenant id and none is configured")

// Client represents the API client
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	// TenantID is used when the authentication response omits one
	TenantID string
}

// NewClient creates a new API client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Authenticate exchanges credentials for a bearer token and tenant id
func (c *Client) Authenticate(ctx context.Context, username, password string) (*models.Session, error) {
	jsonData, err := json.Marshal(models.AuthRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+authPath, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, authPath)
	if err != nil {
		return nil, err
	}

	var response models.AuthResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if response.Token == "" {
		return nil, fmt.Errorf("authentication response carried no token")
	}

	tenant := string(response.TenantID)
	if tenant == "" {
		tenant = c.TenantID
	}
	if tenant == "" {
		return nil, ErrNoTenant
	}

	return &models.Session{Token: response.Token, TenantID: tenant}, nil
}

// ListUsers fetches the tenant's user directory page by page. Paging stops at the
// first short page or after params.MaxPages pages, in which case the listing is
// marked truncated. Entries already seen on an earlier page are dropped, and a
// full page with nothing new ends paging with the listing marked OffsetIgnored.
func (c *Client) ListUsers(ctx context.Context, session *models.Session, params models.PaginationParams) (*models.Listing, error) {
	if session == nil {
		return nil, fmt.Errorf("not authenticated")
	}
	if params.Limit <= 0 {
		params.Limit = 100
	}
	if params.MaxPages <= 0 {
		params.MaxPages = 1
	}

	endpoint := fmt.Sprintf("/api/v2/tenants/%s/users", url.PathEscape(session.TenantID))
	listing := &models.Listing{Data: make([]interface{}, 0)}
	offset := params.Offset
	seen := make(map[string]struct{})

	for page := 0; page < params.MaxPages; page++ {
		entries, err := c.fetchPage(ctx, session, endpoint, params.Limit, offset)
		if err != nil {
			return nil, err
		}
		listing.Pages++

		added := 0
		for _, entry := range entries {
			key := entryKey(entry)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			listing.Data = append(listing.Data, entry)
			added++
		}

		if len(entries) < params.Limit {
			return listing, nil
		}
		if added == 0 {
			listing.OffsetIgnored = true
			return listing, nil
		}
		offset += len(entries)
	}

	listing.Truncated = true
	return listing, nil
}

// entryKey identifies a directory entry across pages: its email when it has
// one, its JSON encoding otherwise.
func entryKey(entry interface{}) string {
	if obj, ok := entry.(map[string]interface{}); ok {
		if email, ok := obj["email"].(string); ok && email != "" {
			return "email:" + strings.ToLower(email)
		}
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Sprintf("%T:%v", entry, entry)
	}
	return "json:" + string(raw)
}

// fetchPage returns the entries of one page. A JSON body without a data array
// yields no entries.
func (c *Client) fetchPage(ctx context.Context, session *models.Session, endpoint string, limit, offset int) ([]interface{}, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", session.AuthorizationHeader())
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, endpoint)
	if err != nil {
		return nil, err
	}

	var document interface{}
	if err := json.Unmarshal(body, &document); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	obj, ok := document.(map[string]interface{})
	if !ok {
		return nil, nil
	}
	data, ok := obj["data"].([]interface{})
	if !ok {
		return nil, nil
	}
	return data, nil
}

// do executes req and returns the body of a 2xx response
func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, utils.NewAPIError(resp.StatusCode, endpoint, errorMessage(body))
	}

	return body, nil
}

// errorMessage pulls a human readable message out of an error body
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return ""
}
