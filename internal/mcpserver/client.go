package mcpserver

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
)

// Config holds the configuration for connecting to the FraudSight API.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
	APIKey string // Optional bearer token, for deployments behind an auth proxy
}

// FraudsightClient is a pure HTTP client for the FraudSight API.
type FraudsightClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewFraudsightClient creates a new client for the FraudSight API.
func NewFraudsightClient(cfg Config) *FraudsightClient {
	return &FraudsightClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the API and returns the response body.
func (c *FraudsightClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// GetTransaction fetches one transaction by its source feed ID.
func (c *FraudsightClient) GetTransaction(ctx context.Context, id string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/transactions/"+url.PathEscape(id), nil, nil)
}

// ListFrauds lists flagged transactions, optionally filtered by type and party.
func (c *FraudsightClient) ListFrauds(ctx context.Context, txnType, party string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("fraud", "true")
	if txnType != "" {
		q.Set("type", txnType)
	}
	if party != "" {
		q.Set("party", party)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/transactions", q, nil)
}

// ExplainTransaction regenerates the explanation for a flagged transaction.
func (c *FraudsightClient) ExplainTransaction(ctx context.Context, id string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/transactions/"+url.PathEscape(id)+"/explain", nil, nil)
}

// GetClient fetches the behavioral profile for one party.
func (c *FraudsightClient) GetClient(ctx context.Context, partyID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/clients/"+url.PathEscape(partyID), nil, nil)
}

// GetClientVelocity fetches a party's recent activity rate.
func (c *FraudsightClient) GetClientVelocity(ctx context.Context, partyID string, hours int) (json.RawMessage, error) {
	q := url.Values{}
	if hours > 0 {
		q.Set("hours", strconv.Itoa(hours))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/clients/"+url.PathEscape(partyID)+"/velocity", q, nil)
}

// AssessClient runs the behavioral risk assessment for a party.
func (c *FraudsightClient) AssessClient(ctx context.Context, partyID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/clients/"+url.PathEscape(partyID)+"/assess", nil, nil)
}

// GetBank fetches the aggregate profile for one institution.
func (c *FraudsightClient) GetBank(ctx context.Context, code string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/banks/"+url.PathEscape(code), nil, nil)
}

// GetStats returns platform-wide fraud statistics.
func (c *FraudsightClient) GetStats(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/stats", nil, nil)
}

// ListSessions lists recent ingestion sessions, newest first.
func (c *FraudsightClient) ListSessions(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/sessions", q, nil)
}

// GetDailyInsight fetches the fraud digest for one day (YYYY-MM-DD).
func (c *FraudsightClient) GetDailyInsight(ctx context.Context, date string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/insights/"+url.PathEscape(date), nil, nil)
}
