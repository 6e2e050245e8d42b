package genie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dbgenie/dbgenie/internal/log"
)

// defaultHTTPTimeout bounds a single request, not the whole polling loop.
const defaultHTTPTimeout = 30 * time.Second

// maxResponseSize caps a response body read (4MB). Genie answers are
// small; the cap guards against a misbehaving endpoint.
const maxResponseSize int64 = 4 << 20

// Response is a raw API response: the status code and body pass through
// uninterpreted so callers decide what a non-200 means.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client is the authenticated HTTP transport to one Genie space.
// Every request carries the bearer token; the client has no other side
// effects and performs no retries.
//
// Client is safe for concurrent use.
type Client struct {
	host       string
	token      string
	spaceID    string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates a Genie transport client.
// host is the workspace base URL (e.g. "https://adb-1.2.azuredatabricks.net").
func NewClient(host, token, spaceID string, logger log.Logger) (*Client, error) {
	if host == "" {
		return nil, fmt.Errorf("databricks host is required")
	}
	if token == "" {
		return nil, fmt.Errorf("databricks token is required")
	}
	if spaceID == "" {
		return nil, fmt.Errorf("genie space id is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Client{
		host:       strings.TrimRight(host, "/"),
		token:      token,
		spaceID:    spaceID,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     logger,
	}, nil
}

// StartConversation submits the user's literal question text and opens a
// new conversation in the space.
func (c *Client) StartConversation(ctx context.Context, content string) (*Response, error) {
	url := fmt.Sprintf("%s/api/2.0/genie/spaces/%s/start-conversation", c.host, c.spaceID)
	return c.do(ctx, http.MethodPost, url, startConversationRequest{Content: content})
}

// GetMessage fetches the current state of one message, including its
// status and any attachments.
func (c *Client) GetMessage(ctx context.Context, conversationID, messageID string) (*Response, error) {
	url := fmt.Sprintf("%s/api/2.0/genie/spaces/%s/conversations/%s/messages/%s",
		c.host, c.spaceID, conversationID, messageID)
	return c.do(ctx, http.MethodGet, url, nil)
}

// GetQueryResult fetches the tabular result behind a query attachment.
func (c *Client) GetQueryResult(ctx context.Context, conversationID, messageID, attachmentID string) (*Response, error) {
	url := fmt.Sprintf("%s/api/2.0/genie/spaces/%s/conversations/%s/messages/%s/attachments/%s/query-result",
		c.host, c.spaceID, conversationID, messageID, attachmentID)
	return c.do(ctx, http.MethodGet, url, nil)
}

// do issues one HTTP request with the bearer authorization header.
// Transport-level failures (unreachable host, timeout) propagate as
// errors; HTTP-level failures come back as a Response with its status
// code for the caller to interpret.
func (c *Client) do(ctx context.Context, method, url string, body any) (*Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("genie request completed",
		"method", method,
		"url", url,
		"status", resp.StatusCode,
		"body_size", len(respBody))

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}
