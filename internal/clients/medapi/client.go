// Package medapi talks to the remote medical records service. Every mutation
// the app makes locally is eventually replayed here by the sync queue.
package medapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tazhate/medremind/internal/domain"
)

// Client is a bearer-authenticated client for the records API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured returns true if the client has a base URL and token.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.token != ""
}

// doRequest performs an HTTP request with auth.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// Do dispatches one queued mutation: create posts the payload to the
// resource collection, update puts it to the record, delete removes the
// record. Update and delete read the record id from the payload.
func (c *Client) Do(ctx context.Context, action domain.SyncAction, entity string, payload json.RawMessage) error {
	var err error
	switch action {
	case domain.SyncCreate:
		_, err = c.doRequest(ctx, http.MethodPost, "/"+entity, payload)
	case domain.SyncUpdate:
		var id int64
		if id, err = payloadID(payload); err == nil {
			_, err = c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/%s/%d", entity, id), payload)
		}
	case domain.SyncDelete:
		var id int64
		if id, err = payloadID(payload); err == nil {
			_, err = c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/%s/%d", entity, id), nil)
		}
	default:
		err = fmt.Errorf("unknown sync action: %s", action)
	}

	if err != nil {
		return &domain.SyncError{Entity: entity, Err: err}
	}
	return nil
}

func payloadID(payload json.RawMessage) (int64, error) {
	var body struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return 0, fmt.Errorf("unmarshal payload id: %w", err)
	}
	if body.ID == 0 {
		return 0, fmt.Errorf("payload has no id")
	}
	return body.ID, nil
}
