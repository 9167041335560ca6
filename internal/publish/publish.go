// Package publish talks to the remote publishing endpoint. The endpoint
// accepts one link submission at a time and rejects links it has seen
// before with a distinguishable duplicate signal.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"feedposter/internal/logger"
)

// ErrAlreadySubmitted marks the endpoint's "this link was posted
// before" rejection. Callers treat it as a terminal success so the
// article is never retried.
var ErrAlreadySubmitted = errors.New("link already submitted")

// ErrUnauthorized marks an expired or invalid session token.
var ErrUnauthorized = errors.New("publish token rejected")

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type submitRequest struct {
	Destination string `json:"destination"`
	Title       string `json:"title"`
	Link        string `json:"url"`
	Kind        string `json:"kind"`
	FlairID     string `json:"flair_id,omitempty"`
}

type apiResponse struct {
	URL     string `json:"url"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Submit posts one link to the destination and returns the resulting
// publish location. A duplicate rejection comes back as
// ErrAlreadySubmitted; anything else is a generic failure.
func (c *Client) Submit(ctx context.Context, token, destination, title, link, flairID string) (string, error) {
	payload := submitRequest{
		Destination: destination,
		Title:       title,
		Link:        link,
		Kind:        "link",
		FlairID:     flairID,
	}

	var resp apiResponse
	if err := c.post(ctx, token, "/api/submit", payload, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		if strings.EqualFold(resp.Error, "ALREADY_SUB") {
			return "", fmt.Errorf("%s: %w", resp.Message, ErrAlreadySubmitted)
		}
		return "", fmt.Errorf("submit rejected: %s (%s)", resp.Error, resp.Message)
	}
	if resp.URL == "" {
		return "", fmt.Errorf("submit succeeded without a publish location")
	}
	return resp.URL, nil
}

// FlairOption is one selectable flair on a destination.
type FlairOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// FetchFlairOptions lists the flairs available on a destination.
// Consumed by the settings layer, not by the cycles.
func (c *Client) FetchFlairOptions(ctx context.Context, token, destination string) ([]FlairOption, error) {
	var out struct {
		Flairs []FlairOption `json:"flairs"`
	}
	path := fmt.Sprintf("/api/flairs?destination=%s", destination)
	if err := c.get(ctx, token, path, &out); err != nil {
		return nil, err
	}
	return out.Flairs, nil
}

// ValidateDestination checks that the destination exists and accepts
// link submissions. Consumed by the settings layer.
func (c *Client) ValidateDestination(ctx context.Context, token, destination string) error {
	var out apiResponse
	path := fmt.Sprintf("/api/destination?name=%s", destination)
	if err := c.get(ctx, token, path, &out); err != nil {
		return err
	}
	if out.Error != "" {
		return fmt.Errorf("destination %q rejected: %s", destination, out.Error)
	}
	return nil
}

// Authenticate exchanges credentials for a session token. Consumed by
// the settings layer; the cycles only ever see the resulting token.
func (c *Client) Authenticate(ctx context.Context, username, password string) (string, error) {
	payload := map[string]string{"username": username, "password": password}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "", "/api/authenticate", payload, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("authentication returned no token")
	}
	return out.Token, nil
}

func (c *Client) post(ctx context.Context, token, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, token, out)
}

func (c *Client) get(ctx context.Context, token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, token, out)
}

func (c *Client) do(req *http.Request, token string, out any) error {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("failed to close response body", "error", cerr)
		}
	}()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// Error payloads still decode: the duplicate signal arrives with a
	// non-2xx status and an error body.
	if err := json.Unmarshal(data, out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("endpoint status %d", resp.StatusCode)
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
