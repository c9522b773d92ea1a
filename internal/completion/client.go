package completion

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
)

// Payload is the context window sent to the completion backend.
type Payload struct {
	FileName         string `json:"fileName"`
	Code             string `json:"code"`
	CurrentLine      string `json:"currentLine"`
	PreviousLines    string `json:"previousLines"`
	TextBeforeCursor string `json:"textBeforeCursor"`
	TextAfterCursor  string `json:"textAfterCursor"`
	NextLines        string `json:"nextLines"`
	LineNumber       int    `json:"lineNumber"`
}

type Response struct {
	Suggestion string `json:"suggestion"`
}

var ErrUpstream = errors.New("completion upstream error")

// Client posts payloads to a completion endpoint.
type Client struct {
	url     string
	httpCli *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		panic("completion URL is required")
	}
	return &Client{
		url: strings.TrimRight(url, "/"),
		httpCli: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Complete returns the suggestion for p. An empty string means there is no suggestion.
// Canceling ctx aborts the request.
func (c *Client) Complete(ctx context.Context, p Payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	return out.Suggestion, nil
}
