// Package client provides an HTTP client for the sandia-server API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sandia-project/sandia-go/internal/analysis"
	"github.com/sandia-project/sandia-go/internal/consensus"
	"github.com/sandia-project/sandia-go/internal/engine"
	"github.com/sandia-project/sandia-go/internal/metrics"
)

// Client talks to a running sandia-server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client. If baseURL is empty, uses SANDIA_SERVER_URL or the
// local default. Timeout is generous because /api/analyze blocks until the
// collection deadline.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("SANDIA_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8181"
	}

	timeout := 5 * time.Minute
	if t := os.Getenv("SANDIA_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// AnalyzeRequest mirrors the server's POST /api/analyze payload.
type AnalyzeRequest struct {
	ArtifactID string   `json:"artifactId"`
	S3Key      string   `json:"s3Key,omitempty"`
	FileName   string   `json:"fileName,omitempty"`
	Engines    []string `json:"engines,omitempty"`
	Timeout    string   `json:"timeout,omitempty"`
}

// AnalyzeResponse mirrors the server's analyze response.
type AnalyzeResponse struct {
	ArtifactID string                            `json:"artifactId"`
	Consensus  *consensus.Result                 `json:"consensus"`
	JobStates  map[engine.Kind]analysis.JobState `json:"jobStates"`
}

// StatusResponse mirrors the server's status and watch payloads.
type StatusResponse struct {
	ArtifactID string                            `json:"artifactId"`
	JobStates  map[engine.Kind]analysis.JobState `json:"jobStates"`
}

// Analyze submits an artifact and blocks until the server's collection
// deadline produces a consensus.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	var resp AnalyzeResponse
	if err := c.post(ctx, "/api/analyze", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches the current job states for an artifact.
func (c *Client) Status(ctx context.Context, artifactID string) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.get(ctx, "/api/status/"+url.PathEscape(artifactID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats fetches the server's operation metrics.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.get(ctx, "/api/stats", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Watch streams job-state snapshots over a websocket, calling fn for each
// until the server closes the stream or ctx is cancelled.
func (c *Client) Watch(ctx context.Context, artifactID string, fn func(StatusResponse) error) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/api/watch/" + url.PathEscape(artifactID)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	// Unblock ReadJSON when the caller gives up.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var status StatusResponse
		if err := conn.ReadJSON(&status); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || isClosedConn(err) {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}
		if err := fn(status); err != nil {
			return err
		}
	}
}

// isClosedConn reports whether the error is the server simply hanging up
// after the final snapshot.
func isClosedConn(err error) bool {
	return err == io.EOF || strings.Contains(err.Error(), "use of closed network connection") ||
		websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server error: %s", apiErr.Error)
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, string(body))
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
