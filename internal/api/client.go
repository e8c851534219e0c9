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
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	// DefaultBaseURL matches the backend's development address.
	DefaultBaseURL = "http://localhost:8000"

	requestIDHeader = "X-Request-ID"
	errorBodyLimit  = 512
)

// ErrRequestFailed is matched by every transport or non-success failure.
var ErrRequestFailed = errors.New("request failed")

// StatusError reports a non-2xx response from the backend.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: backend returned %d (%s)", e.Op, e.Status, e.Body)
}

// Is lets errors.Is(err, ErrRequestFailed) match status failures.
func (e *StatusError) Is(target error) bool {
	return target == ErrRequestFailed
}

// Config describes how to reach the backend.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client talks to the paper/graph/chat service.
type Client struct {
	base   string
	client *http.Client
	logger *log.Logger
}

// New builds a Client. A zero Timeout means requests never time out on their own.
func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{
		base:   base,
		client: pickHTTPClient(cfg.HTTPClient, cfg.Timeout),
		logger: logger,
	}
}

func pickHTTPClient(custom *http.Client, timeout time.Duration) *http.Client {
	if custom != nil {
		return custom
	}
	return &http.Client{Timeout: timeout}
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string {
	return c.base
}

// ListPapers fetches every paper in the workspace.
func (c *Client) ListPapers(ctx context.Context) ([]Paper, error) {
	var papers []Paper
	if err := c.do(ctx, "list papers", http.MethodGet, "/papers", nil, &papers); err != nil {
		return nil, err
	}
	if papers == nil {
		papers = []Paper{}
	}
	return papers, nil
}

// Graph fetches the cytoscape element set.
func (c *Client) Graph(ctx context.Context) (Graph, error) {
	var graph Graph
	if err := c.do(ctx, "get graph", http.MethodGet, "/graph/cytoscape", nil, &graph); err != nil {
		return Graph{}, err
	}
	return graph, nil
}

// SendChat posts a chat message.
func (c *Client) SendChat(ctx context.Context, message string) (ChatResponse, error) {
	var resp ChatResponse
	payload := map[string]string{"message": message}
	if err := c.do(ctx, "send chat", http.MethodPost, "/chat", payload, &resp); err != nil {
		return ChatResponse{}, err
	}
	return resp, nil
}

// ChatHistory fetches the server-side transcript.
func (c *Client) ChatHistory(ctx context.Context) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	if err := c.do(ctx, "get chat history", http.MethodGet, "/chat/history", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ClearChatHistory deletes the server-side transcript.
func (c *Client) ClearChatHistory(ctx context.Context) error {
	return c.do(ctx, "clear chat history", http.MethodDelete, "/chat/history", nil, nil)
}

type selectRequest struct {
	ArxivID       string `json:"arxiv_id"`
	SourcePaperID string `json:"source_paper_id,omitempty"`
}

// SelectPaper resolves a reference (arXiv id or free text) into a paper, optionally
// linking it to the paper it was cited from.
func (c *Client) SelectPaper(ctx context.Context, reference, sourcePaperID string) (ChatResponse, error) {
	var resp ChatResponse
	payload := selectRequest{ArxivID: reference, SourcePaperID: sourcePaperID}
	if err := c.do(ctx, "select paper", http.MethodPost, "/papers/select", payload, &resp); err != nil {
		return ChatResponse{}, err
	}
	return resp, nil
}

// DeletePaper removes a paper and its edges on the backend.
func (c *Client) DeletePaper(ctx context.Context, paperID string) error {
	return c.do(ctx, "delete paper", http.MethodDelete, "/papers/"+url.PathEscape(paperID), nil, nil)
}

// DeleteEdge removes a single edge.
func (c *Client) DeleteEdge(ctx context.Context, edgeID string) error {
	return c.do(ctx, "delete edge", http.MethodDelete, "/edges/"+url.PathEscape(edgeID), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "op", op, "request_id", requestID, "err", err)
		return fmt.Errorf("%s: %w: %w", op, ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("request done", "op", op, "status", resp.StatusCode, "request_id", requestID, "duration", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w: %w", op, ErrRequestFailed, err)
	}
	return nil
}
