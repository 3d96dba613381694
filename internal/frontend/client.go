package frontend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/samcharles93/streamgen/internal/api"
	"github.com/samcharles93/streamgen/internal/logger"
)

// Backend reads line streams from the generation service.
type Backend struct {
	base   *url.URL
	client *http.Client
}

// NewBackend returns a client for the service at rawURL. A nil client uses
// http.DefaultClient.
func NewBackend(rawURL string, client *http.Client) (*Backend, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", rawURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Backend{base: u, client: client}, nil
}

// GenerateURL is the backend URL streaming a continuation of message.
func (b *Backend) GenerateURL(message string) string {
	return strings.TrimRight(b.base.String(), "/") + "/generate?message=" + url.QueryEscape(message)
}

// Lines requests a generation and calls emit with each line of the
// response, trimmed of surrounding whitespace. It returns the backend's
// error when the service answers with a JSON error object or reports a
// failure in the stream trailer.
func (b *Backend) Lines(ctx context.Context, message string, emit func(string) error) error {
	target := b.GenerateURL(message)
	logger.FromContext(ctx).Debug("requesting backend", "url", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create backend request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp); err != nil {
		return err
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if emitErr := emit(strings.TrimSpace(line)); emitErr != nil {
				return emitErr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read backend stream: %w", err)
		}
	}
	if msg := resp.Trailer.Get(api.HeaderStreamError); msg != "" {
		return fmt.Errorf("backend stream failed: %s", msg)
	}
	return nil
}

func checkResponse(resp *http.Response) error {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if resp.StatusCode == http.StatusOK && mediaType != "application/json" {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Error != "":
			return fmt.Errorf("backend error: %s", payload.Error)
		case payload.Detail != "":
			return fmt.Errorf("backend rejected request (%d): %s", resp.StatusCode, payload.Detail)
		}
	}
	return fmt.Errorf("backend returned %s", resp.Status)
}
