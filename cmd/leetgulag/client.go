package main

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

	"github.com/verte-zerg/leetgulag/internal/bridge"
	"github.com/verte-zerg/leetgulag/internal/model"
)

var errDaemonUnreachable = errors.New("daemon unreachable")

// daemonClient talks to a running daemon over its HTTP API.
type daemonClient struct {
	base string
	http *http.Client
}

func newDaemonClient(listen string) *daemonClient {
	base := listen
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &daemonClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *daemonClient) provision(ctx context.Context) (model.ProblemStatus, error) {
	var status model.ProblemStatus
	err := c.post(ctx, "/v1/messages", model.Message{Action: model.ActionProvision}, &status)
	return status, err
}

func (c *daemonClient) setMode(ctx context.Context, mode model.Mode) error {
	return c.post(ctx, "/v1/mode", bridge.ModeRequest{Mode: string(mode)}, nil)
}

func (c *daemonClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w at %s: %w", errDaemonUnreachable, c.base, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort close.
			_ = cerr
		}
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		if derr := json.NewDecoder(resp.Body).Decode(&e); derr == nil && e.Error != "" {
			return fmt.Errorf("daemon: %s", e.Error)
		}
		return fmt.Errorf("daemon: unexpected status %s", resp.Status)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
