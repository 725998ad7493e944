package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
)

const webAPIBase = "https://slack.com/api"

// webAPIClient wraps the small slice of the Slack Web API this
// adapter needs (chat.postMessage, chat.update, views.open,
// apps.connections.open), grounded on original_source/src/slack/client.rs's
// SlackService methods of the same names. No Slack SDK exists in the
// retrieval pack, so requests are built and sent directly over
// net/http rather than through a generated client.
type webAPIClient struct {
	httpClient *http.Client
	botToken   string
	appToken   string

	// baseURL defaults to webAPIBase; tests point it at a local server.
	baseURL string
}

func newWebAPIClient(botToken, appToken string) *webAPIClient {
	return &webAPIClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		botToken:   botToken,
		appToken:   appToken,
		baseURL:    webAPIBase,
	}
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
	URL   string `json:"url,omitempty"`
}

func (c *webAPIClient) call(ctx context.Context, method, token string, body any) (*apiResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, ierrors.WrapIpc(err, "failed to encode %s request", method)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(data))
	if err != nil {
		return nil, ierrors.WrapIpc(err, "failed to build %s request", method)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ierrors.WrapIpc(err, "failed to call slack %s", method)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ierrors.WrapIpc(err, "failed to read slack %s response", method)
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, ierrors.WrapIpc(err, "failed to decode slack %s response", method)
	}
	if !out.OK {
		return nil, ierrors.Ipc("slack %s failed: %s", method, out.Error)
	}
	return &out, nil
}

// postMessage posts a new message and returns its timestamp.
func (c *webAPIClient) postMessage(ctx context.Context, channel, text string, blocks []map[string]any, threadTS string) (string, error) {
	body := map[string]any{"channel": channel, "text": text}
	if len(blocks) > 0 {
		body["blocks"] = blocks
	}
	if threadTS != "" {
		body["thread_ts"] = threadTS
	}
	resp, err := c.call(ctx, "chat.postMessage", c.botToken, body)
	if err != nil {
		return "", err
	}
	return resp.TS, nil
}

// updateMessage replaces an existing message's blocks (used to swap
// interactive buttons for a static status line, per FR-022).
func (c *webAPIClient) updateMessage(ctx context.Context, channel, ts string, blocks []map[string]any) error {
	body := map[string]any{"channel": channel, "ts": ts, "blocks": blocks}
	_, err := c.call(ctx, "chat.update", c.botToken, body)
	return err
}

// openModal opens a modal view in response to a trigger_id.
func (c *webAPIClient) openModal(ctx context.Context, triggerID string, view map[string]any) error {
	body := map[string]any{"trigger_id": triggerID, "view": view}
	_, err := c.call(ctx, "views.open", c.botToken, body)
	return err
}

// connectionsOpen exchanges the app-level token for a fresh Socket
// Mode WebSocket URL.
func (c *webAPIClient) connectionsOpen(ctx context.Context) (string, error) {
	resp, err := c.call(ctx, "apps.connections.open", c.appToken, map[string]any{})
	if err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("apps.connections.open returned no url")
	}
	return resp.URL, nil
}
