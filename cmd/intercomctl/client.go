package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/softwaresalt/agent-intercom/internal/ipc"
)

// client is a minimal synchronous IPC client: one Unix domain socket
// connection per request, a newline-terminated JSON request frame
// out, a newline-terminated JSON response frame back. The daemon's
// dispatcher is one request at a time per connection, so there is no
// connection pooling to manage.
type client struct {
	socketPath string
	authToken  string
	timeout    time.Duration
}

func newClient(socketPath, authToken string) *client {
	return &client{socketPath: socketPath, authToken: authToken, timeout: 10 * time.Second}
}

func (c *client) send(req ipc.Request) (*ipc.Response, error) {
	if c.authToken != "" {
		req.AuthToken = &c.authToken
	}

	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon at %s: %w", c.socketPath, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp ipc.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}
