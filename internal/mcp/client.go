package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/discord-voice-bridge/internal/relay"
)

// Client calls the bridge's relay tools over websocket.
type Client struct {
	client  *sdk.Client
	session *sdk.ClientSession
}

func NewClient(name, version string) *Client {
	return &Client{client: sdk.NewClient(&sdk.Implementation{Name: name, Version: version}, nil)}
}

// wsURL maps http(s) bridge addresses onto the websocket endpoint.
func wsURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/mcp/ws") {
		u.Path = strings.TrimRight(u.Path, "/") + "/mcp/ws"
	}
	return u.String(), nil
}

// ConnectWebSocket dials the bridge and opens an MCP session. The bridge
// only accepts logged-in sessions, so dialer should carry the session
// cookie; nil uses the default dialer.
func (c *Client) ConnectWebSocket(ctx context.Context, rawurl string, dialer *websocket.Dialer) error {
	target, err := wsURL(rawurl)
	if err != nil {
		return err
	}
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return err
	}
	return c.connect(ctx, NewWebSocketTransport(conn))
}

func (c *Client) connect(ctx context.Context, t sdk.Transport) error {
	sess, err := c.client.Connect(ctx, t, nil)
	if err != nil {
		return err
	}
	c.session = sess
	return nil
}

func (c *Client) call(ctx context.Context, tool string) (string, error) {
	if c.session == nil {
		return "", errors.New("mcp client not connected")
	}
	res, err := c.session.CallTool(ctx, &sdk.CallToolParams{Name: tool, Arguments: map[string]any{}})
	if err != nil {
		return "", err
	}
	var text strings.Builder
	for _, content := range res.Content {
		if tc, ok := content.(*sdk.TextContent); ok {
			text.WriteString(tc.Text)
		}
	}
	if res.IsError {
		return "", fmt.Errorf("%s failed: %s", tool, text.String())
	}
	return text.String(), nil
}

// Status fetches the relay snapshot.
func (c *Client) Status(ctx context.Context) (relay.Snapshot, error) {
	var snap relay.Snapshot
	text, err := c.call(ctx, ToolRelayStatus)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal([]byte(text), &snap); err != nil {
		return snap, fmt.Errorf("decode relay status: %w", err)
	}
	return snap, nil
}

// Leave asks the bridge to leave its voice channel and returns the tool's
// reply.
func (c *Client) Leave(ctx context.Context) (string, error) {
	return c.call(ctx, ToolLeaveVoice)
}

func (c *Client) Close() error {
	if c.session == nil {
		return nil
	}
	return c.session.Close()
}
