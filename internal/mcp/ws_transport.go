package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// websocketTransport carries MCP over the bridge's /mcp/ws socket. Each
// JSON-RPC message travels alone in one text frame, with no batching and
// no newline delimiting, so a frame boundary is a message boundary. The
// socket is already authenticated by the login session when it reaches
// here. Handler wraps the server side and Client.ConnectWebSocket the
// device CLI side.
type websocketTransport struct{ ws *websocket.Conn }

// NewWebSocketTransport adapts an upgraded connection to an MCP transport.
// The transport owns ws from then on and closes it with the session.
func NewWebSocketTransport(ws *websocket.Conn) sdk.Transport {
	return &websocketTransport{ws: ws}
}

func (t *websocketTransport) Connect(context.Context) (sdk.Connection, error) {
	return &websocketConn{ws: t.ws}, nil
}

type websocketConn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *websocketConn) Read(ctx context.Context) (jsonrpc.Message, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = c.ws.SetReadDeadline(dl)
		defer c.ws.SetReadDeadline(time.Time{})
	}
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return jsonrpc.DecodeMessage(data)
}

// Write is safe for concurrent use; gorilla allows a single writer.
func (c *websocketConn) Write(ctx context.Context, msg jsonrpc.Message) error {
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		_ = c.ws.SetWriteDeadline(dl)
		defer c.ws.SetWriteDeadline(time.Time{})
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *websocketConn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.ws.Close() })
	return c.closeErr
}

// SessionID is empty: the websocket itself scopes the session.
func (c *websocketConn) SessionID() string { return "" }
