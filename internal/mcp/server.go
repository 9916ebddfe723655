package mcp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/discord-voice-bridge/internal/logging"
	"github.com/discord-voice-bridge/internal/relay"
)

const (
	ToolRelayStatus = "relay_status"
	ToolLeaveVoice  = "leave_voice"
)

// Relay is what the MCP tools can see and do.
type Relay interface {
	Status(ctx context.Context) (relay.Snapshot, error)
	Leave(ctx context.Context) (bool, error)
}

type noArgs struct{}

// NewServer builds an MCP server exposing the relay tools.
func NewServer(r Relay, version string) *sdk.Server {
	server := sdk.NewServer(&sdk.Implementation{Name: "discord-voice-bridge", Version: version}, nil)

	sdk.AddTool(server, &sdk.Tool{
		Name:        ToolRelayStatus,
		Description: "Report the voice relay state: channel, attached device, queue depth and open speaker streams",
	}, func(ctx context.Context, req *sdk.CallToolRequest, _ noArgs) (*sdk.CallToolResult, any, error) {
		snap, err := r.Status(ctx)
		if err != nil {
			return nil, nil, err
		}
		b, err := json.Marshal(snap)
		if err != nil {
			return nil, nil, err
		}
		return textResult(string(b)), nil, nil
	})

	sdk.AddTool(server, &sdk.Tool{
		Name:        ToolLeaveVoice,
		Description: "Disconnect the bot from its voice channel",
	}, func(ctx context.Context, req *sdk.CallToolRequest, _ noArgs) (*sdk.CallToolResult, any, error) {
		active, err := r.Leave(ctx)
		if err != nil {
			return nil, nil, err
		}
		if !active {
			return textResult("not in a voice channel"), nil, nil
		}
		logging.Infow("voice channel left via mcp")
		return textResult("left voice channel"), nil, nil
	})

	return server
}

func textResult(text string) *sdk.CallToolResult {
	return &sdk.CallToolResult{Content: []sdk.Content{&sdk.TextContent{Text: text}}}
}

// Handler accepts MCP sessions over websocket.
func Handler(ctx context.Context, server *sdk.Server) http.Handler {
	upgrader := websocket.Upgrader{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warnw("mcp ws upgrade failed", "error", err)
			return
		}
		go func() {
			session, err := server.Connect(ctx, NewWebSocketTransport(conn), nil)
			if err != nil {
				logging.Warnw("mcp server connect error", "error", err)
				_ = conn.Close()
				return
			}
			if err := session.Wait(); err != nil {
				logging.Debugw("mcp session ended", "error", err)
			} else {
				logging.Debugw("mcp session ended")
			}
		}()
	})
}
