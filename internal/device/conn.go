package device

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/discord-voice-bridge/internal/logging"
	"github.com/discord-voice-bridge/internal/relay"
)

var (
	ErrBackpressure = errors.New("device send buffer full")
	ErrClosed       = errors.New("device connection closed")
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Relay is the part of the relay controller a device connection drives.
type Relay interface {
	AttachDevice(relay.Device) bool
	DetachDevice(relay.Device) bool
	OnDeviceAudio(payload string) error
	OnDeviceMuteToggle(muted bool)
	RequestLeave() bool
}

type Options struct {
	// SendBuffer is how many outbound frames may wait for the socket before
	// further sends are dropped.
	SendBuffer int
	// MaxMessageBytes limits inbound frame size.
	MaxMessageBytes int64
}

// Conn is one device websocket. It implements relay.Device; sends never
// block and fail with ErrBackpressure when the socket falls behind.
type Conn struct {
	id   string
	user string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewConn(ws *websocket.Conn, user string, sendBuffer int) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Conn{
		id:   uuid.NewString(),
		user: user,
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) User() string { return c.user }

func (c *Conn) SendStatus(st relay.Status) error {
	return c.sendJSON(StatusMessage{
		Type:        TypeStatus,
		Connected:   st.Connected,
		ChannelName: st.ChannelName,
		GuildName:   st.GuildName,
	})
}

func (c *Conn) SendAudio(payload string) error {
	return c.sendJSON(AudioMessage{Type: TypeAudioIn, Data: payload})
}

func (c *Conn) SendError(message string) error {
	return c.sendJSON(ErrorMessage{Type: TypeError, Message: message})
}

func (c *Conn) sendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.TrySend(b)
}

// TrySend queues one text frame without blocking.
func (c *Conn) TrySend(b []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBackpressure
	}
}

func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// Serve attaches the connection to r and relays frames until the socket
// closes or ctx ends. The device is detached before Serve returns.
func Serve(ctx context.Context, c *Conn, r Relay, opts Options) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	fields := logging.DeviceFields(c.id, c.user)
	ctx = logging.WithFields(ctx, fields...)

	logging.InfowCtx(ctx, "device connected")
	r.AttachDevice(c)
	defer func() {
		r.DetachDevice(c)
		c.Close()
		logging.InfowCtx(ctx, "device disconnected")
	}()

	go c.writePump(ctx)
	go func() {
		<-ctx.Done()
		c.Close()
	}()
	c.readPump(ctx, r, opts.MaxMessageBytes)
}

func (c *Conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Debugw("device write failed", "device.id", c.id, "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Conn) readPump(ctx context.Context, r Relay, maxBytes int64) {
	if maxBytes > 0 {
		c.ws.SetReadLimit(maxBytes)
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.WarnwCtx(ctx, "device read error", "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		c.dispatch(ctx, r, data)
	}
}

func (c *Conn) dispatch(ctx context.Context, r Relay, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logging.WarnwCtx(ctx, "bad device frame", "error", err)
		return
	}
	switch env.Type {
	case TypeAudioOut:
		var msg AudioMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.WarnwCtx(ctx, "bad audio frame", "error", err)
			return
		}
		if err := r.OnDeviceAudio(msg.Data); err != nil {
			logging.WarnwCtx(ctx, "device audio rejected", "error", err)
		}
	case TypeMute:
		var msg MuteMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.WarnwCtx(ctx, "bad mute frame", "error", err)
			return
		}
		r.OnDeviceMuteToggle(msg.Muted)
	case TypeLeaveVoice:
		logging.InfowCtx(ctx, "device asked to leave voice")
		r.RequestLeave()
	default:
		logging.WarnwCtx(ctx, "unknown device frame", "type", env.Type)
	}
}

// Reject tells an unauthenticated peer why it is being dropped and closes
// the socket.
func Reject(ws *websocket.Conn, reason error) {
	b, _ := json.Marshal(ErrorMessage{Type: TypeError, Message: reason.Error()})
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = ws.WriteMessage(websocket.TextMessage, b)
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason.Error()))
	_ = ws.Close()
}
