package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/discord-voice-bridge/internal/audio"
	"github.com/discord-voice-bridge/internal/logging"
	"github.com/discord-voice-bridge/internal/relay"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Client talks to a bridge as a remote device: it logs in over the HTTP
// API and keeps the session cookie for the websocket.
type Client struct {
	base   *url.URL
	http   *http.Client
	dialer *websocket.Dialer
}

func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse bridge url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("bridge url must be http or https, got %q", u.Scheme)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	dialer := *websocket.DefaultDialer
	dialer.Jar = jar
	return &Client{
		base:   u,
		http:   &http.Client{Jar: jar},
		dialer: &dialer,
	}, nil
}

// Dialer returns the websocket dialer that carries the login cookie.
func (c *Client) Dialer() *websocket.Dialer { return c.dialer }

// Login authenticates against /api/login.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.String()+"/api/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		return fmt.Errorf("login failed: status %d %s", resp.StatusCode, out.Error)
	}
	return nil
}

// Connect opens the device websocket.
func (c *Client) Connect(ctx context.Context) (*Session, error) {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	ws, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	return &Session{ws: ws}, nil
}

// Handler receives what the bridge sends to the device.
type Handler interface {
	OnStatus(relay.Status)
	OnAudio(pcm []byte)
	OnError(message string)
}

// Session is an open device websocket.
type Session struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	muted   atomic.Bool
}

func (s *Session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.ws.WriteJSON(v)
}

// SendAudio ships one chunk of PCM16LE stereo audio unless muted.
func (s *Session) SendAudio(pcm []byte) error {
	if s.muted.Load() {
		return nil
	}
	return s.writeJSON(AudioMessage{Type: TypeAudioOut, Data: audio.EncodeTransport(pcm)})
}

func (s *Session) SetMuted(muted bool) error {
	s.muted.Store(muted)
	return s.writeJSON(MuteMessage{Type: TypeMute, Muted: muted})
}

func (s *Session) Muted() bool { return s.muted.Load() }

func (s *Session) LeaveVoice() error {
	return s.writeJSON(envelope{Type: TypeLeaveVoice})
}

func (s *Session) Close() error {
	s.writeMu.Lock()
	_ = s.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return s.ws.Close()
}

// Run reads frames until the socket closes or ctx ends.
func (s *Session) Run(ctx context.Context, h Handler) error {
	go func() {
		<-ctx.Done()
		_ = s.ws.Close()
	}()
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		s.dispatch(data, h)
	}
}

func (s *Session) dispatch(data []byte, h Handler) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logging.Warnw("bad frame from bridge", "error", err)
		return
	}
	switch env.Type {
	case TypeStatus:
		var msg StatusMessage
		if err := json.Unmarshal(data, &msg); err == nil {
			h.OnStatus(relay.Status{Connected: msg.Connected, ChannelName: msg.ChannelName, GuildName: msg.GuildName})
		}
	case TypeAudioIn:
		var msg AudioMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		pcm, err := audio.DecodeTransport(msg.Data)
		if err != nil {
			logging.Debugw("malformed audio from bridge", "error", err)
			return
		}
		h.OnAudio(pcm)
	case TypeError:
		var msg ErrorMessage
		if err := json.Unmarshal(data, &msg); err == nil {
			h.OnError(msg.Message)
		}
	}
}

// Renderer writes received audio to w after applying the volume. Status
// and error frames are logged.
type Renderer struct {
	W      io.Writer
	Volume *Volume

	mu sync.Mutex
}

func (r *Renderer) OnStatus(st relay.Status) {
	if st.Connected {
		logging.Infow("bridge connected to voice", "channel.name", st.ChannelName, "guild.name", st.GuildName)
		return
	}
	logging.Infow("bridge not in a voice channel")
}

func (r *Renderer) OnAudio(pcm []byte) {
	out, err := r.Volume.Apply(pcm)
	if err != nil {
		logging.Debugw("dropping unrenderable audio", "error", err)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.W.Write(out); err != nil {
		logging.Warnw("audio output write failed", "error", err)
	}
}

func (r *Renderer) OnError(message string) {
	logging.Errorw("bridge reported an error", "message", message)
}

// ChunkBytes is the PCM16LE stereo byte length of d milliseconds.
func ChunkBytes(ms int) int {
	return audio.SampleRate * ms / 1000 * audio.Channels * 2
}

// Capture reads fixed-size chunks from r and sends them until r is drained
// or ctx ends. A trailing partial chunk is sent as is.
func Capture(ctx context.Context, r io.Reader, chunkBytes int, send func([]byte) error) error {
	if chunkBytes <= 0 || chunkBytes%4 != 0 {
		return fmt.Errorf("chunk size must be a positive multiple of 4, got %d", chunkBytes)
	}
	for ctx.Err() == nil {
		buf := make([]byte, chunkBytes)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if n%4 != 0 {
				n -= n % 4
			}
			if n > 0 {
				if serr := send(buf[:n]); serr != nil {
					return serr
				}
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}
