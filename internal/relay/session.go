package relay

import "fmt"

// State is the relay session state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = StateIdle
	case "connecting":
		*s = StateConnecting
	case "connected":
		*s = StateConnected
	default:
		return fmt.Errorf("unknown relay state %q", b)
	}
	return nil
}

// session is the binding between one voice connection and the relay. The
// generation changes on every transition out of a connection so that
// callbacks from a replaced connection can be recognised and ignored.
type session struct {
	state     State
	gen       uint64
	conn      VoiceConn
	channel   ChannelInfo
	// receiving gates group audio toward the device; only a ready
	// connection delivers it.
	receiving bool
}

// begin moves to Connecting and returns the generation the pending join
// must match when it completes.
func (s *session) begin() uint64 {
	s.gen++
	s.state = StateConnecting
	s.conn = nil
	s.channel = ChannelInfo{}
	s.receiving = false
	return s.gen
}

func (s *session) bind(conn VoiceConn) {
	s.conn = conn
	s.channel = conn.Channel()
}

func (s *session) ready() {
	s.state = StateConnected
	s.receiving = true
}

// reset returns to Idle and hands back the connection the caller must
// destroy, if any.
func (s *session) reset() VoiceConn {
	conn := s.conn
	s.gen++
	s.state = StateIdle
	s.conn = nil
	s.channel = ChannelInfo{}
	s.receiving = false
	return conn
}

func (s *session) current(gen uint64) bool { return s.gen == gen }

func (s *session) status() Status {
	if s.state != StateConnected {
		return Status{Connected: false}
	}
	return Status{
		Connected:   true,
		ChannelName: s.channel.ChannelName,
		GuildName:   s.channel.GuildName,
	}
}

// Snapshot is a point-in-time view of the relay.
type Snapshot struct {
	State         State       `json:"state"`
	Channel       ChannelInfo `json:"channel"`
	DeviceID      string      `json:"deviceId,omitempty"`
	QueueDepth    int         `json:"queueDepth"`
	Playing       bool        `json:"playing"`
	ActiveStreams int         `json:"activeStreams"`
}
