package device

// Message types exchanged with a device as JSON text frames. Every frame
// carries a "type" field.
const (
	// device -> bridge
	TypeAudioOut   = "audio-out"
	TypeLeaveVoice = "leave-voice"
	TypeMute       = "mute"

	// bridge -> device
	TypeStatus  = "status"
	TypeAudioIn = "audio-in"
	TypeError   = "error"
)

type envelope struct {
	Type string `json:"type"`
}

// AudioMessage carries base64 PCM16LE stereo 48 kHz audio in either
// direction.
type AudioMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type MuteMessage struct {
	Type  string `json:"type"`
	Muted bool   `json:"muted"`
}

type StatusMessage struct {
	Type        string `json:"type"`
	Connected   bool   `json:"connected"`
	ChannelName string `json:"channelName,omitempty"`
	GuildName   string `json:"guildName,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
