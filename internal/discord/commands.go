package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/discord-voice-bridge/internal/logging"
	"github.com/discord-voice-bridge/internal/relay"
)

const (
	replyNotInVoice = "❌ You need to be in a voice channel for me to join!"
	replyJoinFailed = "❌ Failed to join the voice channel."
	replyJoinedFmt  = "✅ Joined **%s**! Your friend can now connect through the web interface."
)

// Joiner is the part of the relay the chat commands drive.
type Joiner interface {
	Join(ctx context.Context, target relay.ChannelTarget) (relay.ChannelInfo, error)
}

// chatEnv is what a command needs from the Discord session.
type chatEnv interface {
	SelfID() string
	UserVoiceChannel(guildID, userID string) string
	Reply(m *discordgo.Message, content string) error
}

// Commands answers mentions of the bot by joining the author's voice
// channel.
type Commands struct {
	joiner      Joiner
	joinTimeout time.Duration
}

func NewCommands(j Joiner, joinTimeout time.Duration) *Commands {
	if joinTimeout <= 0 {
		joinTimeout = 15 * time.Second
	}
	return &Commands{joiner: j, joinTimeout: joinTimeout}
}

// HandleMessageCreate is registered with discordgo.Session.AddHandler.
func (c *Commands) HandleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil {
		return
	}
	c.handle(sessionEnv{s}, m.Message)
}

func (c *Commands) handle(env chatEnv, m *discordgo.Message) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !mentions(m, env.SelfID()) {
		return
	}
	fields := append(logging.UserFields(m.Author.ID, m.Author.Username), logging.GuildFields(m.GuildID, "")...)

	channelID := env.UserVoiceChannel(m.GuildID, m.Author.ID)
	if channelID == "" {
		logging.Infow("join requested from outside a voice channel", fields...)
		c.reply(env, m, replyNotInVoice)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.joinTimeout)
	defer cancel()
	info, err := c.joiner.Join(ctx, relay.ChannelTarget{GuildID: m.GuildID, ChannelID: channelID})
	if err != nil {
		logging.Errorw("error joining voice channel", append(fields, "channel.id", channelID, "error", err)...)
		c.reply(env, m, replyJoinFailed)
		return
	}
	name := info.ChannelName
	if name == "" {
		name = channelID
	}
	c.reply(env, m, fmt.Sprintf(replyJoinedFmt, name))
}

func (c *Commands) reply(env chatEnv, m *discordgo.Message, content string) {
	if err := env.Reply(m, content); err != nil {
		logging.Warnw("reply failed", "channel.id", m.ChannelID, "error", err)
	}
}

func mentions(m *discordgo.Message, userID string) bool {
	if userID == "" {
		return false
	}
	for _, u := range m.Mentions {
		if u != nil && u.ID == userID {
			return true
		}
	}
	return false
}

type sessionEnv struct{ s *discordgo.Session }

func (e sessionEnv) SelfID() string {
	if e.s.State == nil || e.s.State.User == nil {
		return ""
	}
	return e.s.State.User.ID
}

func (e sessionEnv) UserVoiceChannel(guildID, userID string) string {
	if e.s.State == nil {
		return ""
	}
	vs, err := e.s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

func (e sessionEnv) Reply(m *discordgo.Message, content string) error {
	_, err := e.s.ChannelMessageSendReply(m.ChannelID, content, m.Reference())
	return err
}
