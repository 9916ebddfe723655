package discord

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"

	"github.com/discord-voice-bridge/internal/relay"
)

type fakeEnv struct {
	voice   map[string]string
	replies []string
}

func (e *fakeEnv) SelfID() string { return "bot" }

func (e *fakeEnv) UserVoiceChannel(guildID, userID string) string { return e.voice[userID] }

func (e *fakeEnv) Reply(m *discordgo.Message, content string) error {
	e.replies = append(e.replies, content)
	return nil
}

type fakeJoiner struct {
	targets []relay.ChannelTarget
	err     error
}

func (j *fakeJoiner) Join(ctx context.Context, target relay.ChannelTarget) (relay.ChannelInfo, error) {
	j.targets = append(j.targets, target)
	if j.err != nil {
		return relay.ChannelInfo{}, j.err
	}
	return relay.ChannelInfo{GuildID: target.GuildID, ChannelID: target.ChannelID, ChannelName: "General"}, nil
}

func mention(authorID string, bot bool, mentioned ...string) *discordgo.Message {
	m := &discordgo.Message{
		ChannelID: "text",
		GuildID:   "g1",
		Author:    &discordgo.User{ID: authorID, Username: authorID, Bot: bot},
	}
	for _, id := range mentioned {
		m.Mentions = append(m.Mentions, &discordgo.User{ID: id})
	}
	return m
}

func TestMentionJoinsAuthorsChannel(t *testing.T) {
	env := &fakeEnv{voice: map[string]string{"alice": "vc1"}}
	j := &fakeJoiner{}
	NewCommands(j, 0).handle(env, mention("alice", false, "bot"))

	assert.Equal(t, []relay.ChannelTarget{{GuildID: "g1", ChannelID: "vc1"}}, j.targets)
	assert.Equal(t, []string{"✅ Joined **General**! Your friend can now connect through the web interface."}, env.replies)
}

func TestMentionOutsideVoiceChannel(t *testing.T) {
	env := &fakeEnv{}
	j := &fakeJoiner{}
	NewCommands(j, 0).handle(env, mention("alice", false, "bot"))

	assert.Empty(t, j.targets)
	assert.Equal(t, []string{replyNotInVoice}, env.replies)
}

func TestMentionJoinFailure(t *testing.T) {
	env := &fakeEnv{voice: map[string]string{"alice": "vc1"}}
	j := &fakeJoiner{err: errors.New("no permission")}
	NewCommands(j, 0).handle(env, mention("alice", false, "bot"))

	assert.Equal(t, []string{replyJoinFailed}, env.replies)
}

func TestIgnoredMessages(t *testing.T) {
	env := &fakeEnv{voice: map[string]string{"alice": "vc1", "other-bot": "vc1"}}
	j := &fakeJoiner{}
	c := NewCommands(j, 0)

	c.handle(env, mention("other-bot", true, "bot"))
	c.handle(env, mention("alice", false, "someone-else"))
	c.handle(env, mention("alice", false))

	assert.Empty(t, j.targets)
	assert.Empty(t, env.replies)
}
