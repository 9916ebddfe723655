package discord

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestResolverCacheExpires(t *testing.T) {
	clk := clock.NewMock()
	r := NewResolver(nil, clk)
	r.store(r.guildCache, "g1", "Guild One")

	if got := r.GuildName("g1"); got != "Guild One" {
		t.Fatalf("cached name: want=%q got=%q", "Guild One", got)
	}
	clk.Add(cacheTTL + time.Second)
	// No session to refetch from, so an expired entry resolves to nothing.
	if got := r.GuildName("g1"); got != "" {
		t.Fatalf("expired name: want empty got=%q", got)
	}
}

func TestResolverEmptyID(t *testing.T) {
	r := NewResolver(nil, clock.NewMock())
	if r.UserName("") != "" || r.ChannelName("") != "" {
		t.Fatalf("expected empty names for empty ids")
	}
}
