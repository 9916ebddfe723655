package discord

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/bwmarrin/discordgo"
)

// cacheTTL controls how long a cached name is valid.
var cacheTTL = 5 * time.Minute

// NameResolver turns Discord ids into display names for logs and status.
type NameResolver interface {
	UserName(userID string) string
	GuildName(guildID string) string
	ChannelName(channelID string) string
}

// Resolver looks names up in the session state first and falls back to REST.
// Results are cached for cacheTTL.
type Resolver struct {
	s     *discordgo.Session
	clock clock.Clock

	mu           sync.Mutex
	userCache    map[string]cacheEntry
	guildCache   map[string]cacheEntry
	channelCache map[string]cacheEntry
}

type cacheEntry struct {
	val    string
	expiry time.Time
}

func NewResolver(s *discordgo.Session, clk clock.Clock) *Resolver {
	if clk == nil {
		clk = clock.New()
	}
	return &Resolver{
		s:            s,
		clock:        clk,
		userCache:    make(map[string]cacheEntry),
		guildCache:   make(map[string]cacheEntry),
		channelCache: make(map[string]cacheEntry),
	}
}

func (r *Resolver) lookup(m map[string]cacheEntry, id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := m[id]
	if !ok {
		return "", false
	}
	if r.clock.Now().Before(e.expiry) {
		return e.val, true
	}
	delete(m, id)
	return "", false
}

func (r *Resolver) store(m map[string]cacheEntry, id, val string) {
	r.mu.Lock()
	m[id] = cacheEntry{val: val, expiry: r.clock.Now().Add(cacheTTL)}
	r.mu.Unlock()
}

// cached wraps fetch with the cache for one kind of id.
func (r *Resolver) cached(m map[string]cacheEntry, id string, fetch func() string) string {
	if id == "" {
		return ""
	}
	if v, ok := r.lookup(m, id); ok {
		return v
	}
	if r.s == nil {
		return ""
	}
	v := fetch()
	if v != "" {
		r.store(m, id, v)
	}
	return v
}

func (r *Resolver) UserName(userID string) string {
	return r.cached(r.userCache, userID, func() string {
		if u, err := r.s.User(userID); err == nil && u != nil {
			return u.Username
		}
		return ""
	})
}

func (r *Resolver) GuildName(guildID string) string {
	return r.cached(r.guildCache, guildID, func() string {
		if r.s.State != nil {
			if g, err := r.s.State.Guild(guildID); err == nil && g != nil {
				return g.Name
			}
		}
		if g, err := r.s.Guild(guildID); err == nil && g != nil {
			return g.Name
		}
		return ""
	})
}

func (r *Resolver) ChannelName(channelID string) string {
	return r.cached(r.channelCache, channelID, func() string {
		if r.s.State != nil {
			if c, err := r.s.State.Channel(channelID); err == nil && c != nil {
				return c.Name
			}
		}
		if c, err := r.s.Channel(channelID); err == nil && c != nil {
			return c.Name
		}
		return ""
	})
}

// NoopResolver returns empty names. Useful for tests or when REST lookups
// should be avoided.
type NoopResolver struct{}

func (NoopResolver) UserName(string) string    { return "" }
func (NoopResolver) GuildName(string) string   { return "" }
func (NoopResolver) ChannelName(string) string { return "" }
