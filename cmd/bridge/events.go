package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/discord-voice-bridge/internal/logging"
)

// sensitiveKeys lists JSON keys which should never be logged in plaintext.
var sensitiveKeys = map[string]struct{}{
	"token": {}, "session_id": {}, "access_token": {}, "refresh_token": {},
	"authorization": {}, "password": {}, "email": {}, "client_secret": {},
}

// redactAny replaces the values of sensitive keys in a decoded JSON value.
// Maps and slices are modified in place.
func redactAny(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		for k, val := range vv {
			if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
				vv[k] = "<redacted>"
				continue
			}
			vv[k] = redactAny(val)
		}
		return vv
	case []any:
		for i, it := range vv {
			vv[i] = redactAny(it)
		}
		return vv
	default:
		return v
	}
}

// eventPayload renders a raw gateway payload for the debug log, redacted
// and cut to maxBytes.
func eventPayload(raw []byte, maxBytes int) (payload string, ids map[string]string) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "<raw data omitted>", nil
	}
	v = redactAny(v)
	if m, ok := v.(map[string]any); ok {
		ids = make(map[string]string)
		for _, k := range []string{"guild_id", "channel_id", "user_id"} {
			if s, ok := m[k].(string); ok && s != "" {
				ids[k] = s
			}
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "<unencodable payload>", ids
	}
	if maxBytes > 0 && len(b) > maxBytes {
		return fmt.Sprintf("%s<truncated %d bytes>", b[:maxBytes], len(b)-maxBytes), ids
	}
	return string(b), ids
}

// eventLogger logs every gateway event at debug level.
func eventLogger(maxBytes int) func(*discordgo.Session, *discordgo.Event) {
	return func(_ *discordgo.Session, evt *discordgo.Event) {
		payload, ids := eventPayload(evt.RawData, maxBytes)
		kv := []interface{}{"type", evt.Type, "seq", evt.Sequence}
		for k, v := range ids {
			kv = append(kv, k, v)
		}
		kv = append(kv, "payload", payload)
		logging.Debugw("discord event", kv...)
	}
}
