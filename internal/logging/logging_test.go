package logging

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type entry struct {
	level string
	msg   string
	kv    []interface{}
}

type recorder struct {
	mu      sync.Mutex
	entries []entry
}

func (r *recorder) add(level, msg string, kv []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{level: level, msg: msg, kv: kv})
}

func (r *recorder) Infow(msg string, kv ...interface{})  { r.add("info", msg, kv) }
func (r *recorder) Debugw(msg string, kv ...interface{}) { r.add("debug", msg, kv) }
func (r *recorder) Warnw(msg string, kv ...interface{})  { r.add("warn", msg, kv) }
func (r *recorder) Errorw(msg string, kv ...interface{}) { r.add("error", msg, kv) }
func (r *recorder) Fatalw(msg string, kv ...interface{}) { r.add("fatal", msg, kv) }
func (r *recorder) Sync() error                          { return nil }

func TestInfowCtxMergesContextFields(t *testing.T) {
	rec := &recorder{}
	SetLogger(rec)
	defer SetLogger(nil)

	ctx := WithFields(context.Background(), "device.id", "d1")
	ctx = WithFields(ctx, "guild.id", "g1")
	InfowCtx(ctx, "status sent", "connected", true)

	if len(rec.entries) != 1 {
		t.Fatalf("entries: want=1 got=%d", len(rec.entries))
	}
	got := rec.entries[0].kv
	want := []interface{}{"device.id", "d1", "guild.id", "g1", "connected", true}
	if len(got) != len(want) {
		t.Fatalf("kv length: want=%d got=%d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kv[%d]: want=%v got=%v", i, want[i], got[i])
		}
	}
}

func TestWithFieldsNoopWithoutPairs(t *testing.T) {
	ctx := context.Background()
	if WithFields(ctx) != ctx {
		t.Fatalf("expected the same context when no fields are given")
	}
	if FromContext(nil) != nil {
		t.Fatalf("expected nil fields for nil context")
	}
}

func TestEntityFieldsOmitEmptyNames(t *testing.T) {
	if got := ChannelFields("c1", ""); len(got) != 2 {
		t.Fatalf("channel fields without name: want=2 got=%d", len(got))
	}
	if got := GuildFields("g1", "Guild"); len(got) != 4 {
		t.Fatalf("guild fields with name: want=4 got=%d", len(got))
	}
	if got := DeviceFields("d1", "alice"); got[3] != "alice" {
		t.Fatalf("device user: want=alice got=%v", got[3])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   zap.DebugLevel.String(),
		"WARN":    zap.WarnLevel.String(),
		"error":   zap.ErrorLevel.String(),
		"":        zap.InfoLevel.String(),
		"verbose": zap.InfoLevel.String(),
	}
	for in, want := range cases {
		if got := ParseLevel(in).String(); got != want {
			t.Fatalf("ParseLevel(%q): want=%s got=%s", in, want, got)
		}
	}
}
