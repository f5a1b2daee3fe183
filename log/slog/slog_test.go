package slog

import (
	"bytes"
	"encoding/json"
	"errors"
	stdslog "log/slog"
	"testing"

	"github.com/unkn0wn-root/snapcache"
)

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(stdslog.New(stdslog.NewJSONHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo})))

	l.Debug("hidden", snapcache.Fields{"x": 1})
	if buf.Len() != 0 {
		t.Fatalf("debug must be filtered at info level: %s", buf.String())
	}

	l.Warn("background revalidation failed", snapcache.Fields{"key": "@snap:inventory:u1", "err": errors.New("timeout")})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if rec["level"] != "WARN" || rec["msg"] != "background revalidation failed" {
		t.Fatalf("record = %v", rec)
	}
	group, ok := rec["cache"].(map[string]any)
	if !ok {
		t.Fatalf("fields must be grouped under cache: %v", rec)
	}
	if group["key"] != "@snap:inventory:u1" || group["err"] != "timeout" {
		t.Fatalf("group = %v", group)
	}
}
