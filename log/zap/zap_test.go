package zap

import (
	"errors"
	"testing"

	"github.com/unkn0wn-root/snapcache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Debug("d", nil)
	l.Info("i", snapcache.Fields{"key": "@snap:visionData:h"})
	l.Warn("w", snapcache.Fields{"err": errors.New("boom"), "layer": "memory"})
	l.Error("e", snapcache.Fields{"attempts": 3})

	entries := logs.AllUntimed()
	if len(entries) != 4 {
		t.Fatalf("got %d entries", len(entries))
	}
	wantLevels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != wantLevels[i] {
			t.Fatalf("entry %d level = %v", i, e.Level)
		}
	}

	warn := entries[2].ContextMap()
	if warn["err"] != "boom" || warn["layer"] != "memory" {
		t.Fatalf("warn fields = %v", warn)
	}
	if entries[2].Context[0].Key != "err" {
		t.Fatalf("fields must be sorted by key, got %v", entries[2].Context)
	}
	if entries[1].ContextMap()["key"] != "@snap:visionData:h" {
		t.Fatalf("info fields = %v", entries[1].ContextMap())
	}
}

func TestNewNil(t *testing.T) {
	l := New(nil)
	l.Info("discarded", snapcache.Fields{"x": 1})
}
