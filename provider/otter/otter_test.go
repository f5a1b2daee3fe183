package otter

import (
	"context"
	"sort"
	"testing"
	"time"
)

func TestProvider_GetSetDel(t *testing.T) {
	t.Parallel()
	p, err := New(Config{MaximumSize: 100})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, ok, _ := p.Get(ctx, "missing"); ok {
		t.Error("should not find missing key")
	}

	if ok, err := p.Set(ctx, "@snap:visionData:a", []byte("v1"), 1, time.Minute); !ok || err != nil {
		t.Fatalf("set: ok=%v err=%v", ok, err)
	}
	// otter applies policy updates asynchronously; wait briefly.
	time.Sleep(50 * time.Millisecond)

	b, ok, err := p.Get(ctx, "@snap:visionData:a")
	if err != nil || !ok || string(b) != "v1" {
		t.Fatalf("get = %q ok=%v err=%v", b, ok, err)
	}

	_ = p.Del(ctx, "@snap:visionData:a")
	if _, ok, _ := p.Get(ctx, "@snap:visionData:a"); ok {
		t.Error("should not find deleted key")
	}
}

func TestProvider_PerEntryTTL(t *testing.T) {
	t.Parallel()
	p, err := New(Config{MaximumSize: 100, MaxTTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	_, _ = p.Set(ctx, "expiring", []byte("data"), 1, 50*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	if _, ok, _ := p.Get(ctx, "expiring"); ok {
		t.Error("entry should be expired")
	}
}

func TestProvider_KeysAndPurge(t *testing.T) {
	t.Parallel()
	p, err := New(Config{MaximumSize: 100})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	_, _ = p.Set(ctx, "@snap:inventory:u1", []byte("1"), 1, time.Minute)
	_, _ = p.Set(ctx, "@snap:inventory:u2", []byte("2"), 1, time.Minute)
	_, _ = p.Set(ctx, "other:key", []byte("3"), 1, time.Minute)
	time.Sleep(50 * time.Millisecond)

	keys, err := p.Keys(ctx, "@snap:")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "@snap:inventory:u1" || keys[1] != "@snap:inventory:u2" {
		t.Fatalf("keys = %v", keys)
	}

	if err := p.Purge(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := p.Get(ctx, "other:key"); ok {
		t.Error("purge should drop every entry")
	}
}
