package redisstore

import (
	"context"
	"testing"
	"time"
)

func TestTTLExpiry_GetMissesExpired(t *testing.T) {
	rc, mr := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	if err := rc.Set(ctx, "ttl-key", []byte("v"), 2*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := rc.Get(ctx, "ttl-key")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("pre expiry got=%q ok=%v err=%v", got, ok, err)
	}

	mr.FastForward(3 * time.Second)

	if _, ok, err := rc.Get(ctx, "ttl-key"); ok || err != nil {
		t.Fatalf("expected ttl-key to be absent after expiry; ok=%v err=%v", ok, err)
	}
}
