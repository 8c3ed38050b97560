package gateway

import (
	"context"
	"testing"
	"time"

	domainErrors "github.com/dawilly/clickpesa/internal/domain/errors"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Error("expected miss for unknown key")
	}

	c.Put(ctx, "token:sandbox", "Bearer abc", time.Minute)
	got, ok := c.Get(ctx, "token:sandbox")
	if !ok || got != "Bearer abc" {
		t.Errorf("Get() = %q, %v; want %q, true", got, ok, "Bearer abc")
	}

	c.Invalidate(ctx, "token:sandbox")
	if _, ok := c.Get(ctx, "token:sandbox"); ok {
		t.Error("expected miss after Invalidate")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	c.Put(ctx, "k", "v", 10*time.Millisecond)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected miss after expiry")
	}
}

func TestNoopCache(t *testing.T) {
	ctx := context.Background()
	c := NoopCache{}

	c.Put(ctx, "k", "v", time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("noop cache must always miss")
	}
}

func TestStaticTokenSource(t *testing.T) {
	s := NewStaticTokenSource("Bearer fixed")
	token, err := s.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	if token != "Bearer fixed" {
		t.Errorf("Token() = %q; want %q", token, "Bearer fixed")
	}

	empty := NewStaticTokenSource("")
	if _, err := empty.Token(context.Background()); err != domainErrors.ErrTokenUnavailable {
		t.Errorf("Token() error = %v; want ErrTokenUnavailable", err)
	}
}
