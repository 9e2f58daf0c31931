package infra

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/nafee3/nafee3/internal/config"
)

func TestOpenWithoutURLsUsesMemory(t *testing.T) {
	b, err := Open(context.Background(), config.Config{AppEnv: "development"}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if b.DB != nil || b.Cache != nil {
		t.Fatalf("expected no backends, got %+v", b)
	}
	b.Close(nil)
}

func TestOpenConnectsRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg := config.Config{RedisURL: "redis://" + mr.Addr(), ConnectTimeout: time.Second}
	b, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close(nil)
	if b.Cache == nil || b.DB != nil {
		t.Fatalf("expected only redis, got %+v", b)
	}
	if err := b.Cache.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Fatalf("expected value in miniredis, got %q", got)
	}
}

func TestOpenFailsWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	cfg := config.Config{RedisURL: "redis://" + addr, ConnectTimeout: 200 * time.Millisecond}
	if _, err := Open(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected an error for an unreachable redis")
	}
}

func TestNewPostgresPoolRequiresURL(t *testing.T) {
	if _, err := NewPostgresPool(context.Background(), "", PostgresOptions{}); err == nil {
		t.Fatalf("expected an error without a url")
	}
}
