package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/nafee3/nafee3/internal/apiclient"
	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/config"
	"github.com/nafee3/nafee3/internal/identity"
	"github.com/nafee3/nafee3/internal/notification"
	"github.com/nafee3/nafee3/internal/profile"
	"github.com/nafee3/nafee3/internal/server"
)

const testPhone = "+963911111111"

var pngPhoto = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

type outbox struct {
	mu   sync.Mutex
	last string
}

func (o *outbox) Send(_ context.Context, msg notification.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	fields := strings.Fields(msg.Body)
	o.last = fields[len(fields)-1]
	return nil
}

func (o *outbox) code() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

func newTestServer(t *testing.T) (*server.Server, *outbox) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	cfg := config.Config{
		AppName:        "nafee3-test",
		AppEnv:         "test",
		IdempotencyTTL: time.Hour,
		Session:        config.SessionConfig{Secret: "test-secret", Issuer: "nafee3", TTL: time.Hour},
		OTP: config.OTPConfig{
			TTL:          5 * time.Minute,
			Length:       6,
			MaxAttempts:  3,
			SendPerMin:   10,
			HashCost:     bcrypt.MinCost,
			AuthPerMinIP: 100,
		},
		Media:              config.MediaConfig{Dir: t.TempDir(), BaseURL: "http://api.test/media"},
		Search:             config.SearchConfig{SimThreshold: 0.1, TopK: 10},
		PhoneDefaultRegion: identity.DefaultRegion,
	}
	box := &outbox{}
	srv, err := server.New(cfg, nil, cache, nil, server.WithNotifier(box))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, box
}

func newTestApp(t *testing.T, srv *server.Server, out *bytes.Buffer) *app {
	t.Helper()
	cfg := config.ClientConfig{
		APIURL:      "http://api.test",
		SessionFile: filepath.Join(t.TempDir(), "session.json"),
		Region:      identity.DefaultRegion,
		LogLevel:    "error",
	}
	return newApp(cfg, apiclient.FiberDoer{App: srv.App()}, strings.NewReader(""), out)
}

func writePhoto(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, pngPhoto, 0o600); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	return path
}

func TestEditUpdatesFieldsAndAddsPortfolio(t *testing.T) {
	srv, box := newTestServer(t)
	ctx := context.Background()
	var out bytes.Buffer
	a := newTestApp(t, srv, &out)

	if err := a.ids.SendCode(ctx, testPhone, notification.ChannelSMS); err != nil {
		t.Fatalf("send: %v", err)
	}
	ident, err := a.ids.VerifyCode(ctx, testPhone, box.code())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	_, err = a.profiles.Create(ctx, profile.Profile{
		ProfileID:          ident.ID,
		FullName:           "Ali",
		PhoneNumber:        ident.Phone,
		DateOfBirth:        "1990-04-12",
		ServiceCity:        "Damascus",
		ServiceArea:        "Mezzeh",
		ServiceDescription: "plumbing",
		PortfolioPhotos:    []string{},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	args := []string{
		"-desc", "plumbing and tiling",
		"-photo", writePhoto(t, "me.png"),
		"-portfolio", writePhoto(t, "kitchen.png"),
		"-portfolio", writePhoto(t, "bath.png"),
	}
	if err := a.run(ctx, "edit", args); err != nil {
		t.Fatalf("edit: %v", err)
	}

	got, err := a.profiles.Fetch(ctx, ident.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.ServiceDescription != "plumbing and tiling" || got.FullName != "Ali" || got.ServiceCity != "Damascus" {
		t.Fatalf("expected only the description to change, got %+v", got)
	}
	if !strings.HasPrefix(got.ProfilePhoto, "http://api.test/media/profile/") {
		t.Fatalf("expected uploaded profile photo, got %q", got.ProfilePhoto)
	}
	if len(got.PortfolioPhotos) != 2 {
		t.Fatalf("expected two portfolio photos, got %v", got.PortfolioPhotos)
	}
	for _, url := range got.PortfolioPhotos {
		if !strings.HasPrefix(url, "http://api.test/media/portfolio/") {
			t.Fatalf("unexpected portfolio url %q", url)
		}
	}
	if !strings.Contains(out.String(), "plumbing and tiling") {
		t.Fatalf("expected the updated profile printed, got %s", out.String())
	}
}

func TestEditRequiresSession(t *testing.T) {
	srv, _ := newTestServer(t)
	var out bytes.Buffer
	a := newTestApp(t, srv, &out)

	err := a.run(context.Background(), "edit", []string{"-desc", "anything"})
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestEditRejectsUnsupportedPhoto(t *testing.T) {
	srv, box := newTestServer(t)
	ctx := context.Background()
	var out bytes.Buffer
	a := newTestApp(t, srv, &out)

	_ = a.ids.SendCode(ctx, testPhone, notification.ChannelSMS)
	ident, err := a.ids.VerifyCode(ctx, testPhone, box.code())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	_, err = a.profiles.Create(ctx, profile.Profile{
		ProfileID:       ident.ID,
		FullName:        "Ali",
		PhoneNumber:     ident.Phone,
		DateOfBirth:     "1990-04-12",
		ServiceCity:     "Damascus",
		ServiceArea:     "Mezzeh",
		PortfolioPhotos: []string{},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	gif := filepath.Join(t.TempDir(), "x.gif")
	if err := os.WriteFile(gif, []byte("GIF89a\x01\x00\x01\x00"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	err = a.run(ctx, "edit", []string{"-portfolio", gif})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ := a.profiles.Fetch(ctx, ident.ID)
	if len(got.PortfolioPhotos) != 0 {
		t.Fatalf("rejected photo must not be stored, got %v", got.PortfolioPhotos)
	}
}
