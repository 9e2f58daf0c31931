package server

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
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
	"github.com/nafee3/nafee3/internal/login"
	"github.com/nafee3/nafee3/internal/media"
	"github.com/nafee3/nafee3/internal/notification"
	"github.com/nafee3/nafee3/internal/profile"
	"github.com/nafee3/nafee3/internal/session"
	"github.com/nafee3/nafee3/internal/signup"
)

const testPhone = "+963911111111"

var pngPhoto = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

type outbox struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (o *outbox) Send(_ context.Context, msg notification.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) lastCode(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		t.Fatalf("no code delivered")
	}
	fields := strings.Fields(o.sent[len(o.sent)-1].Body)
	return fields[len(fields)-1]
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
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
}

// newTestServer runs the API on memory storage with Redis from miniredis.
func newTestServer(t *testing.T) (*Server, *outbox) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	box := &outbox{}
	srv, err := New(testConfig(t), nil, cache, nil, WithNotifier(box))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, box
}

type appClient struct {
	api      *apiclient.Client
	ids      *identity.Client
	profiles *profile.HTTPGateway
	photos   *media.HTTPStore
}

func newAppClient(srv *Server) *appClient {
	api := apiclient.New("http://api.test", apiclient.FiberDoer{App: srv.app}, nil)
	ids := identity.NewClient(identity.NewHTTPBackend(api), nil, identity.ClientOptions{})
	return &appClient{
		api:      api,
		ids:      ids,
		profiles: profile.NewHTTPGateway(api, ids, 1),
		photos:   media.NewHTTPStore(api, ids),
	}
}

func TestSignupLoginLogoutOverHTTP(t *testing.T) {
	srv, box := newTestServer(t)
	ctx := context.Background()

	app := newAppClient(srv)
	coord := signup.NewCoordinator(app.ids, app.profiles, app.photos, signup.Options{Region: identity.DefaultRegion})
	err := coord.Start(ctx, signup.Payload{
		Phone:              "0911 111 111",
		FullName:           "Ali",
		DateOfBirth:        "1990-04-12",
		ServiceCity:        "Damascus",
		ServiceArea:        "Mezzeh",
		ServiceDescription: "plumbing and water heater repair",
		Channel:            notification.ChannelWhatsApp,
		Photo:              &media.Upload{Name: "me.png", Data: pngPhoto},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := coord.ConfirmCode(ctx, box.lastCode(t)); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	snap := coord.Snapshot()
	if snap.State != signup.StateCompleted || snap.Profile.ProfileID != snap.Identity.ID {
		t.Fatalf("unexpected signup result %+v", snap)
	}
	if !strings.HasPrefix(snap.Profile.ProfilePhoto, "http://api.test/media/profile/") {
		t.Fatalf("expected uploaded photo url, got %q", snap.Profile.ProfilePhoto)
	}

	results, err := app.profiles.Search(ctx, profile.SearchQuery{Query: "water heater"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ProfileID != snap.Identity.ID {
		t.Fatalf("expected the new profile in search, got %+v", results)
	}

	// A second device logs in to the same identity.
	other := newAppClient(srv)
	manager := session.New(other.ids, nil)
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("session start: %v", err)
	}
	lc := login.NewCoordinator(other.ids, login.Options{Region: identity.DefaultRegion})
	if err := lc.RequestCode(ctx, testPhone, notification.ChannelSMS); err != nil {
		t.Fatalf("request code: %v", err)
	}
	if err := lc.ConfirmCode(ctx, box.lastCode(t)); err != nil {
		t.Fatalf("login confirm: %v", err)
	}
	st := manager.State()
	if st.User == nil || st.User.ID != snap.Identity.ID {
		t.Fatalf("expected session manager to follow login, got %+v", st)
	}

	token, err := other.ids.AccessToken(ctx)
	if err != nil {
		t.Fatalf("access token: %v", err)
	}
	if err := manager.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	_, err = app.api.Do(ctx, apiclient.Request{Method: "GET", Path: "/auth/session", Bearer: token}, nil)
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
	if _, err := app.ids.AccessToken(ctx); err != nil {
		t.Fatalf("first device should stay signed in: %v", err)
	}
}

func TestProfileWritesRequireOwner(t *testing.T) {
	srv, box := newTestServer(t)
	ctx := context.Background()
	app := newAppClient(srv)

	if err := app.ids.SendCode(ctx, testPhone, notification.ChannelSMS); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := app.ids.VerifyCode(ctx, testPhone, box.lastCode(t)); err != nil {
		t.Fatalf("verify: %v", err)
	}

	_, err := app.profiles.Create(ctx, profile.Profile{
		ProfileID:       "3f1c8a52-7d4e-4b6a-9c21-5e8f0a7b3d19",
		FullName:        "Sami",
		PhoneNumber:     "+963922222222",
		DateOfBirth:     "1985-01-30",
		ServiceCity:     "Aleppo",
		ServiceArea:     "Aziziyeh",
		PortfolioPhotos: []string{},
	})
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for another identity's profile, got %v", err)
	}
	if _, err := app.profiles.Fetch(ctx, "3f1c8a52-7d4e-4b6a-9c21-5e8f0a7b3d19"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected nothing stored, got %v", err)
	}
}

func TestHealthAndErrorEnvelope(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := srv.app.Test(httptest.NewRequest("GET", "/healthz", nil), -1)
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected healthy, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest("POST", "/auth/otp", strings.NewReader(`{"phone":"12"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = srv.app.Test(req, -1)
	if err != nil {
		t.Fatalf("send code: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for a bad phone, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestNewRequiresBackendsOutsideDevelopment(t *testing.T) {
	cfg := testConfig(t)
	cfg.AppEnv = "production"
	if _, err := New(cfg, nil, nil, nil); err == nil {
		t.Fatalf("expected an error without postgres and redis")
	}
}
