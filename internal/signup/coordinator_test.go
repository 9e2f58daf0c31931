package signup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/nafee3/nafee3/internal/apiclient"
	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/flow"
	"github.com/nafee3/nafee3/internal/identity"
	"github.com/nafee3/nafee3/internal/media"
	"github.com/nafee3/nafee3/internal/profile"
)

const testPhone = "+963911111111"

var pngPhoto = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

type harness struct {
	backend  *identity.FakeBackend
	profiles *profile.FakeGateway
	photos   *media.MemoryStore
	coord    *Coordinator
}

func newHarness() *harness {
	h := &harness{
		backend:  identity.NewFakeBackend(),
		profiles: profile.NewFakeGateway(),
		photos:   media.NewMemoryStore(),
	}
	ids := identity.NewClient(h.backend, nil, identity.ClientOptions{})
	h.coord = NewCoordinator(ids, h.profiles, h.photos, Options{Region: identity.DefaultRegion})
	return h
}

func samplePayload() Payload {
	return Payload{
		Phone:              testPhone,
		FullName:           "Ali",
		DateOfBirth:        "1990-04-12",
		ServiceCity:        "Damascus",
		ServiceArea:        "Mezzeh",
		ServiceDescription: "plumbing and water heater repair",
	}
}

func TestSignupCompletes(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if err := h.coord.Start(ctx, samplePayload()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if h.coord.State() != StateCodeRequested {
		t.Fatalf("expected code_requested, got %s", h.coord.State())
	}
	if err := h.coord.ConfirmCode(ctx, "123456"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	snap := h.coord.Snapshot()
	if snap.State != StateCompleted {
		t.Fatalf("expected completed, got %s", snap.State)
	}
	if snap.Identity == nil || snap.Profile == nil {
		t.Fatalf("expected identity and profile, got %+v", snap)
	}
	if snap.Profile.ProfileID != snap.Identity.ID {
		t.Fatalf("profile id %s does not match identity %s", snap.Profile.ProfileID, snap.Identity.ID)
	}
	if snap.Profile.PhoneNumber != testPhone {
		t.Fatalf("expected verified phone on profile, got %s", snap.Profile.PhoneNumber)
	}
	if snap.Pending != nil {
		t.Fatalf("expected pending signup cleared")
	}
	stored, err := h.profiles.Fetch(ctx, snap.Identity.ID)
	if err != nil || stored.FullName != "Ali" {
		t.Fatalf("expected stored profile, got %+v %v", stored, err)
	}
}

func TestSignupRetryProvisioningAfterNetworkError(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.profiles.FailCreate(apperr.ErrNetwork)

	if err := h.coord.Start(ctx, samplePayload()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.coord.ConfirmCode(ctx, "123456"); !errors.Is(err, apperr.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	snap := h.coord.Snapshot()
	if snap.State != StateProvisioning || snap.Identity == nil || snap.Pending == nil {
		t.Fatalf("expected provisioning with identity and pending kept, got %+v", snap)
	}

	if err := h.coord.RetryProvisioning(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if h.coord.State() != StateCompleted {
		t.Fatalf("expected completed, got %s", h.coord.State())
	}
	if n := len(h.backend.Sent()); n != 1 {
		t.Fatalf("retry must not send a new code, sent %d", n)
	}
	if n := h.profiles.Creates(); n != 2 {
		t.Fatalf("expected two create calls, got %d", n)
	}
}

// scriptedDoer answers API calls in order from a fixed list.
type scriptedDoer struct {
	mu    sync.Mutex
	steps []scriptedReply
	seen  []string
}

type scriptedReply struct {
	status int
	body   string
	err    error
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, req.Method+" "+req.URL.Path)
	if len(d.steps) == 0 {
		return nil, errors.New("unexpected call " + req.Method + " " + req.URL.Path)
	}
	step := d.steps[0]
	d.steps = d.steps[1:]
	if step.err != nil {
		return nil, step.err
	}
	return &http.Response{
		StatusCode: step.status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(step.body)),
		Request:    req,
	}, nil
}

func TestSignupStaysProvisioningWhileResentCreateIsInFlight(t *testing.T) {
	backend := identity.NewFakeBackend()
	ids := identity.NewClient(backend, nil, identity.ClientOptions{})
	doer := &scriptedDoer{steps: []scriptedReply{
		{err: errors.New("i/o timeout")},
		{status: http.StatusConflict, body: `{"status":"error","code":"conflict","message":"duplicate request currently processing"}`},
		{status: http.StatusNotFound, body: `{"status":"not_found","code":"not_found","message":"profile not found"}`},
		{status: http.StatusCreated, body: `{"status":"success","message":"profile created"}`},
	}}
	gateway := profile.NewHTTPGateway(apiclient.New("http://api.test", doer, nil), ids, 1)
	coord := NewCoordinator(ids, gateway, media.NewMemoryStore(), Options{Region: identity.DefaultRegion})
	ctx := context.Background()

	if err := coord.Start(ctx, samplePayload()); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := coord.ConfirmCode(ctx, "123456")
	if !errors.Is(err, apperr.ErrNetwork) {
		t.Fatalf("expected a transient network error, got %v", err)
	}
	snap := coord.Snapshot()
	if snap.State != StateProvisioning || snap.Identity == nil || snap.Pending == nil {
		t.Fatalf("expected provisioning with identity and pending kept, got %+v", snap)
	}

	if err := coord.RetryProvisioning(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	snap = coord.Snapshot()
	if snap.State != StateCompleted || snap.Profile.ProfileID != snap.Identity.ID {
		t.Fatalf("expected completed, got %+v", snap)
	}
	want := []string{"POST /add_profile", "POST /add_profile", "GET /get_profile", "POST /add_profile"}
	if strings.Join(doer.seen, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected calls %v", doer.seen)
	}
}

func TestSignupNonRetryableProvisioningFails(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.profiles.FailCreate(apperr.New(apperr.KindUnauthorized, "token rejected"))

	_ = h.coord.Start(ctx, samplePayload())
	if err := h.coord.ConfirmCode(ctx, "123456"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	snap := h.coord.Snapshot()
	if snap.State != StateFailed || !errors.Is(snap.Err, apperr.ErrUnauthorized) {
		t.Fatalf("expected failed with reason, got %+v", snap)
	}
	if err := h.coord.RetryProvisioning(ctx); !errors.Is(err, flow.ErrInvalidState) {
		t.Fatalf("expected retry refused from failed, got %v", err)
	}
	if err := h.coord.Cancel(); !errors.Is(err, flow.ErrInvalidState) {
		t.Fatalf("expected cancel refused from failed, got %v", err)
	}
}

func TestSignupWrongCodeReturnsToCodeRequested(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_ = h.coord.Start(ctx, samplePayload())

	if err := h.coord.ConfirmCode(ctx, "000000"); !errors.Is(err, apperr.ErrInvalidCode) {
		t.Fatalf("expected invalid code, got %v", err)
	}
	if h.coord.State() != StateCodeRequested {
		t.Fatalf("expected code_requested, got %s", h.coord.State())
	}
	if err := h.coord.ConfirmCode(ctx, "123456"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if h.coord.State() != StateCompleted {
		t.Fatalf("expected completed, got %s", h.coord.State())
	}
}

func TestSignupRejectsInvalidFormBeforeNetwork(t *testing.T) {
	h := newHarness()
	p := samplePayload()
	p.Phone = "12"
	p.DateOfBirth = "12/04/1990"

	err := h.coord.Start(context.Background(), p)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := appErr.Fields["date_of_birth"]; !ok {
		t.Fatalf("expected date_of_birth field error, got %v", appErr.Fields)
	}

	p.DateOfBirth = "1990-04-12"
	err = h.coord.Start(context.Background(), p)
	if !errors.As(err, &appErr) || appErr.Fields["phone"] == "" {
		t.Fatalf("expected phone field error, got %v", err)
	}
	if len(h.backend.Sent()) != 0 || h.coord.State() != StateIdle {
		t.Fatalf("invalid form must not reach the provider")
	}
}

func TestSignupSendFailureReturnsToIdle(t *testing.T) {
	h := newHarness()
	h.backend.FailSend(apperr.ErrRateLimited)

	if err := h.coord.Start(context.Background(), samplePayload()); !errors.Is(err, apperr.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	snap := h.coord.Snapshot()
	if snap.State != StateIdle || snap.Pending != nil {
		t.Fatalf("expected idle with nothing staged, got %+v", snap)
	}
	if err := h.coord.Start(context.Background(), samplePayload()); err != nil {
		t.Fatalf("start after failure: %v", err)
	}
}

func TestSignupDuplicateStartIsRejected(t *testing.T) {
	h := newHarness()
	entered := make(chan struct{})
	release := make(chan struct{})
	h.backend.BeforeSend = func() {
		close(entered)
		<-release
	}

	done := make(chan error, 1)
	go func() { done <- h.coord.Start(context.Background(), samplePayload()) }()
	<-entered

	if err := h.coord.Start(context.Background(), samplePayload()); !errors.Is(err, flow.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first start: %v", err)
	}
	if n := len(h.backend.Sent()); n != 1 {
		t.Fatalf("expected one code sent, got %d", n)
	}
}

func TestSignupCancelDiscardsInFlightResult(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_ = h.coord.Start(ctx, samplePayload())

	entered := make(chan struct{})
	release := make(chan struct{})
	h.backend.BeforeVerify = func() {
		close(entered)
		<-release
	}
	done := make(chan error, 1)
	go func() { done <- h.coord.ConfirmCode(ctx, "123456") }()
	<-entered

	if err := h.coord.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	close(release)
	if err := <-done; !errors.Is(err, flow.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	snap := h.coord.Snapshot()
	if snap.State != StateIdle || snap.Pending != nil || snap.Identity != nil {
		t.Fatalf("expected clean idle after cancel, got %+v", snap)
	}
	if h.profiles.Creates() != 0 {
		t.Fatalf("cancelled signup must not create a profile")
	}
}

func TestSignupUploadsPhotoOnlyAfterVerification(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	p := samplePayload()
	p.Photo = &media.Upload{Name: "me.png", Data: pngPhoto}

	if err := h.coord.Start(ctx, p); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.coord.ConfirmCode(ctx, "000000"); !errors.Is(err, apperr.ErrInvalidCode) {
		t.Fatalf("expected invalid code, got %v", err)
	}
	if h.photos.Len() != 0 {
		t.Fatalf("photo uploaded before verification")
	}

	h.profiles.FailCreate(apperr.ErrNetwork)
	if err := h.coord.ConfirmCode(ctx, "123456"); !errors.Is(err, apperr.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if h.photos.Len() != 1 {
		t.Fatalf("expected photo uploaded once, got %d", h.photos.Len())
	}
	if err := h.coord.RetryProvisioning(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if h.photos.Len() != 1 {
		t.Fatalf("retry uploaded the photo again, got %d objects", h.photos.Len())
	}
	snap := h.coord.Snapshot()
	if !strings.HasPrefix(snap.Profile.ProfilePhoto, "memory://profile/") {
		t.Fatalf("expected profile photo url, got %q", snap.Profile.ProfilePhoto)
	}
}

func TestSignupUploadFailureIsRetried(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	p := samplePayload()
	p.Photo = &media.Upload{Name: "me.png", Data: pngPhoto}
	h.photos.Fail(1, apperr.ErrNetwork)

	_ = h.coord.Start(ctx, p)
	if err := h.coord.ConfirmCode(ctx, "123456"); !errors.Is(err, apperr.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if h.coord.State() != StateProvisioning || h.profiles.Creates() != 0 {
		t.Fatalf("expected provisioning without a create call")
	}
	if err := h.coord.RetryProvisioning(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if h.photos.Len() != 1 || h.coord.State() != StateCompleted {
		t.Fatalf("expected upload and completion, got %d objects in %s", h.photos.Len(), h.coord.State())
	}
}

func TestSignupResumeForVerifiedIdentity(t *testing.T) {
	h := newHarness()
	ident := h.backend.Register(testPhone)
	p := samplePayload()
	p.Phone = ""

	if err := h.coord.Resume(context.Background(), ident, p); err != nil {
		t.Fatalf("resume: %v", err)
	}
	snap := h.coord.Snapshot()
	if snap.State != StateCompleted || snap.Profile.ProfileID != ident.ID {
		t.Fatalf("expected completed profile for %s, got %+v", ident.ID, snap)
	}
	if len(h.backend.Sent()) != 0 {
		t.Fatalf("resume must not send a code")
	}
}

func TestSignupConfirmRequiresCodeRequested(t *testing.T) {
	h := newHarness()
	if err := h.coord.ConfirmCode(context.Background(), "123456"); !errors.Is(err, flow.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if err := h.coord.ConfirmCode(context.Background(), " "); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for blank code, got %v", err)
	}
}
