package profile

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/nafee3/nafee3/internal/apiclient"
	"github.com/nafee3/nafee3/internal/apperr"
)

// Gateway is the coordinators' view of the profile store.
type Gateway interface {
	// Create is idempotent by profile id: when the profile exists the stored
	// record is returned instead of an error.
	Create(ctx context.Context, p Profile) (Profile, error)
	Fetch(ctx context.Context, id string) (Profile, error)
	// Update replaces the whole record; callers send every field.
	Update(ctx context.Context, p Profile) (Profile, error)
	Search(ctx context.Context, q SearchQuery) ([]Summary, error)
}

var _ Gateway = (*HTTPGateway)(nil)

// HTTPGateway talks to the profile API.
type HTTPGateway struct {
	api     *apiclient.Client
	tokens  apiclient.TokenSource
	retries int
}

// NewHTTPGateway builds a gateway. Writes that fail with a network error are
// resent up to retries times under the same Idempotency-Key.
func NewHTTPGateway(api *apiclient.Client, tokens apiclient.TokenSource, retries int) *HTTPGateway {
	if retries < 0 {
		retries = 0
	}
	return &HTTPGateway{api: api, tokens: tokens, retries: retries}
}

func (g *HTTPGateway) Create(ctx context.Context, p Profile) (Profile, error) {
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	env, err := g.write(ctx, "/add_profile", p)
	switch {
	case apperr.KindOf(err) == apperr.KindConflict:
		// A resent write found the first one still running on the server.
		return g.settle(ctx, p.ProfileID, err)
	case err != nil:
		return Profile{}, err
	case apiclient.IsStatus(env, "conflict"):
		return g.Fetch(ctx, p.ProfileID)
	}
	return p, nil
}

// settle resolves a conflicting create into the stored record. Until that
// record is visible the create is reported as a transient network failure.
func (g *HTTPGateway) settle(ctx context.Context, id string, cause error) (Profile, error) {
	stored, err := g.Fetch(ctx, id)
	switch {
	case err == nil:
		return stored, nil
	case apperr.KindOf(err) == apperr.KindNetwork:
		return Profile{}, err
	}
	return Profile{}, apperr.Wrap(cause, apperr.KindNetwork, "profile create still in progress")
}

func (g *HTTPGateway) Fetch(ctx context.Context, id string) (Profile, error) {
	var out getResponse
	_, err := g.api.Do(ctx, apiclient.Request{
		Method:   http.MethodGet,
		Path:     "/get_profile",
		Query:    url.Values{"profile_id": {id}},
		Fallback: apperr.KindNetwork,
	}, &out)
	if err != nil {
		return Profile{}, err
	}
	return out.Profile, nil
}

func (g *HTTPGateway) Update(ctx context.Context, p Profile) (Profile, error) {
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	if _, err := g.write(ctx, "/update_profile", p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (g *HTTPGateway) Search(ctx context.Context, q SearchQuery) ([]Summary, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var out []Summary
	_, err := g.api.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Path:     "/search_profiles",
		Body:     q,
		Fallback: apperr.KindNetwork,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *HTTPGateway) write(ctx context.Context, path string, p Profile) (apiclient.Envelope, error) {
	token, err := g.tokens.AccessToken(ctx)
	if err != nil {
		return apiclient.Envelope{}, err
	}
	req := apiclient.Request{
		Method:         http.MethodPost,
		Path:           path,
		Body:           p,
		Bearer:         token,
		IdempotencyKey: uuid.NewString(),
		Fallback:       apperr.KindNetwork,
	}
	var env apiclient.Envelope
	for attempt := 0; ; attempt++ {
		env, err = g.api.Do(ctx, req, nil)
		if err == nil || apperr.KindOf(err) != apperr.KindNetwork || attempt >= g.retries || ctx.Err() != nil {
			return env, err
		}
	}
}
