package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/logging"
	"github.com/nafee3/nafee3/internal/notification"
	"github.com/nafee3/nafee3/internal/otp"
	"github.com/nafee3/nafee3/internal/ratelimit"
)

var _ Backend = (*Provider)(nil)

// ProviderOptions holds optional Provider settings.
type ProviderOptions struct {
	// Region is the default region for numbers without a country prefix.
	Region string
	Logger *slog.Logger
}

// Provider is the self-hosted identity provider: it verifies phone ownership
// with passcodes and issues sessions for the resulting identities.
type Provider struct {
	repo    Repository
	codes   *otp.Service
	limiter ratelimit.Limiter
	tokens  *TokenIssuer
	revoked Revocations
	region  string
	logger  *slog.Logger
}

// NewProvider wires a provider. A nil limiter disables send throttling.
func NewProvider(repo Repository, codes *otp.Service, limiter ratelimit.Limiter, tokens *TokenIssuer, revoked Revocations, opts ProviderOptions) *Provider {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if revoked == nil {
		revoked = NewMemoryRevocations()
	}
	return &Provider{
		repo:    repo,
		codes:   codes,
		limiter: limiter,
		tokens:  tokens,
		revoked: revoked,
		region:  opts.Region,
		logger:  logging.OrDiscard(opts.Logger),
	}
}

// SendCode normalizes phone, applies the per-phone send limit and issues a code.
func (p *Provider) SendCode(ctx context.Context, phone string, channel notification.Channel) error {
	normalized, err := NormalizePhone(phone, p.region)
	if err != nil {
		return err
	}
	allowed, err := p.limiter.Allow(ctx, normalized)
	if err != nil {
		return apperr.Wrap(err, apperr.KindProviderUnavailable, "rate limiter")
	}
	if !allowed {
		return apperr.New(apperr.KindRateLimited, "too many codes requested for this phone")
	}
	return p.codes.Issue(ctx, normalized, channel)
}

// VerifyCode consumes the passcode and returns a session for the identity
// bound to phone, creating that identity on first verification.
func (p *Provider) VerifyCode(ctx context.Context, phone, code string) (Session, error) {
	normalized, err := NormalizePhone(phone, p.region)
	if err != nil {
		return Session{}, err
	}
	if err := p.codes.Verify(ctx, normalized, code); err != nil {
		return Session{}, err
	}
	ident, err := p.repo.FindOrCreate(ctx, normalized)
	if err != nil {
		return Session{}, apperr.Wrap(err, apperr.KindProviderUnavailable, "resolve identity")
	}
	sess, err := p.tokens.Issue(ident)
	if err != nil {
		return Session{}, err
	}
	p.logger.Info("identity verified", "identity_id", ident.ID, "phone", logging.MaskPhone(ident.Phone))
	return sess, nil
}

// Authenticate resolves a bearer token to its session.
func (p *Provider) Authenticate(ctx context.Context, accessToken string) (Session, error) {
	claims, err := p.tokens.Parse(accessToken)
	if err != nil {
		return Session{}, err
	}
	revoked, err := p.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, apperr.Wrap(err, apperr.KindProviderUnavailable, "revocation lookup")
	}
	if revoked {
		return Session{}, apperr.New(apperr.KindUnauthorized, "session revoked")
	}
	ident, err := p.repo.FindByID(ctx, claims.Subject)
	if errors.Is(err, ErrIdentityNotFound) {
		return Session{}, apperr.New(apperr.KindUnauthorized, "unknown identity")
	}
	if err != nil {
		return Session{}, apperr.Wrap(err, apperr.KindProviderUnavailable, "load identity")
	}
	return Session{
		Identity:    ident,
		AccessToken: accessToken,
		IssuedAt:    claims.IssuedAt.Time.UTC(),
		ExpiresAt:   claims.ExpiresAt.Time.UTC(),
	}, nil
}

// Refresh swaps a valid token for a new one and revokes the old token.
func (p *Provider) Refresh(ctx context.Context, accessToken string) (Session, error) {
	current, err := p.Authenticate(ctx, accessToken)
	if err != nil {
		return Session{}, err
	}
	next, err := p.tokens.Issue(current.Identity)
	if err != nil {
		return Session{}, err
	}
	if err := p.Revoke(ctx, accessToken); err != nil {
		return Session{}, err
	}
	return next, nil
}

// Revoke invalidates accessToken until its natural expiry. Tokens that no
// longer parse have nothing left to revoke.
func (p *Provider) Revoke(ctx context.Context, accessToken string) error {
	claims, err := p.tokens.Parse(accessToken)
	if err != nil {
		return nil
	}
	if err := p.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return apperr.Wrap(err, apperr.KindProviderUnavailable, "revoke session")
	}
	return nil
}
