package identity

import (
	"context"
	"net/http"

	"github.com/nafee3/nafee3/internal/apiclient"
	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/notification"
)

var _ Backend = (*HTTPBackend)(nil)

// HTTPBackend reaches the identity provider through the API.
type HTTPBackend struct {
	api *apiclient.Client
}

// NewHTTPBackend builds a backend over api.
func NewHTTPBackend(api *apiclient.Client) *HTTPBackend {
	return &HTTPBackend{api: api}
}

type sendCodeRequest struct {
	Phone   string `json:"phone"`
	Channel string `json:"channel"`
}

type verifyCodeRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type sessionResponse struct {
	apiclient.Envelope
	Session Session `json:"session"`
}

func (b *HTTPBackend) SendCode(ctx context.Context, phone string, channel notification.Channel) error {
	_, err := b.api.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Path:     "/auth/otp",
		Body:     sendCodeRequest{Phone: phone, Channel: string(channel)},
		Fallback: apperr.KindProviderUnavailable,
	}, nil)
	return err
}

func (b *HTTPBackend) VerifyCode(ctx context.Context, phone, code string) (Session, error) {
	var out sessionResponse
	_, err := b.api.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Path:     "/auth/verify",
		Body:     verifyCodeRequest{Phone: phone, Code: code},
		Fallback: apperr.KindProviderUnavailable,
	}, &out)
	if err != nil {
		return Session{}, err
	}
	return out.Session, nil
}

func (b *HTTPBackend) Refresh(ctx context.Context, accessToken string) (Session, error) {
	var out sessionResponse
	_, err := b.api.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Path:     "/auth/refresh",
		Bearer:   accessToken,
		Fallback: apperr.KindProviderUnavailable,
	}, &out)
	if err != nil {
		return Session{}, err
	}
	return out.Session, nil
}

func (b *HTTPBackend) Revoke(ctx context.Context, accessToken string) error {
	_, err := b.api.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Path:     "/auth/logout",
		Bearer:   accessToken,
		Fallback: apperr.KindProviderUnavailable,
	}, nil)
	return err
}
