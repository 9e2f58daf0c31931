package media

import (
	"context"

	"github.com/nafee3/nafee3/internal/apiclient"
)

// HTTPStore uploads photos through the API's media endpoint.
type HTTPStore struct {
	api    *apiclient.Client
	tokens apiclient.TokenSource
}

// NewHTTPStore builds a store that authenticates with tokens.
func NewHTTPStore(api *apiclient.Client, tokens apiclient.TokenSource) *HTTPStore {
	return &HTTPStore{api: api, tokens: tokens}
}

type uploadResponse struct {
	apiclient.Envelope
	URL string `json:"url"`
}

func (s *HTTPStore) Put(ctx context.Context, kind Kind, data []byte) (string, error) {
	ct, err := ValidatePhoto(data)
	if err != nil {
		return "", err
	}
	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	var out uploadResponse
	if err := s.api.Upload(ctx, "/media/"+string(kind), token, ct, data, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}
