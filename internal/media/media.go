// Package media validates and stores profile photos.
package media

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/nafee3/nafee3/internal/apperr"
)

// MaxPhotoBytes is the largest accepted photo.
const MaxPhotoBytes = 512 << 10

// Kind is the folder a photo is stored under.
type Kind string

const (
	KindProfile   Kind = "profile"
	KindPortfolio Kind = "portfolio"
)

// ParseKind validates a kind taken from a URL.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindProfile, KindPortfolio:
		return k, nil
	}
	return "", apperr.Validation("unknown media kind", map[string]string{"kind": "must be profile or portfolio"})
}

// Upload is a photo selected by the user and not yet stored.
type Upload struct {
	Name string
	Data []byte
}

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
}

// ValidatePhoto checks size and sniffs the content type, returning it.
func ValidatePhoto(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperr.Validation("photo is empty", map[string]string{"photo": "cannot be empty"})
	}
	if len(data) > MaxPhotoBytes {
		return "", apperr.Validation("photo too large", map[string]string{"photo": fmt.Sprintf("must be at most %d KB", MaxPhotoBytes>>10)})
	}
	ct := http.DetectContentType(data)
	if _, ok := extensions[ct]; !ok {
		return "", apperr.Validation("unsupported photo format", map[string]string{"photo": "must be JPEG or PNG"})
	}
	return ct, nil
}

// Key builds the storage path for a new object: <kind>/<uuid>.<ext>.
func Key(kind Kind, contentType string) string {
	return fmt.Sprintf("%s/%s.%s", kind, uuid.NewString(), extensions[contentType])
}

// Store persists a validated photo and returns its public URL.
type Store interface {
	Put(ctx context.Context, kind Kind, data []byte) (string, error)
}
