package profile

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/logging"
)

const (
	defaultSimThreshold = 0.1
	defaultTopK         = 50
)

// Options tunes search defaults.
type Options struct {
	SimThreshold float64
	TopK         int
	Logger       *slog.Logger
}

// Service enforces ownership and the one-profile-per-identity rule.
type Service struct {
	repo   Repository
	opts   Options
	logger *slog.Logger
}

// NewService builds a profile service.
func NewService(repo Repository, opts Options) *Service {
	if opts.SimThreshold <= 0 {
		opts.SimThreshold = defaultSimThreshold
	}
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	return &Service{repo: repo, opts: opts, logger: logging.OrDiscard(opts.Logger)}
}

// Create stores p for owner. If a profile already exists for that id the
// stored record is returned with created=false.
func (s *Service) Create(ctx context.Context, owner string, p Profile) (Profile, bool, error) {
	if err := p.Validate(); err != nil {
		return Profile{}, false, err
	}
	if err := checkOwner(owner, p.ProfileID); err != nil {
		return Profile{}, false, err
	}
	p.PortfolioPhotos = photos(p.PortfolioPhotos)

	created, err := s.repo.Insert(ctx, p)
	if err != nil {
		return Profile{}, false, apperr.Wrap(err, apperr.KindInternal, "insert profile")
	}
	if !created {
		existing, err := s.Get(ctx, p.ProfileID)
		if err != nil {
			return Profile{}, false, err
		}
		s.logger.Info("profile already exists", "profile_id", p.ProfileID)
		return existing, false, nil
	}
	s.logger.Info("profile created", "profile_id", p.ProfileID)
	return p, true, nil
}

// Get returns the profile stored under id.
func (s *Service) Get(ctx context.Context, id string) (Profile, error) {
	id = strings.TrimSpace(id)
	// Ids are UUIDs; anything else cannot exist and must not reach Postgres.
	if _, err := uuid.Parse(id); err != nil {
		return Profile{}, apperr.New(apperr.KindNotFound, "profile not found")
	}
	p, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrProfileNotFound) {
		return Profile{}, apperr.New(apperr.KindNotFound, "profile not found")
	}
	if err != nil {
		return Profile{}, apperr.Wrap(err, apperr.KindInternal, "load profile")
	}
	return p, nil
}

// Update replaces the whole record. Only the owner may update it.
func (s *Service) Update(ctx context.Context, owner string, p Profile) (Profile, error) {
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	if err := checkOwner(owner, p.ProfileID); err != nil {
		return Profile{}, err
	}
	p.PortfolioPhotos = photos(p.PortfolioPhotos)

	err := s.repo.Update(ctx, p)
	if errors.Is(err, ErrProfileNotFound) {
		return Profile{}, apperr.New(apperr.KindNotFound, "profile not found")
	}
	if err != nil {
		return Profile{}, apperr.Wrap(err, apperr.KindInternal, "update profile")
	}
	s.logger.Info("profile updated", "profile_id", p.ProfileID)
	return p, nil
}

// Delete removes the owner's profile. The identity itself is untouched.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	if err := checkOwner(owner, id); err != nil {
		return err
	}
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, ErrProfileNotFound) {
		return apperr.New(apperr.KindNotFound, "profile not found")
	}
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "delete profile")
	}
	s.logger.Info("profile deleted", "profile_id", id)
	return nil
}

// Search ranks profiles by how well their service description matches q.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]Summary, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.SimThreshold <= 0 {
		q.SimThreshold = s.opts.SimThreshold
	}
	if q.TopK <= 0 {
		q.TopK = s.opts.TopK
	}

	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "list profiles")
	}
	candidates := all[:0]
	for _, p := range all {
		if q.SearchCity != "" && !strings.EqualFold(p.ServiceCity, q.SearchCity) {
			continue
		}
		if q.SearchArea != "" && !strings.EqualFold(p.ServiceArea, q.SearchArea) {
			continue
		}
		candidates = append(candidates, p)
	}
	return rank(candidates, q.Query, q.SimThreshold, q.TopK), nil
}

func checkOwner(owner, profileID string) error {
	if owner == "" || owner != profileID {
		return apperr.New(apperr.KindUnauthorized, "profile belongs to another identity")
	}
	return nil
}
