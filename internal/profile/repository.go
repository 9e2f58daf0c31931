package profile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrProfileNotFound is returned when no profile matches a lookup.
var ErrProfileNotFound = errors.New("profile not found")

// Repository persists profiles.
type Repository interface {
	// Insert stores p unless a profile with the same id exists. created
	// reports whether this call stored it.
	Insert(ctx context.Context, p Profile) (created bool, err error)
	Get(ctx context.Context, id string) (Profile, error)
	Update(ctx context.Context, p Profile) error
	Delete(ctx context.Context, id string) error
	// List returns every profile, for search ranking.
	List(ctx context.Context) ([]Profile, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed profile repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const (
	profileColumns = `profile_id, full_name, phone_number, date_of_birth, service_city,
        service_area, service_description, profile_photo, portfolio_photos`
	selectColumns = `profile_id::text, full_name, phone_number, date_of_birth, service_city,
        service_area, service_description, profile_photo, portfolio_photos`
)

func (r *PostgresRepository) Insert(ctx context.Context, p Profile) (bool, error) {
	tag, err := r.db.Exec(ctx, `INSERT INTO profiles (`+profileColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (profile_id) DO NOTHING`,
		p.ProfileID, p.FullName, p.PhoneNumber, p.DateOfBirth, p.ServiceCity,
		p.ServiceArea, p.ServiceDescription, p.ProfilePhoto, photos(p.PortfolioPhotos))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Profile{}, ErrProfileNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM profiles WHERE profile_id = $1`, id)
	return scanProfile(row)
}

func (r *PostgresRepository) Update(ctx context.Context, p Profile) error {
	tag, err := r.db.Exec(ctx, `UPDATE profiles SET full_name = $2, phone_number = $3, date_of_birth = $4,
        service_city = $5, service_area = $6, service_description = $7, profile_photo = $8,
        portfolio_photos = $9, updated_at = NOW()
        WHERE profile_id = $1`,
		p.ProfileID, p.FullName, p.PhoneNumber, p.DateOfBirth, p.ServiceCity,
		p.ServiceArea, p.ServiceDescription, p.ProfilePhoto, photos(p.PortfolioPhotos))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrProfileNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE profile_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Profile, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectColumns+` FROM profiles ORDER BY profile_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ProfileID, &p.FullName, &p.PhoneNumber, &p.DateOfBirth, &p.ServiceCity,
		&p.ServiceArea, &p.ServiceDescription, &p.ProfilePhoto, &p.PortfolioPhotos)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	if p.PortfolioPhotos == nil {
		p.PortfolioPhotos = []string{}
	}
	return p, nil
}

func photos(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
