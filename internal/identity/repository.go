package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrIdentityNotFound is returned when no identity matches a lookup.
var ErrIdentityNotFound = errors.New("identity not found")

// Repository persists identities.
type Repository interface {
	// FindOrCreate returns the identity bound to phone, creating it on first
	// verification. Concurrent calls for one phone yield the same identity.
	FindOrCreate(ctx context.Context, phone string) (Identity, error)
	FindByID(ctx context.Context, id string) (Identity, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindOrCreate inserts the identity if the phone is new and returns the stored row.
func (r *PostgresRepository) FindOrCreate(ctx context.Context, phone string) (Identity, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO identities (id, phone, verified, created_at)
        VALUES ($1, $2, TRUE, $3)
        ON CONFLICT (phone) DO UPDATE SET verified = TRUE
        RETURNING id, phone, verified, created_at`, uuid.New(), phone, time.Now().UTC())
	return scanIdentity(row)
}

// FindByID fetches an identity by its identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Identity, error) {
	identityID, err := uuid.Parse(id)
	if err != nil {
		return Identity{}, ErrIdentityNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, phone, verified, created_at FROM identities WHERE id = $1`, identityID)
	return scanIdentity(row)
}

func scanIdentity(row pgx.Row) (Identity, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		ident     Identity
	)
	if err := row.Scan(&id, &ident.Phone, &ident.Verified, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrIdentityNotFound
		}
		return Identity{}, err
	}
	ident.ID = id.String()
	ident.CreatedAt = createdAt.UTC()
	return ident, nil
}
