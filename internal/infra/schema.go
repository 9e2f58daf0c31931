package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS identities (
        id UUID PRIMARY KEY,
        phone TEXT NOT NULL UNIQUE,
        verified BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE TABLE IF NOT EXISTS profiles (
        profile_id UUID PRIMARY KEY REFERENCES identities (id),
        full_name TEXT NOT NULL,
        phone_number TEXT NOT NULL,
        date_of_birth TEXT NOT NULL,
        service_city TEXT NOT NULL,
        service_area TEXT NOT NULL,
        service_description TEXT NOT NULL DEFAULT '',
        profile_photo TEXT NOT NULL DEFAULT '',
        portfolio_photos TEXT[] NOT NULL DEFAULT '{}',
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE INDEX IF NOT EXISTS profiles_service_city_idx ON profiles (service_city)`,
}

// Migrate creates the tables the API needs if they are missing.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
