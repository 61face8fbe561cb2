package accounts

import (
	"context"
	"database/sql"
	"io/fs"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/schema"
)

// RegisterPersistenceModels registers the account models with the
// persistence layer. Call once before creating a client.
func RegisterPersistenceModels() {
	persistence.RegisterModel((*User)(nil))
	persistence.RegisterModel((*Subscription)(nil))
	persistence.RegisterModel((*Video)(nil))
	persistence.RegisterModel((*WatchEvent)(nil))
}

// SetupPersistence builds a persistence client carrying this package's
// models and migrations, validates the dialect sources, and runs the
// migrations.
func SetupPersistence(ctx context.Context, cfg persistence.Config, db *sql.DB, dialect schema.Dialect) (*persistence.Client, error) {
	RegisterPersistenceModels()

	client, err := persistence.New(cfg, db, dialect)
	if err != nil {
		return nil, err
	}

	migrations, err := fs.Sub(GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, err
	}

	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return nil, err
	}

	if err := client.Migrate(ctx); err != nil {
		return nil, err
	}

	return client, nil
}
