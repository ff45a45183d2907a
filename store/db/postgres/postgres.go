package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a connection pool against the configured PostgreSQL
// instance. Schema setup happens separately in Migrate.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	pgDB, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// Size the pool for many short pipeline queries rather than a few
	// long sessions. Connections are recycled to survive server-side
	// idle timeouts and failovers.
	pgDB.SetMaxOpenConns(80)
	pgDB.SetMaxIdleConns(50)
	pgDB.SetConnMaxLifetime(10 * time.Minute)

	driver := DB{db: pgDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	return errors.Wrap(d.db.PingContext(ctx), "database ping failed")
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = 'users')").Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

// schemaTemplate is the full schema. Everything is keyed by the
// (id, project_id) pair so projects stay fully isolated and a user
// delete cascades through blobs, buffers, profiles and events.
// The %d slot is the embedding dimension.
const schemaTemplate = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS projects (
	id UUID NOT NULL DEFAULT gen_random_uuid(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	project_id VARCHAR(64) NOT NULL UNIQUE,
	project_secret VARCHAR(255) NOT NULL,
	profile_config TEXT,
	status VARCHAR(16) NOT NULL DEFAULT 'active',
	PRIMARY KEY (project_id)
);
CREATE INDEX IF NOT EXISTS idx_projects_project_id ON projects (project_id);

CREATE TABLE IF NOT EXISTS billings (
	id UUID NOT NULL DEFAULT gen_random_uuid(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	usage_left INTEGER,
	next_refill_at TIMESTAMPTZ,
	PRIMARY KEY (id)
);

CREATE TABLE IF NOT EXISTS project_billings (
	project_id VARCHAR(64) NOT NULL REFERENCES projects (project_id) ON DELETE CASCADE ON UPDATE CASCADE,
	billing_id UUID NOT NULL REFERENCES billings (id) ON DELETE CASCADE ON UPDATE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (project_id, billing_id)
);
CREATE INDEX IF NOT EXISTS idx_project_billings_project_id ON project_billings (project_id);
CREATE INDEX IF NOT EXISTS idx_project_billings_billing_id ON project_billings (billing_id);

CREATE TABLE IF NOT EXISTS users (
	id UUID NOT NULL DEFAULT gen_random_uuid(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	additional_fields JSONB,
	project_id VARCHAR(64) NOT NULL REFERENCES projects (project_id) ON DELETE CASCADE ON UPDATE CASCADE,
	PRIMARY KEY (id, project_id)
);
CREATE INDEX IF NOT EXISTS idx_users_id_project_id ON users (id, project_id);

CREATE TABLE IF NOT EXISTS general_blobs (
	id UUID NOT NULL DEFAULT gen_random_uuid(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	user_id UUID NOT NULL,
	blob_type VARCHAR(255) NOT NULL,
	blob_data JSONB NOT NULL,
	project_id VARCHAR(64) NOT NULL,
	additional_fields JSONB,
	PRIMARY KEY (id, project_id),
	FOREIGN KEY (user_id, project_id) REFERENCES users (id, project_id) ON DELETE CASCADE ON UPDATE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_general_blobs_user_id_project_id ON general_blobs (user_id, project_id);
CREATE INDEX IF NOT EXISTS idx_general_blobs_user_id_id ON general_blobs (user_id, project_id, id);
CREATE INDEX IF NOT EXISTS idx_general_blobs_user_id_blob_type ON general_blobs (user_id, project_id, blob_type);
CREATE UNIQUE INDEX IF NOT EXISTS idx_general_blobs_id_project_id ON general_blobs (id, project_id);

CREATE TABLE IF NOT EXISTS buffer_zones (
	id UUID NOT NULL DEFAULT gen_random_uuid(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	blob_type VARCHAR(255) NOT NULL,
	token_size INTEGER NOT NULL,
	user_id UUID NOT NULL,
	blob_id UUID NOT NULL,
	project_id VARCHAR(64) NOT NULL,
	PRIMARY KEY (id, project_id),
	FOREIGN KEY (user_id, project_id) REFERENCES users (id, project_id) ON DELETE CASCADE ON UPDATE CASCADE,
	FOREIGN KEY (blob_id, project_id) REFERENCES general_blobs (id, project_id) ON DELETE CASCADE ON UPDATE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_buffer_zones_user_id_blob_type ON buffer_zones (user_id, project_id, blob_type);

CREATE TABLE IF NOT EXISTS user_profiles (
	id UUID NOT NULL DEFAULT gen_random_uuid(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	content TEXT NOT NULL,
	user_id UUID NOT NULL,
	attributes JSONB,
	project_id VARCHAR(64) NOT NULL,
	PRIMARY KEY (id, project_id),
	FOREIGN KEY (user_id, project_id) REFERENCES users (id, project_id) ON DELETE CASCADE ON UPDATE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_user_profiles_user_id_project_id ON user_profiles (user_id, project_id);
CREATE INDEX IF NOT EXISTS idx_user_profiles_user_id_id_project_id ON user_profiles (user_id, project_id, id);

CREATE TABLE IF NOT EXISTS user_events (
	id UUID NOT NULL DEFAULT gen_random_uuid(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	event_data JSONB,
	user_id UUID NOT NULL,
	project_id VARCHAR(64) NOT NULL,
	embedding vector(%d),
	PRIMARY KEY (id, project_id),
	FOREIGN KEY (user_id, project_id) REFERENCES users (id, project_id) ON DELETE CASCADE ON UPDATE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_user_events_user_id_project_id ON user_events (user_id, project_id);
CREATE INDEX IF NOT EXISTS idx_user_events_user_id_id_project_id ON user_events (user_id, project_id, id);
`

// Migrate creates the schema, seeds the root project and verifies that
// the stored embedding column matches the configured dimension.
func (d *DB) Migrate(ctx context.Context) error {
	stmt := fmt.Sprintf(schemaTemplate, d.profile.EmbeddingDim)
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "failed to create schema")
	}
	if err := d.seedRootProject(ctx); err != nil {
		return err
	}
	if err := d.checkEmbeddingDim(ctx); err != nil {
		return err
	}
	slog.Info("database schema ready", "embedding_dim", d.profile.EmbeddingDim)
	return nil
}

// seedRootProject inserts the __root__ project and its billing row so
// the root access token works on a fresh database.
func (d *DB) seedRootProject(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO projects (project_id, project_secret, status)
		VALUES (`+placeholders(3)+`)
		ON CONFLICT (project_id) DO NOTHING
	`, store.RootProjectID, store.RootProjectSecret, store.ProjectStatusActive)
	if err != nil {
		return errors.Wrap(err, "failed to seed root project")
	}

	var linked bool
	err = d.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM project_billings WHERE project_id = "+placeholder(1)+")",
		store.RootProjectID,
	).Scan(&linked)
	if err != nil {
		return errors.Wrap(err, "failed to check root billing link")
	}
	if linked {
		return nil
	}

	var refill any
	if limit := d.profile.UsageTokenLimitActive; limit > 0 {
		refill = limit
	}
	_, err = d.db.ExecContext(ctx, `
		WITH b AS (
			INSERT INTO billings (usage_left, next_refill_at)
			VALUES (`+placeholders(2)+`)
			RETURNING id
		)
		INSERT INTO project_billings (project_id, billing_id)
		SELECT `+placeholder(3)+`, id FROM b
	`, refill, store.NextMonthFirstDay(), store.RootProjectID)
	if err != nil {
		return errors.Wrap(err, "failed to seed root billing")
	}
	return nil
}

// checkEmbeddingDim compares the vector column against the configured
// dimension. In pgvector the dimension is stored as atttypmod.
func (d *DB) checkEmbeddingDim(ctx context.Context) error {
	var dim sql.NullInt64
	err := d.db.QueryRowContext(ctx, `
		SELECT atttypmod
		FROM pg_attribute
		JOIN pg_class ON pg_attribute.attrelid = pg_class.oid
		JOIN pg_namespace ON pg_class.relnamespace = pg_namespace.oid
		WHERE pg_class.relname = 'user_events'
		AND pg_attribute.attname = 'embedding'
		AND pg_namespace.nspname = current_schema()
	`).Scan(&dim)
	if err != nil {
		return errors.Wrap(err, "failed to read embedding column dimension")
	}
	if !dim.Valid {
		return errors.New("embedding column does not exist in user_events")
	}
	if int(dim.Int64) != d.profile.EmbeddingDim {
		return errors.Errorf(
			"configured embedding dimension (%d) does not match database dimension (%d), rebuild user_events.embedding or fix the config",
			d.profile.EmbeddingDim, dim.Int64,
		)
	}
	return nil
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func placeholders(n int) string {
	list := make([]string, n)
	for i := range list {
		list[i] = placeholder(i + 1)
	}
	return strings.Join(list, ", ")
}

// jsonbParam renders v as a JSONB parameter, NULL for a nil map.
func jsonbParam(v map[string]any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode jsonb value")
	}
	return raw, nil
}

// jsonbScan decodes a JSONB column into out, leaving out untouched for
// a NULL column.
func jsonbScan(raw []byte, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, out), "failed to decode jsonb value")
}
