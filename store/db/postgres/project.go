package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/hrygo/memoria/store"
)

// CreateProject provisions a tenant. Only the bootstrap path and the
// admin CLI call this; the HTTP API treats projects as read-only
// except for their profile config.
func (d *DB) CreateProject(ctx context.Context, create *store.CreateProject) (*store.Project, error) {
	status := create.Status
	if status == "" {
		status = store.ProjectStatusActive
	}

	stmt := `
		INSERT INTO projects (project_id, project_secret, status)
		VALUES (` + placeholders(3) + `)
		RETURNING project_id, project_secret, status, created_at, updated_at
	`

	var project store.Project
	err := d.db.QueryRowContext(ctx, stmt, create.ID, create.Secret, status).
		Scan(&project.ID, &project.Secret, &project.Status, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create project")
	}

	return &project, nil
}

// GetProject returns the tenant or nil when the id is unknown.
func (d *DB) GetProject(ctx context.Context, projectID string) (*store.Project, error) {
	query := `
		SELECT project_id, project_secret, COALESCE(profile_config, ''), status, created_at, updated_at
		FROM projects
		WHERE project_id = ` + placeholder(1)

	var project store.Project
	err := d.db.QueryRowContext(ctx, query, projectID).Scan(
		&project.ID,
		&project.Secret,
		&project.ProfileConfig,
		&project.Status,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get project")
	}

	return &project, nil
}

// UpdateProjectProfileConfig stores the per-project memory config. It
// is the only project field the API may touch.
func (d *DB) UpdateProjectProfileConfig(ctx context.Context, projectID string, config string) error {
	stmt := `
		UPDATE projects
		SET profile_config = ` + placeholder(1) + `, updated_at = now()
		WHERE project_id = ` + placeholder(2)
	if _, err := d.db.ExecContext(ctx, stmt, config, projectID); err != nil {
		return errors.Wrap(err, "failed to update project profile config")
	}
	return nil
}
