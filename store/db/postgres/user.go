package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/hrygo/memoria/store"
)

// CreateUser inserts a user, honoring a caller-supplied id when given.
func (d *DB) CreateUser(ctx context.Context, create *store.CreateUser) (*store.User, error) {
	fields, err := jsonbParam(create.Fields)
	if err != nil {
		return nil, err
	}

	stmt := `
		INSERT INTO users (id, additional_fields, project_id)
		VALUES (COALESCE(` + placeholder(1) + `, gen_random_uuid()), ` + placeholder(2) + `, ` + placeholder(3) + `)
		RETURNING id, created_at, updated_at
	`

	user := store.User{ProjectID: create.ProjectID, Fields: create.Fields}
	err = d.db.QueryRowContext(ctx, stmt, create.ID, fields, create.ProjectID).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}

	return &user, nil
}

// GetUser returns the user or nil when the id is unknown in the project.
func (d *DB) GetUser(ctx context.Context, find *store.FindUser) (*store.User, error) {
	query := `
		SELECT id, additional_fields, project_id, created_at, updated_at
		FROM users
		WHERE id = ` + placeholder(1) + ` AND project_id = ` + placeholder(2)

	var user store.User
	var fields []byte
	err := d.db.QueryRowContext(ctx, query, find.ID, find.ProjectID).
		Scan(&user.ID, &fields, &user.ProjectID, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}
	if err := jsonbScan(fields, &user.Fields); err != nil {
		return nil, err
	}

	return &user, nil
}

// UpdateUser replaces the free-form fields. Returns nil when the user
// does not exist.
func (d *DB) UpdateUser(ctx context.Context, update *store.UpdateUser) (*store.User, error) {
	fields, err := jsonbParam(update.Fields)
	if err != nil {
		return nil, err
	}

	stmt := `
		UPDATE users
		SET additional_fields = ` + placeholder(1) + `, updated_at = now()
		WHERE id = ` + placeholder(2) + ` AND project_id = ` + placeholder(3) + `
		RETURNING id, project_id, created_at, updated_at
	`

	user := store.User{Fields: update.Fields}
	err = d.db.QueryRowContext(ctx, stmt, fields, update.ID, update.ProjectID).
		Scan(&user.ID, &user.ProjectID, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to update user")
	}

	return &user, nil
}

// DeleteUser removes the user, reporting whether they existed. Blobs,
// buffers, profiles and events go with it through the cascading
// foreign keys.
func (d *DB) DeleteUser(ctx context.Context, delete *store.DeleteUser) (bool, error) {
	stmt := `DELETE FROM users WHERE id = ` + placeholder(1) + ` AND project_id = ` + placeholder(2)
	res, err := d.db.ExecContext(ctx, stmt, delete.ID, delete.ProjectID)
	if err != nil {
		return false, errors.Wrap(err, "failed to delete user")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to delete user")
	}
	return affected > 0, nil
}
