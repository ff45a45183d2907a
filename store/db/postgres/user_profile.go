package postgres

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/memoria/store"
)

// CreateUserProfiles inserts a batch of profile slots in one statement
// and returns the new ids in input order.
func (d *DB) CreateUserProfiles(ctx context.Context, creates []*store.CreateUserProfile) ([]uuid.UUID, error) {
	if len(creates) == 0 {
		return []uuid.UUID{}, nil
	}

	values, args := []string{}, []any{}
	for _, create := range creates {
		attrs, err := json.Marshal(create.Attributes)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode profile attributes")
		}
		row := make([]string, 0, 4)
		for _, arg := range []any{create.UserID, create.ProjectID, create.Content, attrs} {
			args = append(args, arg)
			row = append(row, placeholder(len(args)))
		}
		values = append(values, "("+strings.Join(row, ", ")+")")
	}

	stmt := `
		INSERT INTO user_profiles (user_id, project_id, content, attributes)
		VALUES ` + strings.Join(values, ", ") + `
		RETURNING id
	`

	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create user profiles")
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan profile id")
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

// ListUserProfiles returns all slots of a user, newest update first.
func (d *DB) ListUserProfiles(ctx context.Context, find *store.FindUserProfiles) ([]*store.UserProfile, error) {
	query := `
		SELECT id, user_id, project_id, content, attributes, created_at, updated_at
		FROM user_profiles
		WHERE user_id = ` + placeholder(1) + ` AND project_id = ` + placeholder(2) + `
		ORDER BY updated_at DESC
	`

	rows, err := d.db.QueryContext(ctx, query, find.UserID, find.ProjectID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user profiles")
	}
	defer rows.Close()

	list := []*store.UserProfile{}
	for rows.Next() {
		var profile store.UserProfile
		var attrs []byte
		err := rows.Scan(
			&profile.ID,
			&profile.UserID,
			&profile.ProjectID,
			&profile.Content,
			&attrs,
			&profile.CreatedAt,
			&profile.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan user profile")
		}
		if err := jsonbScan(attrs, &profile.Attributes); err != nil {
			return nil, err
		}
		list = append(list, &profile)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// UpdateUserProfile rewrites a slot. The bool reports whether the slot
// existed.
func (d *DB) UpdateUserProfile(ctx context.Context, update *store.UpdateUserProfile) (bool, error) {
	set, args := []string{}, []any{}

	args = append(args, update.Content)
	set = append(set, "content = "+placeholder(len(args)))
	if update.Attributes != nil {
		attrs, err := json.Marshal(update.Attributes)
		if err != nil {
			return false, errors.Wrap(err, "failed to encode profile attributes")
		}
		args = append(args, attrs)
		set = append(set, "attributes = "+placeholder(len(args)))
	}
	set = append(set, "updated_at = now()")

	args = append(args, update.ID, update.UserID, update.ProjectID)
	stmt := `
		UPDATE user_profiles
		SET ` + strings.Join(set, ", ") + `
		WHERE id = ` + placeholder(len(args)-2) + ` AND user_id = ` + placeholder(len(args)-1) + ` AND project_id = ` + placeholder(len(args))

	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return false, errors.Wrap(err, "failed to update user profile")
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// DeleteUserProfiles removes the given slots and reports how many rows
// actually went away.
func (d *DB) DeleteUserProfiles(ctx context.Context, delete *store.DeleteUserProfiles) (int64, error) {
	if len(delete.IDs) == 0 {
		return 0, nil
	}

	stmt := `
		DELETE FROM user_profiles
		WHERE id = ANY(` + placeholder(1) + `) AND user_id = ` + placeholder(2) + ` AND project_id = ` + placeholder(3)

	result, err := d.db.ExecContext(ctx, stmt, pq.Array(delete.IDs), delete.UserID, delete.ProjectID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete user profiles")
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
