package postgres

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/memoria/store"
)

// CreateBufferEntry parks a blob in the user's buffer lane.
func (d *DB) CreateBufferEntry(ctx context.Context, create *store.CreateBufferEntry) (*store.BufferEntry, error) {
	stmt := `
		INSERT INTO buffer_zones (user_id, blob_id, blob_type, token_size, project_id)
		VALUES (` + placeholders(5) + `)
		RETURNING id, created_at, updated_at
	`

	entry := store.BufferEntry{
		UserID:    create.UserID,
		ProjectID: create.ProjectID,
		BlobID:    create.BlobID,
		BlobType:  create.BlobType,
		TokenSize: create.TokenSize,
	}
	err := d.db.QueryRowContext(ctx, stmt,
		create.UserID,
		create.BlobID,
		string(create.BlobType),
		create.TokenSize,
		create.ProjectID,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create buffer entry")
	}

	return &entry, nil
}

func (d *DB) CountBufferEntries(ctx context.Context, find *store.FindBuffer) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM buffer_zones
		WHERE user_id = ` + placeholder(1) + ` AND project_id = ` + placeholder(2) + ` AND blob_type = ` + placeholder(3)

	var count int
	err := d.db.QueryRowContext(ctx, query, find.UserID, find.ProjectID, string(find.BlobType)).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count buffer entries")
	}
	return count, nil
}

func (d *DB) SumBufferTokenSize(ctx context.Context, find *store.FindBuffer) (int, error) {
	query := `
		SELECT COALESCE(SUM(token_size), 0)
		FROM buffer_zones
		WHERE user_id = ` + placeholder(1) + ` AND project_id = ` + placeholder(2) + ` AND blob_type = ` + placeholder(3)

	var sum int
	err := d.db.QueryRowContext(ctx, query, find.UserID, find.ProjectID, string(find.BlobType)).Scan(&sum)
	if err != nil {
		return 0, errors.Wrap(err, "failed to sum buffer token size")
	}
	return sum, nil
}

// LatestBufferCreatedAt returns the newest entry time of the lane, nil
// when the lane is empty.
func (d *DB) LatestBufferCreatedAt(ctx context.Context, find *store.FindBuffer) (*time.Time, error) {
	query := `
		SELECT MAX(created_at)
		FROM buffer_zones
		WHERE user_id = ` + placeholder(1) + ` AND project_id = ` + placeholder(2) + ` AND blob_type = ` + placeholder(3)

	var latest *time.Time
	err := d.db.QueryRowContext(ctx, query, find.UserID, find.ProjectID, string(find.BlobType)).Scan(&latest)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read latest buffer time")
	}
	return latest, nil
}

// ListBufferEntries returns the lane in arrival order.
func (d *DB) ListBufferEntries(ctx context.Context, find *store.FindBuffer) ([]*store.BufferEntry, error) {
	query := `
		SELECT id, user_id, blob_id, blob_type, token_size, project_id, created_at, updated_at
		FROM buffer_zones
		WHERE user_id = ` + placeholder(1) + ` AND project_id = ` + placeholder(2) + ` AND blob_type = ` + placeholder(3) + `
		ORDER BY created_at
	`

	rows, err := d.db.QueryContext(ctx, query, find.UserID, find.ProjectID, string(find.BlobType))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list buffer entries")
	}
	defer rows.Close()

	list := []*store.BufferEntry{}
	for rows.Next() {
		var entry store.BufferEntry
		var blobType string
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.BlobID,
			&blobType,
			&entry.TokenSize,
			&entry.ProjectID,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan buffer entry")
		}
		entry.BlobType = store.BlobType(blobType)
		list = append(list, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// DeleteBufferEntries clears the whole lane after a flush.
func (d *DB) DeleteBufferEntries(ctx context.Context, find *store.FindBuffer) error {
	stmt := `
		DELETE FROM buffer_zones
		WHERE user_id = ` + placeholder(1) + ` AND project_id = ` + placeholder(2) + ` AND blob_type = ` + placeholder(3)
	if _, err := d.db.ExecContext(ctx, stmt, find.UserID, find.ProjectID, string(find.BlobType)); err != nil {
		return errors.Wrap(err, "failed to delete buffer entries")
	}
	return nil
}
