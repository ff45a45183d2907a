package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/memoria/store"
)

// CreateBlob persists a raw blob document.
func (d *DB) CreateBlob(ctx context.Context, create *store.CreateBlob) (*store.Blob, error) {
	payload, err := json.Marshal(create.Payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode blob payload")
	}
	fields, err := jsonbParam(create.Fields)
	if err != nil {
		return nil, err
	}

	stmt := `
		INSERT INTO general_blobs (user_id, blob_type, blob_data, project_id, additional_fields)
		VALUES (` + placeholders(5) + `)
		RETURNING id, created_at, updated_at
	`

	blob := store.Blob{
		UserID:    create.UserID,
		ProjectID: create.ProjectID,
		Type:      create.Type,
		Payload:   create.Payload,
		Fields:    create.Fields,
	}
	err = d.db.QueryRowContext(ctx, stmt,
		create.UserID,
		string(create.Type),
		payload,
		create.ProjectID,
		fields,
	).Scan(&blob.ID, &blob.CreatedAt, &blob.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create blob")
	}

	return &blob, nil
}

// GetBlob returns one blob or nil when it does not exist for the user.
func (d *DB) GetBlob(ctx context.Context, find *store.FindBlob) (*store.Blob, error) {
	query := `
		SELECT id, user_id, blob_type, blob_data, project_id, additional_fields, created_at, updated_at
		FROM general_blobs
		WHERE id = ` + placeholder(1) + ` AND user_id = ` + placeholder(2) + ` AND project_id = ` + placeholder(3)

	rows, err := d.db.QueryContext(ctx, query, find.ID, find.UserID, find.ProjectID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get blob")
	}
	defer rows.Close()

	blobs, err := scanBlobs(rows)
	if err != nil {
		return nil, err
	}
	if len(blobs) == 0 {
		return nil, nil
	}
	return blobs[0], nil
}

// ListBlobs fetches a batch of blobs by id, oldest first.
func (d *DB) ListBlobs(ctx context.Context, projectID string, ids []uuid.UUID) ([]*store.Blob, error) {
	if len(ids) == 0 {
		return []*store.Blob{}, nil
	}

	query := `
		SELECT id, user_id, blob_type, blob_data, project_id, additional_fields, created_at, updated_at
		FROM general_blobs
		WHERE project_id = ` + placeholder(1) + ` AND id = ANY(` + placeholder(2) + `)
		ORDER BY created_at
	`

	rows, err := d.db.QueryContext(ctx, query, projectID, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list blobs")
	}
	defer rows.Close()

	return scanBlobs(rows)
}

func scanBlobs(rows *sql.Rows) ([]*store.Blob, error) {
	list := []*store.Blob{}
	for rows.Next() {
		var blob store.Blob
		var blobType string
		var payload, fields []byte
		err := rows.Scan(
			&blob.ID,
			&blob.UserID,
			&blobType,
			&payload,
			&blob.ProjectID,
			&fields,
			&blob.CreatedAt,
			&blob.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan blob")
		}
		blob.Type = store.BlobType(blobType)
		if err := jsonbScan(payload, &blob.Payload); err != nil {
			return nil, err
		}
		if err := jsonbScan(fields, &blob.Fields); err != nil {
			return nil, err
		}
		list = append(list, &blob)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// ListBlobIDs pages through a user's blob ids of one type, oldest first.
func (d *DB) ListBlobIDs(ctx context.Context, find *store.FindBlobIDs) ([]uuid.UUID, error) {
	pageSize := find.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	query := `
		SELECT id
		FROM general_blobs
		WHERE user_id = ` + placeholder(1) + ` AND project_id = ` + placeholder(2) + ` AND blob_type = ` + placeholder(3) + `
		ORDER BY created_at
		OFFSET ` + placeholder(4) + `
		LIMIT ` + placeholder(5)

	rows, err := d.db.QueryContext(ctx, query,
		find.UserID,
		find.ProjectID,
		string(find.Type),
		find.Page*pageSize,
		pageSize,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list blob ids")
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan blob id")
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func (d *DB) DeleteBlob(ctx context.Context, delete *store.DeleteBlob) error {
	stmt := `
		DELETE FROM general_blobs
		WHERE id = ` + placeholder(1) + ` AND user_id = ` + placeholder(2) + ` AND project_id = ` + placeholder(3)
	if _, err := d.db.ExecContext(ctx, stmt, delete.ID, delete.UserID, delete.ProjectID); err != nil {
		return errors.Wrap(err, "failed to delete blob")
	}
	return nil
}

// DeleteBlobs removes a processed batch after a flush.
func (d *DB) DeleteBlobs(ctx context.Context, projectID string, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	stmt := `DELETE FROM general_blobs WHERE project_id = ` + placeholder(1) + ` AND id = ANY(` + placeholder(2) + `)`
	if _, err := d.db.ExecContext(ctx, stmt, projectID, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "failed to delete blobs")
	}
	return nil
}
