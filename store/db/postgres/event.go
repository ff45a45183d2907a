package postgres

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/memoria/store"
)

// CreateUserEvent persists an event document with its embedding. A nil
// embedding stores NULL; the event then never matches a vector search.
func (d *DB) CreateUserEvent(ctx context.Context, create *store.CreateUserEvent) (*store.UserEvent, error) {
	data, err := json.Marshal(create.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode event data")
	}

	var embedding any
	if create.Embedding != nil {
		embedding = pgvector.NewVector(create.Embedding)
	}

	stmt := `
		INSERT INTO user_events (user_id, project_id, event_data, embedding)
		VALUES (` + placeholders(4) + `)
		RETURNING id, created_at, updated_at
	`

	event := store.UserEvent{
		UserID:    create.UserID,
		ProjectID: create.ProjectID,
		Data:      create.Data,
	}
	err = d.db.QueryRowContext(ctx, stmt, create.UserID, create.ProjectID, data, embedding).
		Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create user event")
	}

	return &event, nil
}

// ListUserEvents returns recent events, newest first.
func (d *DB) ListUserEvents(ctx context.Context, find *store.FindUserEvents) ([]*store.UserEvent, error) {
	limit := find.Limit
	if limit <= 0 {
		limit = 10
	}

	where, args := []string{"1 = 1"}, []any{}
	where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, find.UserID)
	where, args = append(where, "project_id = "+placeholder(len(args)+1)), append(args, find.ProjectID)
	if find.RequireTip {
		where = append(where, "event_data->>'event_tip' IS NOT NULL")
	}
	args = append(args, limit)

	query := `
		SELECT id, user_id, project_id, event_data, created_at, updated_at
		FROM user_events
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC
		LIMIT ` + placeholder(len(args))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user events")
	}
	defer rows.Close()

	list := []*store.UserEvent{}
	for rows.Next() {
		var event store.UserEvent
		var data []byte
		err := rows.Scan(
			&event.ID,
			&event.UserID,
			&event.ProjectID,
			&data,
			&event.CreatedAt,
			&event.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan user event")
		}
		if err := jsonbScan(data, &event.Data); err != nil {
			return nil, err
		}
		list = append(list, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// UpdateUserEvent overlays the given fields onto the stored document.
// JSONB concatenation keeps fields the update does not mention.
func (d *DB) UpdateUserEvent(ctx context.Context, update *store.UpdateUserEvent) (bool, error) {
	patch, err := json.Marshal(update.Data)
	if err != nil {
		return false, errors.Wrap(err, "failed to encode event patch")
	}

	stmt := `
		UPDATE user_events
		SET event_data = event_data || ` + placeholder(1) + `::jsonb, updated_at = now()
		WHERE id = ` + placeholder(2) + ` AND user_id = ` + placeholder(3) + ` AND project_id = ` + placeholder(4)

	result, err := d.db.ExecContext(ctx, stmt, patch, update.ID, update.UserID, update.ProjectID)
	if err != nil {
		return false, errors.Wrap(err, "failed to update user event")
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// DeleteUserEvent removes one event. The bool reports whether it existed.
func (d *DB) DeleteUserEvent(ctx context.Context, delete *store.DeleteUserEvent) (bool, error) {
	stmt := `
		DELETE FROM user_events
		WHERE id = ` + placeholder(1) + ` AND user_id = ` + placeholder(2) + ` AND project_id = ` + placeholder(3)

	result, err := d.db.ExecContext(ctx, stmt, delete.ID, delete.UserID, delete.ProjectID)
	if err != nil {
		return false, errors.Wrap(err, "failed to delete user event")
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// SearchUserEvents performs vector similarity search using pgvector.
func (d *DB) SearchUserEvents(ctx context.Context, search *store.SearchUserEvents) ([]*store.UserEvent, error) {
	limit := search.Limit
	if limit <= 0 {
		limit = 10
	}
	days := search.TimeRangeDays
	if days <= 0 {
		days = 21
	}

	// The <=> operator computes cosine distance, so similarity is
	// 1 - distance and ordering by distance puts the best match first.
	query := `
		SELECT id, user_id, project_id, event_data, created_at, updated_at,
			1 - (embedding <=> ` + placeholder(1) + `) AS similarity
		FROM user_events
		WHERE user_id = ` + placeholder(2) + ` AND project_id = ` + placeholder(3) + `
			AND created_at > now() - make_interval(days => ` + placeholder(4) + `)
			AND 1 - (embedding <=> ` + placeholder(5) + `) > ` + placeholder(6) + `
		ORDER BY embedding <=> ` + placeholder(7) + `
		LIMIT ` + placeholder(8)

	vector := pgvector.NewVector(search.Embedding)
	rows, err := d.db.QueryContext(ctx, query,
		vector,
		search.UserID,
		search.ProjectID,
		days,
		vector,
		search.MinSimilarity,
		vector,
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search user events")
	}
	defer rows.Close()

	list := []*store.UserEvent{}
	for rows.Next() {
		var event store.UserEvent
		var data []byte
		var similarity float64
		err := rows.Scan(
			&event.ID,
			&event.UserID,
			&event.ProjectID,
			&data,
			&event.CreatedAt,
			&event.UpdatedAt,
			&similarity,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan user event search result")
		}
		if err := jsonbScan(data, &event.Data); err != nil {
			return nil, err
		}
		event.Similarity = &similarity
		list = append(list, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
