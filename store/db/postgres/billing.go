package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/memoria/store"
)

// GetProjectBilling returns the billing row linked to a project, nil
// when the project has no billing link.
func (d *DB) GetProjectBilling(ctx context.Context, projectID string) (*store.Billing, error) {
	query := `
		SELECT b.id, b.usage_left, b.next_refill_at, b.created_at, b.updated_at
		FROM billings b
		JOIN project_billings pb ON pb.billing_id = b.id
		WHERE pb.project_id = ` + placeholder(1) + `
		LIMIT 1
	`

	var billing store.Billing
	err := d.db.QueryRowContext(ctx, query, projectID).Scan(
		&billing.ID,
		&billing.UsageLeft,
		&billing.NextRefillAt,
		&billing.CreatedAt,
		&billing.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get project billing")
	}

	return &billing, nil
}

// UpdateBilling adjusts the balance or refill date of a billing row.
func (d *DB) UpdateBilling(ctx context.Context, update *store.UpdateBilling) error {
	set, args := []string{}, []any{}

	if update.UsageLeft != nil {
		args = append(args, *update.UsageLeft)
		set = append(set, "usage_left = "+placeholder(len(args)))
	}
	if update.NextRefillAt != nil {
		args = append(args, *update.NextRefillAt)
		set = append(set, "next_refill_at = "+placeholder(len(args)))
	}
	if len(set) == 0 {
		return nil
	}
	set = append(set, "updated_at = now()")

	args = append(args, update.ID)
	stmt := `UPDATE billings SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to update billing")
	}
	return nil
}

// AddBillingUsage deducts spent tokens from the project balance.
// Unmetered billings (usage_left NULL) are left alone; a project with
// no billing link at all is an error.
func (d *DB) AddBillingUsage(ctx context.Context, projectID string, tokens int64) error {
	stmt := `
		UPDATE billings b
		SET usage_left = b.usage_left - ` + placeholder(1) + `, updated_at = now()
		FROM project_billings pb
		WHERE pb.billing_id = b.id
			AND pb.project_id = ` + placeholder(2) + `
			AND b.usage_left IS NOT NULL
	`

	result, err := d.db.ExecContext(ctx, stmt, tokens, projectID)
	if err != nil {
		return errors.Wrap(err, "failed to add billing usage")
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	var linked bool
	err = d.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM project_billings WHERE project_id = "+placeholder(1)+")",
		projectID,
	).Scan(&linked)
	if err != nil {
		return errors.Wrap(err, "failed to check billing link")
	}
	if !linked {
		return errors.Errorf("billing not found for project %s", projectID)
	}
	return nil
}
