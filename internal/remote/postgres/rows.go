package postgres

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/dentora/dentsync/internal/errs"
	"github.com/dentora/dentsync/internal/model"
	"github.com/dentora/dentsync/internal/remote"
)

// DefaultPageSize bounds List when the filter does not set a limit.
const DefaultPageSize = 500

// RowsRepo implements remote.Rows over the hosted Postgres tables. Every
// domain partition maps to a table of the same name with columns
// (id, clinic_id, data, updated_at).
type RowsRepo struct{ db *DB }

// NewRowsRepo constructs the row repository.
func NewRowsRepo(db *DB) *RowsRepo { return &RowsRepo{db: db} }

// tableFor guards against a partition name reaching SQL unchecked.
func tableFor(part model.Partition) (string, error) {
	for _, p := range model.DomainPartitions {
		if p == part {
			return string(p), nil
		}
	}
	return "", fmt.Errorf("%w: no remote table for partition %q", errs.ErrNotFound, part)
}

// List returns a page of rows, newest first, clinic-scoped unless the filter
// says otherwise.
func (r *RowsRepo) List(ctx context.Context, part model.Partition, f remote.ListFilter) ([]remote.Row, error) {
	table, err := tableFor(part)
	if err != nil {
		return nil, err
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	var (
		q    string
		args []any
	)
	if f.ClinicID != nil {
		q = fmt.Sprintf(`SELECT id, clinic_id, data, updated_at FROM %s WHERE clinic_id=$1 ORDER BY updated_at DESC LIMIT $2`, table)
		args = []any{*f.ClinicID, limit}
	} else {
		q = fmt.Sprintf(`SELECT id, clinic_id, data, updated_at FROM %s ORDER BY updated_at DESC LIMIT $1`, table)
		args = []any{limit}
	}

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []remote.Row
	for rows.Next() {
		var row remote.Row
		if err := rows.Scan(&row.ID, &row.ClinicID, &row.Payload, &row.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, row)
	}
	return out, mapErr(rows.Err())
}

// Get returns a single row by id.
func (r *RowsRepo) Get(ctx context.Context, part model.Partition, id uuid.UUID) (*remote.Row, error) {
	table, err := tableFor(part)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT id, clinic_id, data, updated_at FROM %s WHERE id=$1`, table)
	var row remote.Row
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&row.ID, &row.ClinicID, &row.Payload, &row.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &row, nil
}

// Insert creates a row.
func (r *RowsRepo) Insert(ctx context.Context, part model.Partition, row remote.Row) error {
	table, err := tableFor(part)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, clinic_id, data, updated_at) VALUES ($1,$2,$3,now())`, table)
	_, err = r.db.Pool.Exec(ctx, q, row.ID, row.ClinicID, row.Payload)
	return mapErr(err)
}

// Update overwrites a row's payload unconditionally. An update for a row that
// was never created remotely (queued create lost server-side) is upserted
// rather than dropped, so replay converges on the final queued state.
func (r *RowsRepo) Update(ctx context.Context, part model.Partition, row remote.Row) error {
	table, err := tableFor(part)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`
INSERT INTO %s (id, clinic_id, data, updated_at) VALUES ($1,$2,$3,now())
ON CONFLICT (id) DO UPDATE SET data=excluded.data, updated_at=now()`, table)
	_, err = r.db.Pool.Exec(ctx, q, row.ID, row.ClinicID, row.Payload)
	return mapErr(err)
}

// Delete removes a row; deleting a missing row is not an error.
func (r *RowsRepo) Delete(ctx context.Context, part model.Partition, id uuid.UUID) error {
	table, err := tableFor(part)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, table)
	_, err = r.db.Pool.Exec(ctx, q, id)
	return mapErr(err)
}
