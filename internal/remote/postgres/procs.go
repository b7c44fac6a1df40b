package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/dentora/dentsync/internal/model"
)

// ProcsRepo implements remote.Procs by calling the backend's SQL functions.
type ProcsRepo struct{ db *DB }

// NewProcsRepo constructs the procedures repository.
func NewProcsRepo(db *DB) *ProcsRepo { return &ProcsRepo{db: db} }

// NextInvoiceNumber reserves and returns the next invoice number for the clinic.
func (r *ProcsRepo) NextInvoiceNumber(ctx context.Context, clinicID uuid.UUID) (int64, error) {
	const q = `SELECT next_invoice_number($1)`
	var n int64
	if err := r.db.Pool.QueryRow(ctx, q, clinicID).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

// ChartStats computes dental-chart statistics for the patient server-side.
func (r *ProcsRepo) ChartStats(ctx context.Context, patientID uuid.UUID) (model.ChartStats, error) {
	const q = `SELECT treated_teeth, procedure_count, total_cost, last_visit FROM chart_stats($1)`
	st := model.ChartStats{PatientID: patientID}
	if err := r.db.Pool.QueryRow(ctx, q, patientID).Scan(&st.TreatedTeeth, &st.ProcedureCount, &st.TotalCost, &st.LastVisit); err != nil {
		return model.ChartStats{}, mapErr(err)
	}
	return st, nil
}
