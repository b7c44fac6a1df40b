package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/dentora/dentsync/internal/authz"
	"github.com/dentora/dentsync/internal/cache"
	"github.com/dentora/dentsync/internal/errs"
	"github.com/dentora/dentsync/internal/localstore"
	"github.com/dentora/dentsync/internal/model"
	"github.com/dentora/dentsync/internal/remote"
)

// Facade is the single entry point UI code calls for CRUD. It hides the
// online/offline decision: writes that cannot reach the backend are queued and
// applied to the local mirror optimistically; reads degrade to the mirror.
type Facade struct {
	store  *localstore.Store
	rows   remote.Rows
	procs  remote.Procs
	engine *Engine
	sess   Session
	stats  *cache.Cache[uuid.UUID, model.ChartStats]
	log    *zap.Logger
}

// NewFacade constructs the facade for one signed-in session. The stats cache
// is owned by the caller and injected, never a package global.
func NewFacade(store *localstore.Store, rows remote.Rows, procs remote.Procs,
	engine *Engine, sess Session, stats *cache.Cache[uuid.UUID, model.ChartStats], log *zap.Logger) *Facade {
	return &Facade{
		store:  store,
		rows:   rows,
		procs:  procs,
		engine: engine,
		sess:   sess,
		stats:  stats,
		log:    log,
	}
}

// Sync forces a queue drain and mirror refresh.
func (f *Facade) Sync(ctx context.Context) (SyncReport, error) {
	return f.engine.ForceSync(ctx)
}

// QueueDepth reports how many writes are still waiting for the backend.
func (f *Facade) QueueDepth(ctx context.Context) (int, error) {
	return f.store.QueueDepth(ctx)
}

// NextInvoiceNumber reserves the next invoice number. Remote-only: number
// generation cannot be done safely against a mirror.
func (f *Facade) NextInvoiceNumber(ctx context.Context) (int64, error) {
	if !f.sess.Caps.Has(authz.CapInvoicesWrite) {
		return 0, errs.ErrForbidden
	}
	return f.procs.NextInvoiceNumber(ctx, f.sess.User.ClinicID)
}

// ChartStats returns dental-chart statistics for a patient, cached for the
// stats cache's TTL. When the backend is unreachable the stats are computed
// from the mirrored treatments instead.
func (f *Facade) ChartStats(ctx context.Context, patientID uuid.UUID) (model.ChartStats, error) {
	if st, ok := f.stats.Get(patientID); ok {
		return st, nil
	}
	st, err := f.procs.ChartStats(ctx, patientID)
	if err != nil {
		if !errors.Is(err, errs.ErrRemoteUnavailable) {
			return model.ChartStats{}, err
		}
		if st, err = f.localChartStats(ctx, patientID); err != nil {
			return model.ChartStats{}, err
		}
	}
	f.stats.Set(patientID, st)
	return st, nil
}

// localChartStats aggregates the mirrored treatments for a patient.
func (f *Facade) localChartStats(ctx context.Context, patientID uuid.UUID) (model.ChartStats, error) {
	payloads, err := f.store.GetAll(ctx, model.PartTreatments)
	if err != nil {
		return model.ChartStats{}, err
	}
	st := model.ChartStats{PatientID: patientID}
	teeth := map[int]struct{}{}
	for _, p := range payloads {
		var tr model.Treatment
		if err := json.Unmarshal(p, &tr); err != nil || tr.PatientID != patientID {
			continue
		}
		st.ProcedureCount++
		st.TotalCost += tr.Cost
		if tr.Tooth != 0 {
			teeth[tr.Tooth] = struct{}{}
		}
		if tr.PerformedAt.After(st.LastVisit) {
			st.LastVisit = tr.PerformedAt
		}
	}
	st.TreatedTeeth = len(teeth)
	return st, nil
}

// write attempts the remote call and transparently queues on an unreachable
// backend, keeping the local mirror in step either way.
func (f *Facade) write(ctx context.Context, part model.Partition, action model.Action, id uuid.UUID, payload []byte) error {
	row := remote.Row{ID: id, ClinicID: f.sess.User.ClinicID, Payload: payload}

	var rerr error
	switch action {
	case model.ActionCreate:
		rerr = f.rows.Insert(ctx, part, row)
	case model.ActionUpdate:
		rerr = f.rows.Update(ctx, part, row)
	case model.ActionDelete:
		rerr = f.rows.Delete(ctx, part, id)
	}

	if rerr != nil {
		if !errors.Is(rerr, errs.ErrRemoteUnavailable) {
			return rerr
		}
		if _, err := f.store.Enqueue(ctx, part, action, payload); err != nil {
			return err
		}
		f.log.Info("write queued for replay",
			zap.String("partition", string(part)),
			zap.String("action", string(action)),
		)
	}

	// optimistic (or confirming) local apply so the UI sees the change now
	if action == model.ActionDelete {
		return f.store.Delete(ctx, part, id.String())
	}
	return f.store.Put(ctx, part, id.String(), payload)
}

// list decodes the shared read path's payloads through decode, skipping rows
// that fail to decode and rows outside the session's clinic scope.
func listScoped[T any](ctx context.Context, f *Facade, part model.Partition,
	decode func([]byte) (T, uuid.UUID, bool)) ([]T, error) {

	payloads, err := f.engine.List(ctx, part)
	if err != nil {
		return nil, err
	}
	allClinics := f.sess.Caps.Has(authz.CapAllClinics)
	out := make([]T, 0, len(payloads))
	for _, p := range payloads {
		v, clinic, ok := decode(p)
		if !ok {
			continue
		}
		if !allClinics && clinic != f.sess.User.ClinicID {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// newID generates a client-side primary key. Client-generated identifiers keep
// queued creates and their later updates referring to the same stable id.
func newID() (uuid.UUID, error) { return uuid.NewV4() }

// touch stamps creation/update times, preserving CreatedAt on updates.
func touch(createdAt *time.Time, updatedAt *time.Time) {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}
