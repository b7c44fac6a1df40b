package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dentora/dentsync/internal/errs"
	"github.com/dentora/dentsync/internal/localstore"
	"github.com/dentora/dentsync/internal/model"
	"github.com/dentora/dentsync/internal/remote"
)

// SyncReport summarizes one ForceSync run.
type SyncReport struct {
	Replayed  int // queued operations acknowledged
	Remaining int // queued operations left for the next attempt
	Refreshed int // partitions refreshed from the remote service
}

// Engine keeps the local mirror and the remote service convergent: it replays
// the operation queue and refreshes mirrored partitions.
//
// Concurrent ForceSync calls coalesce into a single in-flight run; callers
// share its result instead of starting a second drain.
type Engine struct {
	store    *localstore.Store
	rows     remote.Rows
	clinicID *uuid.UUID // nil bypasses clinic scoping (super-admin)
	pageSize int
	log      *zap.Logger

	sf singleflight.Group
}

// NewEngine constructs a sync engine scoped to clinicID (nil for super-admin).
func NewEngine(store *localstore.Store, rows remote.Rows, clinicID *uuid.UUID, pageSize int, log *zap.Logger) *Engine {
	return &Engine{store: store, rows: rows, clinicID: clinicID, pageSize: pageSize, log: log}
}

// opEnvelope is the minimal shape every queued payload carries.
type opEnvelope struct {
	ID       uuid.UUID `json:"id"`
	ClinicID uuid.UUID `json:"clinic_id"`
}

// ForceSync drains the operation queue against the remote service, then pulls
// a fresh page of remote rows per domain partition and replaces the local
// mirror to eliminate drift.
func (e *Engine) ForceSync(ctx context.Context) (SyncReport, error) {
	v, err, _ := e.sf.Do("force-sync", func() (any, error) {
		return e.forceSync(ctx)
	})
	rep, _ := v.(SyncReport)
	return rep, err
}

func (e *Engine) forceSync(ctx context.Context) (SyncReport, error) {
	var rep SyncReport

	ops, err := e.store.Drain(ctx)
	if err != nil {
		return rep, err
	}
	for _, op := range ops {
		if err := e.replay(ctx, op); err != nil {
			if errors.Is(err, errs.ErrRemoteUnavailable) {
				// backend gone again: stop draining, everything left stays queued
				rep.Remaining = len(ops) - rep.Replayed
				e.log.Info("sync interrupted, backend unreachable",
					zap.Int("replayed", rep.Replayed),
					zap.Int("remaining", rep.Remaining),
				)
				return rep, err
			}
			// a rejected operation stays queued for the next attempt
			e.log.Warn("replay rejected",
				zap.Uint64("op", op.ID),
				zap.String("partition", string(op.Partition)),
				zap.String("action", string(op.Action)),
				zap.Error(err),
			)
			rep.Remaining++
			continue
		}
		if err := e.store.Ack(ctx, op.ID); err != nil {
			return rep, err
		}
		rep.Replayed++
	}

	for _, part := range model.DomainPartitions {
		if err := e.refresh(ctx, part); err != nil {
			return rep, err
		}
		rep.Refreshed++
	}
	return rep, nil
}

// replay applies one queued operation remotely. Replay is at-least-once: a
// create already applied in a previous run reports ErrAlreadyExists and is
// treated as delivered.
func (e *Engine) replay(ctx context.Context, op model.QueuedOp) error {
	var env opEnvelope
	if err := json.Unmarshal(op.Payload, &env); err != nil {
		return fmt.Errorf("malformed queued payload: %w", err)
	}
	row := remote.Row{ID: env.ID, ClinicID: env.ClinicID, Payload: op.Payload}

	switch op.Action {
	case model.ActionCreate:
		err := e.rows.Insert(ctx, op.Partition, row)
		if errors.Is(err, errs.ErrAlreadyExists) {
			return nil
		}
		return err
	case model.ActionUpdate:
		return e.rows.Update(ctx, op.Partition, row)
	case model.ActionDelete:
		return e.rows.Delete(ctx, op.Partition, env.ID)
	default:
		return fmt.Errorf("unknown action %q", op.Action)
	}
}

// refresh replaces one local partition with a fresh remote page (clear-then-put
// in a single transaction).
func (e *Engine) refresh(ctx context.Context, part model.Partition) error {
	rows, err := e.rows.List(ctx, part, remote.ListFilter{ClinicID: e.clinicID, Limit: e.pageSize})
	if err != nil {
		return err
	}
	records := make(map[string][]byte, len(rows))
	for _, r := range rows {
		records[r.ID.String()] = r.Payload
	}
	return e.store.ReplacePartition(ctx, part, records)
}

// List is the shared read path: remote first, one ForceSync retry, then the
// local mirror. Results are deduplicated by identifier. A dead backend plus an
// empty mirror degrades to an empty result, not an error.
func (e *Engine) List(ctx context.Context, part model.Partition) ([][]byte, error) {
	rows, err := e.rows.List(ctx, part, remote.ListFilter{ClinicID: e.clinicID, Limit: e.pageSize})
	if err == nil {
		return dedupRows(rows), nil
	}
	if !errors.Is(err, errs.ErrRemoteUnavailable) {
		return nil, err
	}

	if _, serr := e.ForceSync(ctx); serr == nil {
		if rows, err = e.rows.List(ctx, part, remote.ListFilter{ClinicID: e.clinicID, Limit: e.pageSize}); err == nil {
			return dedupRows(rows), nil
		}
	}

	e.log.Info("serving reads from local mirror", zap.String("partition", string(part)))
	return e.store.GetAll(ctx, part)
}

// dedupRows drops repeated identifiers, keeping the first occurrence.
func dedupRows(rows []remote.Row) [][]byte {
	seen := make(map[uuid.UUID]struct{}, len(rows))
	out := make([][]byte, 0, len(rows))
	for _, r := range rows {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r.Payload)
	}
	return out
}
