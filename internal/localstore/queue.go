package localstore

import (
	"context"
	"time"

	"github.com/dentora/dentsync/internal/model"
)

// Enqueue appends a pending operation and returns its assigned id.
// Called when a write cannot reach the remote service.
func (s *Store) Enqueue(ctx context.Context, part model.Partition, action model.Action, payload []byte) (uint64, error) {
	conn, err := s.db()
	if err != nil {
		return 0, err
	}
	const q = `INSERT INTO ops (partition, action, payload, enqueued_at) VALUES (?,?,?,?)`
	res, err := conn.ExecContext(ctx, q, string(part), string(action), payload, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Drain returns all pending operations, oldest first. Items stay queued until
// explicitly acknowledged, so a crash between remote success and Ack yields
// at-least-once replay.
func (s *Store) Drain(ctx context.Context) ([]model.QueuedOp, error) {
	conn, err := s.db()
	if err != nil {
		return nil, err
	}
	const q = `SELECT id, partition, action, payload, enqueued_at FROM ops ORDER BY id ASC`
	rows, err := conn.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.QueuedOp
	for rows.Next() {
		var (
			op     model.QueuedOp
			part   string
			action string
		)
		if err := rows.Scan(&op.ID, &part, &action, &op.Payload, &op.EnqueuedAt); err != nil {
			return nil, err
		}
		op.Partition = model.Partition(part)
		op.Action = model.Action(action)
		out = append(out, op)
	}
	return out, rows.Err()
}

// Ack removes one operation after its successful remote replay.
func (s *Store) Ack(ctx context.Context, id uint64) error {
	conn, err := s.db()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `DELETE FROM ops WHERE id=?`, id)
	return err
}

// Purge clears the entire queue. Used after a forced full resync.
func (s *Store) Purge(ctx context.Context) error {
	conn, err := s.db()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `DELETE FROM ops`)
	return err
}

// QueueDepth reports the number of pending operations.
func (s *Store) QueueDepth(ctx context.Context) (int, error) {
	conn, err := s.db()
	if err != nil {
		return 0, err
	}
	var n int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM ops`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
