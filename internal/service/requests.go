package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/dentora/dentsync/internal/authz"
	"github.com/dentora/dentsync/internal/errs"
	"github.com/dentora/dentsync/internal/model"
)

// AddStockRequest files an inventory replenishment request. Status defaults
// to "open"; the requester is the session user.
func (f *Facade) AddStockRequest(ctx context.Context, r model.StockRequest) (model.StockRequest, error) {
	if !f.sess.Caps.Has(authz.CapRequestsWrite) {
		return model.StockRequest{}, errs.ErrForbidden
	}
	if strings.TrimSpace(r.Item) == "" {
		return model.StockRequest{}, errors.New("validation: empty item")
	}
	if r.Quantity <= 0 {
		return model.StockRequest{}, errors.New("validation: non-positive quantity")
	}
	if r.ID == uuid.Nil {
		id, err := newID()
		if err != nil {
			return model.StockRequest{}, err
		}
		r.ID = id
	}
	if r.Status == "" {
		r.Status = "open"
	}
	r.ClinicID = f.sess.User.ClinicID
	r.RequestedBy = f.sess.User.ID
	touch(&r.CreatedAt, &r.UpdatedAt)

	b, err := json.Marshal(r)
	if err != nil {
		return model.StockRequest{}, err
	}
	if err := f.write(ctx, model.PartRequests, model.ActionCreate, r.ID, b); err != nil {
		return model.StockRequest{}, err
	}
	return r, nil
}

// UpdateStockRequest overwrites a request (last write wins), typically a
// status transition.
func (f *Facade) UpdateStockRequest(ctx context.Context, r model.StockRequest) (model.StockRequest, error) {
	if !f.sess.Caps.Has(authz.CapRequestsWrite) {
		return model.StockRequest{}, errs.ErrForbidden
	}
	if r.ID == uuid.Nil {
		return model.StockRequest{}, errors.New("validation: empty id")
	}
	r.ClinicID = f.sess.User.ClinicID
	touch(&r.CreatedAt, &r.UpdatedAt)

	b, err := json.Marshal(r)
	if err != nil {
		return model.StockRequest{}, err
	}
	if err := f.write(ctx, model.PartRequests, model.ActionUpdate, r.ID, b); err != nil {
		return model.StockRequest{}, err
	}
	return r, nil
}

// DeleteStockRequest removes a request.
func (f *Facade) DeleteStockRequest(ctx context.Context, id uuid.UUID) error {
	if !f.sess.Caps.Has(authz.CapRequestsWrite) {
		return errs.ErrForbidden
	}
	if id == uuid.Nil {
		return errors.New("validation: empty id")
	}
	env, err := json.Marshal(opEnvelope{ID: id, ClinicID: f.sess.User.ClinicID})
	if err != nil {
		return err
	}
	return f.write(ctx, model.PartRequests, model.ActionDelete, id, env)
}

// ListStockRequests returns the clinic's inventory requests.
func (f *Facade) ListStockRequests(ctx context.Context) ([]model.StockRequest, error) {
	if !f.sess.Caps.Has(authz.CapRequestsRead) {
		return nil, errs.ErrForbidden
	}
	return listScoped(ctx, f, model.PartRequests, decodeStockRequest)
}

func decodeStockRequest(b []byte) (model.StockRequest, uuid.UUID, bool) {
	var r model.StockRequest
	if err := json.Unmarshal(b, &r); err != nil || r.ID == uuid.Nil {
		return model.StockRequest{}, uuid.Nil, false
	}
	if r.Status == "" {
		r.Status = "open"
	}
	return r, r.ClinicID, true
}
