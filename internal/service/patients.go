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

// AddPatient creates a patient record, queueing the write when offline.
// A missing ID is generated; the clinic is always the session's clinic.
func (f *Facade) AddPatient(ctx context.Context, p model.Patient) (model.Patient, error) {
	if !f.sess.Caps.Has(authz.CapPatientsWrite) {
		return model.Patient{}, errs.ErrForbidden
	}
	if strings.TrimSpace(p.FullName) == "" {
		return model.Patient{}, errors.New("validation: empty full_name")
	}
	if p.ID == uuid.Nil {
		id, err := newID()
		if err != nil {
			return model.Patient{}, err
		}
		p.ID = id
	}
	p.ClinicID = f.sess.User.ClinicID
	touch(&p.CreatedAt, &p.UpdatedAt)

	b, err := json.Marshal(p)
	if err != nil {
		return model.Patient{}, err
	}
	if err := f.write(ctx, model.PartPatients, model.ActionCreate, p.ID, b); err != nil {
		return model.Patient{}, err
	}
	return p, nil
}

// UpdatePatient overwrites a patient record (last write wins).
func (f *Facade) UpdatePatient(ctx context.Context, p model.Patient) (model.Patient, error) {
	if !f.sess.Caps.Has(authz.CapPatientsWrite) {
		return model.Patient{}, errs.ErrForbidden
	}
	if p.ID == uuid.Nil {
		return model.Patient{}, errors.New("validation: empty id")
	}
	p.ClinicID = f.sess.User.ClinicID
	touch(&p.CreatedAt, &p.UpdatedAt)

	b, err := json.Marshal(p)
	if err != nil {
		return model.Patient{}, err
	}
	if err := f.write(ctx, model.PartPatients, model.ActionUpdate, p.ID, b); err != nil {
		return model.Patient{}, err
	}
	return p, nil
}

// DeletePatient removes a patient record.
func (f *Facade) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if !f.sess.Caps.Has(authz.CapPatientsWrite) {
		return errs.ErrForbidden
	}
	if id == uuid.Nil {
		return errors.New("validation: empty id")
	}
	env, err := json.Marshal(opEnvelope{ID: id, ClinicID: f.sess.User.ClinicID})
	if err != nil {
		return err
	}
	return f.write(ctx, model.PartPatients, model.ActionDelete, id, env)
}

// ListPatients returns the clinic's patients, optionally filtered by a
// case-insensitive substring over name, phone and email. An empty query is a
// no-op filter.
func (f *Facade) ListPatients(ctx context.Context, query string) ([]model.Patient, error) {
	if !f.sess.Caps.Has(authz.CapPatientsRead) {
		return nil, errs.ErrForbidden
	}
	patients, err := listScoped(ctx, f, model.PartPatients, decodePatient)
	if err != nil {
		return nil, err
	}
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		kept := patients[:0]
		for _, p := range patients {
			if strings.Contains(strings.ToLower(p.FullName), q) ||
				strings.Contains(strings.ToLower(p.Phone), q) ||
				strings.Contains(strings.ToLower(p.Email), q) {
				kept = append(kept, p)
			}
		}
		patients = kept
	}
	return patients, nil
}

// decodePatient unmarshals and normalizes one patient payload.
func decodePatient(b []byte) (model.Patient, uuid.UUID, bool) {
	var p model.Patient
	if err := json.Unmarshal(b, &p); err != nil || p.ID == uuid.Nil {
		return model.Patient{}, uuid.Nil, false
	}
	return p, p.ClinicID, true
}
