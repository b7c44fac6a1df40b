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

// AddTreatment records a performed procedure and invalidates the patient's
// cached chart stats.
func (f *Facade) AddTreatment(ctx context.Context, t model.Treatment) (model.Treatment, error) {
	if !f.sess.Caps.Has(authz.CapTreatmentsWrite) {
		return model.Treatment{}, errs.ErrForbidden
	}
	if t.PatientID == uuid.Nil {
		return model.Treatment{}, errors.New("validation: empty patient_id")
	}
	if strings.TrimSpace(t.Procedure) == "" {
		return model.Treatment{}, errors.New("validation: empty procedure")
	}
	if t.Tooth < 0 || t.Tooth > 85 {
		// FDI two-digit notation tops out at 85 (primary teeth quadrants)
		return model.Treatment{}, errors.New("validation: tooth out of FDI range")
	}
	if t.ID == uuid.Nil {
		id, err := newID()
		if err != nil {
			return model.Treatment{}, err
		}
		t.ID = id
	}
	t.ClinicID = f.sess.User.ClinicID
	touch(&t.CreatedAt, &t.UpdatedAt)

	b, err := json.Marshal(t)
	if err != nil {
		return model.Treatment{}, err
	}
	if err := f.write(ctx, model.PartTreatments, model.ActionCreate, t.ID, b); err != nil {
		return model.Treatment{}, err
	}
	f.stats.Delete(t.PatientID)
	return t, nil
}

// UpdateTreatment overwrites a treatment (last write wins).
func (f *Facade) UpdateTreatment(ctx context.Context, t model.Treatment) (model.Treatment, error) {
	if !f.sess.Caps.Has(authz.CapTreatmentsWrite) {
		return model.Treatment{}, errs.ErrForbidden
	}
	if t.ID == uuid.Nil {
		return model.Treatment{}, errors.New("validation: empty id")
	}
	t.ClinicID = f.sess.User.ClinicID
	touch(&t.CreatedAt, &t.UpdatedAt)

	b, err := json.Marshal(t)
	if err != nil {
		return model.Treatment{}, err
	}
	if err := f.write(ctx, model.PartTreatments, model.ActionUpdate, t.ID, b); err != nil {
		return model.Treatment{}, err
	}
	f.stats.Delete(t.PatientID)
	return t, nil
}

// DeleteTreatment removes a treatment record.
func (f *Facade) DeleteTreatment(ctx context.Context, id uuid.UUID) error {
	if !f.sess.Caps.Has(authz.CapTreatmentsWrite) {
		return errs.ErrForbidden
	}
	if id == uuid.Nil {
		return errors.New("validation: empty id")
	}
	env, err := json.Marshal(opEnvelope{ID: id, ClinicID: f.sess.User.ClinicID})
	if err != nil {
		return err
	}
	if err := f.write(ctx, model.PartTreatments, model.ActionDelete, id, env); err != nil {
		return err
	}
	f.stats.Clear()
	return nil
}

// ListTreatments returns the clinic's treatments; patientID narrows to one
// patient when not Nil.
func (f *Facade) ListTreatments(ctx context.Context, patientID uuid.UUID) ([]model.Treatment, error) {
	if !f.sess.Caps.Has(authz.CapTreatmentsRead) {
		return nil, errs.ErrForbidden
	}
	treatments, err := listScoped(ctx, f, model.PartTreatments, decodeTreatment)
	if err != nil {
		return nil, err
	}
	if patientID == uuid.Nil {
		return treatments, nil
	}
	kept := treatments[:0]
	for _, t := range treatments {
		if t.PatientID == patientID {
			kept = append(kept, t)
		}
	}
	return kept, nil
}

func decodeTreatment(b []byte) (model.Treatment, uuid.UUID, bool) {
	var t model.Treatment
	if err := json.Unmarshal(b, &t); err != nil || t.ID == uuid.Nil {
		return model.Treatment{}, uuid.Nil, false
	}
	return t, t.ClinicID, true
}
