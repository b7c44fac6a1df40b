package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofrs/uuid/v5"

	"github.com/dentora/dentsync/internal/authz"
	"github.com/dentora/dentsync/internal/errs"
	"github.com/dentora/dentsync/internal/model"
)

// AddAppointment schedules a visit. Status defaults to "scheduled".
func (f *Facade) AddAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	if !f.sess.Caps.Has(authz.CapAppointmentsWrite) {
		return model.Appointment{}, errs.ErrForbidden
	}
	if a.PatientID == uuid.Nil {
		return model.Appointment{}, errors.New("validation: empty patient_id")
	}
	if a.StartsAt.IsZero() {
		return model.Appointment{}, errors.New("validation: empty starts_at")
	}
	if a.ID == uuid.Nil {
		id, err := newID()
		if err != nil {
			return model.Appointment{}, err
		}
		a.ID = id
	}
	if a.Status == "" {
		a.Status = "scheduled"
	}
	a.ClinicID = f.sess.User.ClinicID
	touch(&a.CreatedAt, &a.UpdatedAt)

	b, err := json.Marshal(a)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := f.write(ctx, model.PartAppointments, model.ActionCreate, a.ID, b); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

// UpdateAppointment overwrites an appointment (last write wins).
func (f *Facade) UpdateAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	if !f.sess.Caps.Has(authz.CapAppointmentsWrite) {
		return model.Appointment{}, errs.ErrForbidden
	}
	if a.ID == uuid.Nil {
		return model.Appointment{}, errors.New("validation: empty id")
	}
	a.ClinicID = f.sess.User.ClinicID
	touch(&a.CreatedAt, &a.UpdatedAt)

	b, err := json.Marshal(a)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := f.write(ctx, model.PartAppointments, model.ActionUpdate, a.ID, b); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

// DeleteAppointment removes an appointment.
func (f *Facade) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	if !f.sess.Caps.Has(authz.CapAppointmentsWrite) {
		return errs.ErrForbidden
	}
	if id == uuid.Nil {
		return errors.New("validation: empty id")
	}
	env, err := json.Marshal(opEnvelope{ID: id, ClinicID: f.sess.User.ClinicID})
	if err != nil {
		return err
	}
	return f.write(ctx, model.PartAppointments, model.ActionDelete, id, env)
}

// ListAppointments returns the clinic's appointments; patientID narrows to one
// patient when not Nil.
func (f *Facade) ListAppointments(ctx context.Context, patientID uuid.UUID) ([]model.Appointment, error) {
	if !f.sess.Caps.Has(authz.CapAppointmentsRead) {
		return nil, errs.ErrForbidden
	}
	appts, err := listScoped(ctx, f, model.PartAppointments, decodeAppointment)
	if err != nil {
		return nil, err
	}
	if patientID == uuid.Nil {
		return appts, nil
	}
	kept := appts[:0]
	for _, a := range appts {
		if a.PatientID == patientID {
			kept = append(kept, a)
		}
	}
	return kept, nil
}

func decodeAppointment(b []byte) (model.Appointment, uuid.UUID, bool) {
	var a model.Appointment
	if err := json.Unmarshal(b, &a); err != nil || a.ID == uuid.Nil {
		return model.Appointment{}, uuid.Nil, false
	}
	if a.Status == "" {
		a.Status = "scheduled"
	}
	return a, a.ClinicID, true
}
