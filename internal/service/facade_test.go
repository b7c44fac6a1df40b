package service

import (
	"context"
	"errors"
	"testing"
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

type fakeProcs struct {
	nextInvoice int64
	stats       model.ChartStats
	down        bool

	statsCalls int
}

var _ remote.Procs = (*fakeProcs)(nil)

func (f *fakeProcs) NextInvoiceNumber(context.Context, uuid.UUID) (int64, error) {
	if f.down {
		return 0, errs.ErrRemoteUnavailable
	}
	f.nextInvoice++
	return f.nextInvoice, nil
}

func (f *fakeProcs) ChartStats(_ context.Context, patientID uuid.UUID) (model.ChartStats, error) {
	f.statsCalls++
	if f.down {
		return model.ChartStats{}, errs.ErrRemoteUnavailable
	}
	st := f.stats
	st.PatientID = patientID
	return st, nil
}

type facadeFixture struct {
	f     *Facade
	rows  *fakeRows
	procs *fakeProcs
	store *localstore.Store
	sess  Session
}

func newFixture(t *testing.T, role string) *facadeFixture {
	t.Helper()
	rows := newFakeRows()
	procs := &fakeProcs{}
	store := newTestStore(t)
	sess := Session{
		User: model.OfflineUser{
			ID:       uuid.Must(uuid.NewV4()),
			Email:    "dr@clinic.test",
			Role:     role,
			ClinicID: uuid.Must(uuid.NewV4()),
		},
		Caps: authz.ForRole(role),
	}
	var clinic *uuid.UUID
	if !sess.Caps.Has(authz.CapAllClinics) {
		c := sess.User.ClinicID
		clinic = &c
	}
	eng := NewEngine(store, rows, clinic, 500, zap.NewNop())
	stats := cache.New[uuid.UUID, model.ChartStats](16, time.Minute)
	return &facadeFixture{
		f:     NewFacade(store, rows, procs, eng, sess, stats, zap.NewNop()),
		rows:  rows,
		procs: procs,
		store: store,
		sess:  sess,
	}
}

func TestFacade_AddPatient_OnlineAndOffline(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "dentist")

	p, err := fx.f.AddPatient(ctx, model.Patient{FullName: "Ada Online"})
	if err != nil {
		t.Fatalf("AddPatient online: %v", err)
	}
	if p.ID == uuid.Nil || p.ClinicID != fx.sess.User.ClinicID {
		t.Fatalf("bad stamped patient: %+v", p)
	}
	if _, ok := fx.rows.data[model.PartPatients][p.ID]; !ok {
		t.Fatalf("online write never reached the remote")
	}
	depth, _ := fx.f.QueueDepth(ctx)
	if depth != 0 {
		t.Fatalf("online write must not queue")
	}

	// backend dies: the write is queued and applied locally
	fx.rows.down = true
	q, err := fx.f.AddPatient(ctx, model.Patient{FullName: "Bea Offline"})
	if err != nil {
		t.Fatalf("AddPatient offline: %v", err)
	}
	depth, _ = fx.f.QueueDepth(ctx)
	if depth != 1 {
		t.Fatalf("offline write not queued: depth=%d", depth)
	}
	if _, err := fx.store.Get(ctx, model.PartPatients, q.ID.String()); err != nil {
		t.Fatalf("optimistic local apply missing: %v", err)
	}

	// the queued patient is immediately visible to reads
	list, err := fx.f.ListPatients(ctx, "")
	if err != nil {
		t.Fatalf("ListPatients offline: %v", err)
	}
	found := false
	for _, got := range list {
		if got.ID == q.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("queued patient invisible to offline list")
	}
}

func TestFacade_AddPatient_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "dentist")

	if _, err := fx.f.AddPatient(ctx, model.Patient{FullName: "   "}); err == nil {
		t.Fatalf("want validation error on blank name")
	}

	// non-availability remote errors surface to the caller, nothing is queued
	p := model.Patient{ID: uuid.Must(uuid.NewV4()), FullName: "Dup"}
	if _, err := fx.f.AddPatient(ctx, p); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := fx.f.AddPatient(ctx, p); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists surfaced, got %v", err)
	}
	depth, _ := fx.f.QueueDepth(ctx)
	if depth != 0 {
		t.Fatalf("rejected write must not queue")
	}
}

func TestFacade_Capabilities(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "assistant")

	if _, err := fx.f.AddPatient(ctx, model.Patient{FullName: "X"}); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("assistant must not write patients, got %v", err)
	}
	if _, err := fx.f.NextInvoiceNumber(ctx); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("assistant must not draw invoice numbers, got %v", err)
	}
	if _, err := fx.f.AddAppointment(ctx, model.Appointment{
		PatientID: uuid.Must(uuid.NewV4()),
		StartsAt:  time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("assistant schedules appointments: %v", err)
	}
	if _, err := fx.f.ListPatients(ctx, ""); err != nil {
		t.Fatalf("assistant reads patients: %v", err)
	}
}

func TestFacade_ListPatients_Search(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "dentist")

	seed := []model.Patient{
		{FullName: "Maria Silva", Phone: "+351-912-000-111"},
		{FullName: "João Ferreira", Email: "joao@example.test"},
		{FullName: "Ana Maria Costa"},
	}
	for _, p := range seed {
		if _, err := fx.f.AddPatient(ctx, p); err != nil {
			t.Fatalf("seed %q: %v", p.FullName, err)
		}
	}

	all, err := fx.f.ListPatients(ctx, "")
	if err != nil {
		t.Fatalf("empty query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("empty query must return everything, got %d", len(all))
	}

	got, err := fx.f.ListPatients(ctx, "MARIA")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("case-insensitive name search: want 2, got %d", len(got))
	}

	got, err = fx.f.ListPatients(ctx, "912-000")
	if err != nil {
		t.Fatalf("phone search: %v", err)
	}
	if len(got) != 1 || got[0].FullName != "Maria Silva" {
		t.Fatalf("phone substring search failed: %+v", got)
	}

	got, err = fx.f.ListPatients(ctx, "no-such-patient")
	if err != nil {
		t.Fatalf("miss search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("want empty result, got %d", len(got))
	}
}

func TestFacade_ClinicScoping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "dentist")

	// a row from another clinic sits in the same remote table
	foreign := remote.Row{ID: uuid.Must(uuid.NewV4()), ClinicID: uuid.Must(uuid.NewV4())}
	foreign.Payload = []byte(`{"id":"` + foreign.ID.String() + `","clinic_id":"` + foreign.ClinicID.String() + `","full_name":"Other Clinic"}`)
	if err := fx.rows.Update(ctx, model.PartPatients, foreign); err != nil {
		t.Fatalf("seed foreign row: %v", err)
	}
	if _, err := fx.f.AddPatient(ctx, model.Patient{FullName: "Ours"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	list, err := fx.f.ListPatients(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].FullName != "Ours" {
		t.Fatalf("foreign clinic row leaked: %+v", list)
	}
}

func TestFacade_ChartStats_CacheAndFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "dentist")
	pid := uuid.Must(uuid.NewV4())

	fx.procs.stats = model.ChartStats{TreatedTeeth: 3, ProcedureCount: 5, TotalCost: 12500}

	st, err := fx.f.ChartStats(ctx, pid)
	if err != nil {
		t.Fatalf("ChartStats: %v", err)
	}
	if st.ProcedureCount != 5 || st.PatientID != pid {
		t.Fatalf("bad remote stats: %+v", st)
	}

	// second read is served from the cache
	if _, err := fx.f.ChartStats(ctx, pid); err != nil {
		t.Fatalf("cached ChartStats: %v", err)
	}
	if fx.procs.statsCalls != 1 {
		t.Fatalf("want 1 remote stats call, got %d", fx.procs.statsCalls)
	}
}

func TestFacade_ChartStats_LocalAggregation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "dentist")
	pid := uuid.Must(uuid.NewV4())

	for _, tr := range []model.Treatment{
		{PatientID: pid, Tooth: 11, Procedure: "filling", Cost: 8000, PerformedAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)},
		{PatientID: pid, Tooth: 11, Procedure: "polish", Cost: 2000, PerformedAt: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)},
		{PatientID: pid, Tooth: 24, Procedure: "crown", Cost: 40000, PerformedAt: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)},
		{PatientID: uuid.Must(uuid.NewV4()), Tooth: 11, Procedure: "other patient", Cost: 999},
	} {
		if _, err := fx.f.AddTreatment(ctx, tr); err != nil {
			t.Fatalf("seed treatment: %v", err)
		}
	}

	fx.procs.down = true
	st, err := fx.f.ChartStats(ctx, pid)
	if err != nil {
		t.Fatalf("ChartStats offline: %v", err)
	}
	if st.TreatedTeeth != 2 || st.ProcedureCount != 3 || st.TotalCost != 50000 {
		t.Fatalf("bad aggregation: %+v", st)
	}
	if !st.LastVisit.Equal(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("bad last visit: %v", st.LastVisit)
	}
}

func TestFacade_AddTreatment_FDIRange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "dentist")
	pid := uuid.Must(uuid.NewV4())

	if _, err := fx.f.AddTreatment(ctx, model.Treatment{PatientID: pid, Procedure: "x", Tooth: 99}); err == nil {
		t.Fatalf("want FDI range validation error")
	}
	if _, err := fx.f.AddTreatment(ctx, model.Treatment{PatientID: pid, Procedure: "x", Tooth: -1}); err == nil {
		t.Fatalf("want FDI range validation error for negative tooth")
	}
	if _, err := fx.f.AddTreatment(ctx, model.Treatment{PatientID: pid, Procedure: "cleaning", Tooth: 0}); err != nil {
		t.Fatalf("tooth 0 (not tooth-specific) must pass: %v", err)
	}
}

func TestFacade_StockRequests_Defaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "assistant")

	r, err := fx.f.AddStockRequest(ctx, model.StockRequest{Item: "composite resin", Quantity: 4})
	if err != nil {
		t.Fatalf("AddStockRequest: %v", err)
	}
	if r.Status != "open" {
		t.Fatalf("want default status open, got %q", r.Status)
	}
	if r.RequestedBy != fx.sess.User.ID {
		t.Fatalf("requester not stamped from session")
	}

	if _, err := fx.f.AddStockRequest(ctx, model.StockRequest{Item: "", Quantity: 1}); err == nil {
		t.Fatalf("want validation error on empty item")
	}
	if _, err := fx.f.AddStockRequest(ctx, model.StockRequest{Item: "gloves", Quantity: 0}); err == nil {
		t.Fatalf("want validation error on zero quantity")
	}
}

func TestFacade_DeleteThenSync(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "dentist")

	p, err := fx.f.AddPatient(ctx, model.Patient{FullName: "To Remove"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	fx.rows.down = true
	if err := fx.f.DeletePatient(ctx, p.ID); err != nil {
		t.Fatalf("offline delete: %v", err)
	}
	if _, err := fx.store.Get(ctx, model.PartPatients, p.ID.String()); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("optimistic local delete missing, got %v", err)
	}

	fx.rows.down = false
	if _, err := fx.f.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if _, ok := fx.rows.data[model.PartPatients][p.ID]; ok {
		t.Fatalf("queued delete never reached the remote")
	}
}

func TestFacade_NextInvoiceNumber_RemoteOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newFixture(t, "dentist")

	n, err := fx.f.NextInvoiceNumber(ctx)
	if err != nil {
		t.Fatalf("NextInvoiceNumber: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1, got %d", n)
	}

	fx.procs.down = true
	if _, err := fx.f.NextInvoiceNumber(ctx); !errors.Is(err, errs.ErrRemoteUnavailable) {
		t.Fatalf("invoice numbers must not be generated offline, got %v", err)
	}
}
