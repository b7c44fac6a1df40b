package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/dentora/dentsync/internal/model"
)

func cmdPatient(ctx context.Context, a *app, args []string) {
	if len(args) < 1 {
		usage()
	}
	f, err := a.facade(ctx)
	if err != nil {
		fail(err)
	}

	switch args[0] {
	case "add":
		fs := flag.NewFlagSet("patient add", flag.ExitOnError)
		name := fs.String("name", "", "full name")
		phone := fs.String("phone", "", "phone")
		email := fs.String("email", "", "email")
		birth := fs.String("birth", "", "birth date YYYY-MM-DD")
		notes := fs.String("notes", "", "notes")
		_ = fs.Parse(args[1:])
		p, err := f.AddPatient(ctx, model.Patient{
			FullName:  *name,
			Phone:     *phone,
			Email:     *email,
			BirthDate: *birth,
			Notes:     *notes,
		})
		if err != nil {
			fail(err)
		}
		printJSON(p)

	case "list":
		fs := flag.NewFlagSet("patient list", flag.ExitOnError)
		query := fs.String("q", "", "search by name, phone or email")
		_ = fs.Parse(args[1:])
		list, err := f.ListPatients(ctx, *query)
		if err != nil {
			fail(err)
		}
		printJSON(list)

	case "rm":
		id := mustID(args[1:], "patient rm <uuid>")
		if err := f.DeletePatient(ctx, id); err != nil {
			fail(err)
		}

	default:
		usage()
	}
}

func cmdAppointment(ctx context.Context, a *app, args []string) {
	if len(args) < 1 {
		usage()
	}
	f, err := a.facade(ctx)
	if err != nil {
		fail(err)
	}

	switch args[0] {
	case "add":
		fs := flag.NewFlagSet("appt add", flag.ExitOnError)
		patient := fs.String("patient", "", "patient id (uuid)")
		at := fs.String("at", "", "start time (RFC3339)")
		dur := fs.Int("min", 30, "duration in minutes")
		notes := fs.String("notes", "", "notes")
		_ = fs.Parse(args[1:])
		pid, err := uuid.FromString(*patient)
		if err != nil {
			fail(errors.New("need -patient <uuid>"))
		}
		starts, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			fail(errors.New("need -at in RFC3339, e.g. 2026-09-01T10:30:00Z"))
		}
		appt, err := f.AddAppointment(ctx, model.Appointment{
			PatientID:   pid,
			StartsAt:    starts,
			DurationMin: *dur,
			Notes:       *notes,
		})
		if err != nil {
			fail(err)
		}
		printJSON(appt)

	case "list":
		fs := flag.NewFlagSet("appt list", flag.ExitOnError)
		patient := fs.String("patient", "", "filter by patient id")
		_ = fs.Parse(args[1:])
		pid := uuid.Nil
		if *patient != "" {
			if pid, err = uuid.FromString(*patient); err != nil {
				fail(errors.New("bad -patient uuid"))
			}
		}
		list, err := f.ListAppointments(ctx, pid)
		if err != nil {
			fail(err)
		}
		printJSON(list)

	case "rm":
		id := mustID(args[1:], "appt rm <uuid>")
		if err := f.DeleteAppointment(ctx, id); err != nil {
			fail(err)
		}

	default:
		usage()
	}
}

func cmdTreatment(ctx context.Context, a *app, args []string) {
	if len(args) < 1 {
		usage()
	}
	f, err := a.facade(ctx)
	if err != nil {
		fail(err)
	}

	switch args[0] {
	case "add":
		fs := flag.NewFlagSet("treatment add", flag.ExitOnError)
		patient := fs.String("patient", "", "patient id (uuid)")
		tooth := fs.Int("tooth", 0, "tooth number (FDI), 0 if not tooth-specific")
		proc := fs.String("procedure", "", "procedure name")
		cost := fs.Int64("cost", 0, "cost in minor currency units")
		notes := fs.String("notes", "", "notes")
		_ = fs.Parse(args[1:])
		pid, err := uuid.FromString(*patient)
		if err != nil {
			fail(errors.New("need -patient <uuid>"))
		}
		t, err := f.AddTreatment(ctx, model.Treatment{
			PatientID:   pid,
			Tooth:       *tooth,
			Procedure:   *proc,
			Cost:        *cost,
			PerformedAt: time.Now().UTC(),
			Notes:       *notes,
		})
		if err != nil {
			fail(err)
		}
		printJSON(t)

	case "list":
		fs := flag.NewFlagSet("treatment list", flag.ExitOnError)
		patient := fs.String("patient", "", "filter by patient id")
		_ = fs.Parse(args[1:])
		pid := uuid.Nil
		if *patient != "" {
			if pid, err = uuid.FromString(*patient); err != nil {
				fail(errors.New("bad -patient uuid"))
			}
		}
		list, err := f.ListTreatments(ctx, pid)
		if err != nil {
			fail(err)
		}
		printJSON(list)

	case "rm":
		id := mustID(args[1:], "treatment rm <uuid>")
		if err := f.DeleteTreatment(ctx, id); err != nil {
			fail(err)
		}

	default:
		usage()
	}
}

func cmdRequest(ctx context.Context, a *app, args []string) {
	if len(args) < 1 {
		usage()
	}
	f, err := a.facade(ctx)
	if err != nil {
		fail(err)
	}

	switch args[0] {
	case "add":
		fs := flag.NewFlagSet("request add", flag.ExitOnError)
		item := fs.String("item", "", "item name")
		qty := fs.Int("qty", 1, "quantity")
		_ = fs.Parse(args[1:])
		r, err := f.AddStockRequest(ctx, model.StockRequest{Item: *item, Quantity: *qty})
		if err != nil {
			fail(err)
		}
		printJSON(r)

	case "list":
		list, err := f.ListStockRequests(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(list)

	case "rm":
		id := mustID(args[1:], "request rm <uuid>")
		if err := f.DeleteStockRequest(ctx, id); err != nil {
			fail(err)
		}

	default:
		usage()
	}
}

// mustID parses the single positional uuid argument or exits with hint.
func mustID(args []string, hint string) uuid.UUID {
	if len(args) != 1 {
		fail(errors.New("usage: dentsync " + hint))
	}
	id, err := uuid.FromString(args[0])
	if err != nil {
		fail(errors.New("usage: dentsync " + hint))
	}
	return id
}
