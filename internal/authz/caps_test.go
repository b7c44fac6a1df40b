package authz

import "testing"

func TestForRole(t *testing.T) {
	t.Parallel()

	admin := ForRole("super_admin")
	if !admin.Has(CapAllClinics) || !admin.Has(CapInvoicesWrite) {
		t.Fatalf("super_admin must hold the universal set")
	}

	dentist := ForRole("dentist")
	if !dentist.Has(CapPatientsWrite) || !dentist.Has(CapInvoicesWrite) {
		t.Fatalf("dentist missing write capabilities")
	}
	if dentist.Has(CapAllClinics) {
		t.Fatalf("dentist must stay clinic-scoped")
	}

	assistant := ForRole("assistant")
	if assistant.Has(CapPatientsWrite) || assistant.Has(CapInvoicesWrite) {
		t.Fatalf("assistant must not write patients or invoices")
	}
	if !assistant.Has(CapAppointmentsWrite) || !assistant.Has(CapRequestsWrite) {
		t.Fatalf("assistant schedules and files stock requests")
	}

	unknown := ForRole("janitor")
	for _, c := range []Capability{CapPatientsWrite, CapAppointmentsWrite, CapTreatmentsWrite, CapRequestsWrite, CapInvoicesWrite, CapAllClinics} {
		if unknown.Has(c) {
			t.Fatalf("unknown role granted %s", c)
		}
	}
	if !unknown.Has(CapPatientsRead) {
		t.Fatalf("unknown role should keep read access")
	}
}
