// Package authz resolves roles into typed capability sets.
//
// A session carries a resolved Set computed once at sign-in; callers check
// capabilities with Has instead of comparing roles or emails ad hoc.
package authz

// Capability is a single granted permission.
type Capability string

const (
	CapPatientsRead      Capability = "patients:read"
	CapPatientsWrite     Capability = "patients:write"
	CapAppointmentsRead  Capability = "appointments:read"
	CapAppointmentsWrite Capability = "appointments:write"
	CapTreatmentsRead    Capability = "treatments:read"
	CapTreatmentsWrite   Capability = "treatments:write"
	CapRequestsRead      Capability = "requests:read"
	CapRequestsWrite     Capability = "requests:write"
	CapInvoicesWrite     Capability = "invoices:write"

	// CapAllClinics bypasses clinic scoping on reads (super-admin only).
	CapAllClinics Capability = "clinics:all"
)

// Set is a resolved collection of capabilities.
type Set map[Capability]struct{}

// NewSet builds a Set from the given capabilities.
func NewSet(caps ...Capability) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Universal returns the set granting every capability, including CapAllClinics.
// "Is admin" is exactly "capability set is universal".
func Universal() Set {
	return NewSet(
		CapPatientsRead, CapPatientsWrite,
		CapAppointmentsRead, CapAppointmentsWrite,
		CapTreatmentsRead, CapTreatmentsWrite,
		CapRequestsRead, CapRequestsWrite,
		CapInvoicesWrite,
		CapAllClinics,
	)
}

// Has reports whether the capability is granted.
func (s Set) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// ForRole resolves a role name to its capability set. Unknown roles get the
// read-only set.
func ForRole(role string) Set {
	switch role {
	case "super_admin":
		return Universal()
	case "dentist":
		return NewSet(
			CapPatientsRead, CapPatientsWrite,
			CapAppointmentsRead, CapAppointmentsWrite,
			CapTreatmentsRead, CapTreatmentsWrite,
			CapRequestsRead, CapRequestsWrite,
			CapInvoicesWrite,
		)
	case "assistant":
		return NewSet(
			CapPatientsRead,
			CapAppointmentsRead, CapAppointmentsWrite,
			CapTreatmentsRead,
			CapRequestsRead, CapRequestsWrite,
		)
	default:
		return NewSet(
			CapPatientsRead, CapAppointmentsRead, CapTreatmentsRead, CapRequestsRead,
		)
	}
}
