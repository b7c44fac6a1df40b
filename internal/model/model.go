// Package model defines domain entities shared by the local store, the remote
// boundary and the services.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Partition names the local mirror's logical buckets. Domain partitions are
// also remote table names.
type Partition string

const (
	PartPatients     Partition = "patients"
	PartAppointments Partition = "appointments"
	PartTreatments   Partition = "treatments"
	PartRequests     Partition = "requests"

	// Auth partitions exist only in the local store.
	PartOfflineUsers    Partition = "offline_users"
	PartOfflineSessions Partition = "offline_sessions"
)

// DomainPartitions lists the partitions the sync engine mirrors from the
// remote service, in refresh order.
var DomainPartitions = []Partition{PartPatients, PartAppointments, PartTreatments, PartRequests}

// Action is a queued mutation kind.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Patient is a clinic patient record.
type Patient struct {
	ID        uuid.UUID `json:"id"`
	ClinicID  uuid.UUID `json:"clinic_id"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	BirthDate string    `json:"birth_date"` // YYYY-MM-DD, empty if unknown
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Appointment is a scheduled visit.
type Appointment struct {
	ID          uuid.UUID `json:"id"`
	ClinicID    uuid.UUID `json:"clinic_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	StartsAt    time.Time `json:"starts_at"`
	DurationMin int       `json:"duration_min"`
	Status      string    `json:"status"` // scheduled|done|cancelled
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Treatment is a performed dental procedure, tied to a tooth.
type Treatment struct {
	ID          uuid.UUID `json:"id"`
	ClinicID    uuid.UUID `json:"clinic_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	Tooth       int       `json:"tooth"` // FDI notation, 0 if not tooth-specific
	Procedure   string    `json:"procedure"`
	Cost        int64     `json:"cost"` // minor currency units
	PerformedAt time.Time `json:"performed_at"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StockRequest is an inventory replenishment request.
type StockRequest struct {
	ID          uuid.UUID `json:"id"`
	ClinicID    uuid.UUID `json:"clinic_id"`
	Item        string    `json:"item"`
	Quantity    int       `json:"quantity"`
	Status      string    `json:"status"` // open|ordered|received
	RequestedBy uuid.UUID `json:"requested_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OfflineUser is the locally cached shadow of an account, created on the first
// successful online sign-in (or offline sign-up). Read-only afterward.
// PwdHash is Argon2id(password, SaltAuth) with a per-user random salt; it is a
// convenience cache for offline verification, never the authoritative store.
type OfflineUser struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	ClinicID  uuid.UUID `json:"clinic_id"`
	PwdHash   []byte    `json:"pwd_hash"`
	SaltAuth  []byte    `json:"salt_auth"`
	CreatedAt time.Time `json:"created_at"`
}

// OfflineSession is a locally issued session usable without connectivity.
// Deleted on sign-out or when found expired at read time.
type OfflineSession struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// QueuedOp is a durable record of a write that must eventually reach the
// remote service. ID is assigned by the queue on insert.
type QueuedOp struct {
	ID         uint64    `json:"id"`
	Partition  Partition `json:"partition"`
	Action     Action    `json:"action"`
	Payload    []byte    `json:"payload"` // JSON-encoded record; record ID only for deletes
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ChartStats is the result of the server-side dental chart statistics function.
type ChartStats struct {
	PatientID      uuid.UUID `json:"patient_id"`
	TreatedTeeth   int       `json:"treated_teeth"`
	ProcedureCount int       `json:"procedure_count"`
	TotalCost      int64     `json:"total_cost"`
	LastVisit      time.Time `json:"last_visit"`
}
