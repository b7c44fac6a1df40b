// Package remote defines the hosted-backend boundary consumed by the sync
// engine and the services: a row-oriented query/mutation interface, a small
// set of server-side procedures, and a session-based identity interface.
// Implementations live in subpackages; callers treat the backend as opaque.
package remote

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/dentora/dentsync/internal/model"
)

// Row is one remote record: its primary key, owning clinic and JSON payload.
type Row struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	Payload   []byte
	UpdatedAt time.Time
}

// ListFilter scopes a List call. A nil ClinicID means no clinic scoping
// (super-admin reads). Limit <= 0 means the implementation's default page.
type ListFilter struct {
	ClinicID *uuid.UUID
	Limit    int
}

// Rows is the row-oriented remote interface over the domain partitions.
// Unreachable-backend failures are reported as errs.ErrRemoteUnavailable so
// callers can branch to the offline path.
type Rows interface {
	// List returns a page of rows from the partition, newest first.
	List(ctx context.Context, part model.Partition, f ListFilter) ([]Row, error)
	// Get returns a single row by id.
	Get(ctx context.Context, part model.Partition, id uuid.UUID) (*Row, error)
	// Insert creates a row. Duplicate ids map to errs.ErrAlreadyExists.
	Insert(ctx context.Context, part model.Partition, row Row) error
	// Update overwrites a row's payload unconditionally (last write wins).
	Update(ctx context.Context, part model.Partition, row Row) error
	// Delete removes a row. Missing rows are not an error.
	Delete(ctx context.Context, part model.Partition, id uuid.UUID) error
}

// Procs exposes the backend's server-side functions.
type Procs interface {
	// NextInvoiceNumber reserves and returns the next invoice number for the clinic.
	NextInvoiceNumber(ctx context.Context, clinicID uuid.UUID) (int64, error)
	// ChartStats computes dental-chart statistics for the patient.
	ChartStats(ctx context.Context, patientID uuid.UUID) (model.ChartStats, error)
}

// AuthResult is the identity service's response to a successful sign-in,
// shaped so offline-issued sessions can present identically.
type AuthResult struct {
	User         model.OfflineUser // PwdHash/SaltAuth unset on remote results
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Identity is the session-based identity interface of the hosted backend.
type Identity interface {
	// SignIn authenticates and returns tokens. Bad credentials map to
	// errs.ErrUnauthorized, never to an availability error.
	SignIn(ctx context.Context, email, password string) (AuthResult, error)
	// SignUp creates an account and signs it in. Duplicate emails map to
	// errs.ErrAlreadyExists.
	SignUp(ctx context.Context, email, password, fullName string, clinicID uuid.UUID) (AuthResult, error)
	// SignOut invalidates the remote session for the token (best effort).
	SignOut(ctx context.Context, accessToken string) error
	// CurrentUser resolves the account behind a still-valid token.
	CurrentUser(ctx context.Context, accessToken string) (model.OfflineUser, error)
}
