package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	pkgcrypto "github.com/dentora/dentsync/internal/crypto"
	"github.com/dentora/dentsync/internal/errs"
	"github.com/dentora/dentsync/internal/model"
)

var userRowCols = []string{"id", "email", "full_name", "role", "clinic_id", "pwd_hash", "salt_auth", "created_at"}

func TestIdentityRepo_SignIn_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewIdentityRepo(db, []byte("key"), time.Minute)

	uid := uuid.Must(uuid.NewV4())
	clinic := uuid.Must(uuid.NewV4())
	salt, _ := pkgcrypto.RandBytes(16)
	hash := pkgcrypto.HashPassword([]byte("pw"), salt)

	mock.ExpectQuery(`SELECT id, email, full_name, role, clinic_id, pwd_hash, salt_auth, created_at FROM users WHERE email=\$1`).
		WithArgs("a@b.c").
		WillReturnRows(pgxmock.NewRows(userRowCols).
			AddRow(uid, "a@b.c", "Dr A", "dentist", clinic, hash, salt, time.Now().UTC()))

	res, err := r.SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	require.Equal(t, uid, res.User.ID)
	require.NotEmpty(t, res.AccessToken)
	require.True(t, res.ExpiresAt.After(time.Now()))
	require.Nil(t, res.User.PwdHash)
	require.Nil(t, res.User.SaltAuth)
}

func TestIdentityRepo_SignIn_WrongPasswordAndMissingUserIndistinguishable(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewIdentityRepo(db, []byte("key"), time.Minute)

	uid := uuid.Must(uuid.NewV4())
	clinic := uuid.Must(uuid.NewV4())
	salt, _ := pkgcrypto.RandBytes(16)
	hash := pkgcrypto.HashPassword([]byte("pw"), salt)

	mock.ExpectQuery(`FROM users WHERE email=\$1`).
		WithArgs("a@b.c").
		WillReturnRows(pgxmock.NewRows(userRowCols).
			AddRow(uid, "a@b.c", "Dr A", "dentist", clinic, hash, salt, time.Now().UTC()))
	_, wrongPw := r.SignIn(context.Background(), "a@b.c", "nope")

	mock.ExpectQuery(`FROM users WHERE email=\$1`).
		WithArgs("ghost@b.c").
		WillReturnError(pgx.ErrNoRows)
	_, noUser := r.SignIn(context.Background(), "ghost@b.c", "pw")

	require.ErrorIs(t, wrongPw, errs.ErrUnauthorized)
	require.ErrorIs(t, noUser, errs.ErrUnauthorized)
}

func TestIdentityRepo_SignIn_DialFailure(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewIdentityRepo(db, []byte("key"), time.Minute)

	mock.ExpectQuery(`FROM users WHERE email=\$1`).
		WithArgs("a@b.c").
		WillReturnError(errors.New("dial tcp: connection refused"))

	_, err := r.SignIn(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, errs.ErrRemoteUnavailable)
}

func TestIdentityRepo_SignUp_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewIdentityRepo(db, []byte("key"), time.Minute)

	clinic := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`INSERT INTO users \(id, email, full_name, role, clinic_id, pwd_hash, salt_auth\)`).
		WithArgs(pgxmock.AnyArg(), "new@b.c", "New Dentist", "dentist", clinic, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	res, err := r.SignUp(context.Background(), "new@b.c", "pw", "New Dentist", clinic)
	require.NoError(t, err)
	require.Equal(t, "dentist", res.User.Role)
	require.Equal(t, clinic, res.User.ClinicID)
	require.NotEmpty(t, res.AccessToken)
}

func TestIdentityRepo_CurrentUser_TokenRoundTrip(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewIdentityRepo(db, []byte("key"), time.Minute)

	uid := uuid.Must(uuid.NewV4())
	clinic := uuid.Must(uuid.NewV4())
	salt, _ := pkgcrypto.RandBytes(16)
	hash := pkgcrypto.HashPassword([]byte("pw"), salt)

	mock.ExpectQuery(`FROM users WHERE email=\$1`).
		WithArgs("a@b.c").
		WillReturnRows(pgxmock.NewRows(userRowCols).
			AddRow(uid, "a@b.c", "Dr A", "dentist", clinic, hash, salt, time.Now().UTC()))
	res, err := r.SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	mock.ExpectQuery(`FROM users WHERE id=\$1`).
		WithArgs(uid).
		WillReturnRows(pgxmock.NewRows(userRowCols).
			AddRow(uid, "a@b.c", "Dr A", "dentist", clinic, hash, salt, time.Now().UTC()))
	u, err := r.CurrentUser(context.Background(), res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, uid, u.ID)
}

func TestIdentityRepo_CurrentUser_BadToken(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewIdentityRepo(db, []byte("key"), time.Minute)

	_, err := r.CurrentUser(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	// token signed with a different key is rejected before any query
	other := NewIdentityRepo(db, []byte("other-key"), time.Minute)
	res, err := other.issue(model.OfflineUser{ID: uuid.Must(uuid.NewV4())})
	require.NoError(t, err)
	_, err = r.CurrentUser(context.Background(), res.AccessToken)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_ = mock
}
