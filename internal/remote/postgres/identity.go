package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"

	pkgcrypto "github.com/dentora/dentsync/internal/crypto"
	"github.com/dentora/dentsync/internal/errs"
	"github.com/dentora/dentsync/internal/model"
	"github.com/dentora/dentsync/internal/remote"
)

// IdentityRepo implements remote.Identity against the backend's users table.
// Tokens are HS256 JWTs signed with the backend's shared key.
type IdentityRepo struct {
	db        *DB
	signKey   []byte
	accessTTL time.Duration
}

// NewIdentityRepo constructs the identity repository.
func NewIdentityRepo(db *DB, signKey []byte, accessTTL time.Duration) *IdentityRepo {
	return &IdentityRepo{db: db, signKey: signKey, accessTTL: accessTTL}
}

const userCols = `id, email, full_name, role, clinic_id, pwd_hash, salt_auth, created_at`

func scanUser(row pgx.Row) (model.OfflineUser, error) {
	var u model.OfflineUser
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.ClinicID, &u.PwdHash, &u.SaltAuth, &u.CreatedAt)
	return u, err
}

// SignIn verifies credentials against the remote users table and issues tokens.
func (r *IdentityRepo) SignIn(ctx context.Context, email, password string) (remote.AuthResult, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email=$1`
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// hide account existence behind the same error as a bad password
			return remote.AuthResult{}, errs.ErrUnauthorized
		}
		return remote.AuthResult{}, mapErr(err)
	}
	if !pkgcrypto.VerifyPassword([]byte(password), u.SaltAuth, u.PwdHash) {
		return remote.AuthResult{}, errs.ErrUnauthorized
	}
	return r.issue(u)
}

// SignUp creates the remote account and signs it in.
func (r *IdentityRepo) SignUp(ctx context.Context, email, password, fullName string, clinicID uuid.UUID) (remote.AuthResult, error) {
	uid, err := uuid.NewV4()
	if err != nil {
		return remote.AuthResult{}, err
	}
	salt, err := pkgcrypto.RandBytes(16)
	if err != nil {
		return remote.AuthResult{}, err
	}
	u := model.OfflineUser{
		ID:       uid,
		Email:    email,
		FullName: fullName,
		Role:     "dentist",
		ClinicID: clinicID,
		PwdHash:  pkgcrypto.HashPassword([]byte(password), salt),
		SaltAuth: salt,
	}
	const q = `
INSERT INTO users (id, email, full_name, role, clinic_id, pwd_hash, salt_auth)
VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err := r.db.Pool.Exec(ctx, q, u.ID, u.Email, u.FullName, u.Role, u.ClinicID, u.PwdHash, u.SaltAuth); err != nil {
		return remote.AuthResult{}, mapErr(err)
	}
	return r.issue(u)
}

// SignOut is a no-op server-side: access tokens are stateless and expire on
// their own. Kept for interface symmetry with session-revoking backends.
func (r *IdentityRepo) SignOut(ctx context.Context, accessToken string) error {
	return nil
}

// CurrentUser resolves the account behind a still-valid token.
func (r *IdentityRepo) CurrentUser(ctx context.Context, accessToken string) (model.OfflineUser, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(accessToken, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return r.signKey, nil
	})
	if err != nil {
		return model.OfflineUser{}, errs.ErrUnauthorized
	}
	uid, err := uuid.FromString(claims.Subject)
	if err != nil {
		return model.OfflineUser{}, errs.ErrUnauthorized
	}

	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1`
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q, uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.OfflineUser{}, errs.ErrUnauthorized
		}
		return model.OfflineUser{}, mapErr(err)
	}
	return u, nil
}

// issue creates a signed HS256 JWT for the user and strips secrets from the result.
func (r *IdentityRepo) issue(u model.OfflineUser) (remote.AuthResult, error) {
	now := time.Now()
	exp := now.Add(r.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   u.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.signKey)
	if err != nil {
		return remote.AuthResult{}, err
	}
	u.PwdHash, u.SaltAuth = nil, nil
	return remote.AuthResult{User: u, AccessToken: signed, ExpiresAt: exp}, nil
}
