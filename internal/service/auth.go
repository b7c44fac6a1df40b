// Package service contains the offline auth shim, the sync engine and the
// data-access facade consumed by UI code.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/dentora/dentsync/internal/authz"
	pkgcrypto "github.com/dentora/dentsync/internal/crypto"
	"github.com/dentora/dentsync/internal/errs"
	"github.com/dentora/dentsync/internal/limiter"
	"github.com/dentora/dentsync/internal/localstore"
	"github.com/dentora/dentsync/internal/model"
	"github.com/dentora/dentsync/internal/remote"
)

// Session is the normalized signed-in state handed to callers. It is shaped
// identically whether the backing session is remote or locally synthesized,
// so callers need no branching.
type Session struct {
	User        model.OfflineUser // PwdHash/SaltAuth always nil
	AccessToken string
	ExpiresAt   time.Time
	Caps        authz.Set
	Offline     bool
}

// Auth defines sign-in/sign-up/sign-out with transparent offline fallback.
type Auth interface {
	// SignIn authenticates online when possible and against the local shadow
	// cache otherwise.
	SignIn(ctx context.Context, email, password string) (Session, error)
	// SignUp creates an account online, or a local-only account when offline.
	SignUp(ctx context.Context, email, password, fullName string) (Session, error)
	// SignOut deletes all local sessions and best-effort invalidates the remote one.
	SignOut(ctx context.Context) error
	// CurrentSession resolves the active session, preferring the remote service.
	CurrentSession(ctx context.Context) (Session, error)
}

// AuthShim implements Auth over the remote identity service and the local store.
type AuthShim struct {
	identity   remote.Identity
	store      *localstore.Store
	lim        limiter.Limiter
	signKey    []byte
	clinicID   uuid.UUID
	sessionTTL time.Duration
	log        *zap.Logger
}

// NewAuthShim constructs the offline auth shim. signKey signs locally issued
// session tokens; sessionTTL bounds their validity (24h by default upstream).
func NewAuthShim(identity remote.Identity, store *localstore.Store, lim limiter.Limiter,
	signKey []byte, clinicID uuid.UUID, sessionTTL time.Duration, log *zap.Logger) *AuthShim {
	return &AuthShim{
		identity:   identity,
		store:      store,
		lim:        lim,
		signKey:    signKey,
		clinicID:   clinicID,
		sessionTTL: sessionTTL,
		log:        log,
	}
}

// SignIn authenticates the user, falling back to local verification when the
// identity service is unreachable.
func (s *AuthShim) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	allowed, _, err := s.lim.Allow(ctx, email)
	if err != nil {
		return Session{}, err
	}
	if !allowed {
		return Session{}, errs.ErrRateLimited
	}

	res, err := s.identity.SignIn(ctx, email, password)
	switch {
	case err == nil:
		_ = s.lim.Success(ctx, email)
		if err := s.mirrorUser(ctx, res.User, password); err != nil {
			s.log.Warn("shadow mirror failed", zap.Error(err))
		}
		sess, err := s.storeSession(ctx, res, false)
		if err != nil {
			return Session{}, err
		}
		return sess, nil

	case errors.Is(err, errs.ErrRemoteUnavailable):
		s.log.Info("identity service unreachable, verifying locally", zap.String("email", email))
		return s.signInOffline(ctx, email, password)

	default:
		// authentication errors are returned verbatim, never swallowed
		if errors.Is(err, errs.ErrUnauthorized) {
			if blocked, _, ferr := s.lim.Failure(ctx, email); ferr == nil && blocked {
				return Session{}, errs.ErrRateLimited
			}
		}
		return Session{}, err
	}
}

// signInOffline verifies the password against the cached shadow record and
// issues a locally signed session.
func (s *AuthShim) signInOffline(ctx context.Context, email, password string) (Session, error) {
	u, err := s.userByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			_, _, _ = s.lim.Failure(ctx, email)
			return Session{}, errs.ErrUnauthorized
		}
		return Session{}, err
	}
	if !pkgcrypto.VerifyPassword([]byte(password), u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, email); ferr == nil && blocked {
			return Session{}, errs.ErrRateLimited
		}
		return Session{}, errs.ErrUnauthorized
	}
	_ = s.lim.Success(ctx, email)

	token, exp, err := s.issueLocalToken(u.ID)
	if err != nil {
		return Session{}, err
	}
	res := remote.AuthResult{User: stripSecrets(u), AccessToken: token, ExpiresAt: exp}
	return s.storeSession(ctx, res, true)
}

// SignUp creates an account, online when possible. The offline path refuses a
// duplicate local email and otherwise creates the local record and signs in.
func (s *AuthShim) SignUp(ctx context.Context, email, password, fullName string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, errors.New("validation: empty email/password")
	}

	res, err := s.identity.SignUp(ctx, email, password, fullName, s.clinicID)
	switch {
	case err == nil:
		if err := s.mirrorUser(ctx, res.User, password); err != nil {
			s.log.Warn("shadow mirror failed", zap.Error(err))
		}
		return s.storeSession(ctx, res, false)

	case errors.Is(err, errs.ErrRemoteUnavailable):
		if _, err := s.userByEmail(ctx, email); err == nil {
			return Session{}, errs.ErrAlreadyExists
		} else if !errors.Is(err, errs.ErrNotFound) {
			return Session{}, err
		}
		uid, err := uuid.NewV4()
		if err != nil {
			return Session{}, err
		}
		salt, err := pkgcrypto.RandBytes(16)
		if err != nil {
			return Session{}, err
		}
		u := model.OfflineUser{
			ID:        uid,
			Email:     email,
			FullName:  fullName,
			Role:      "dentist",
			ClinicID:  s.clinicID,
			PwdHash:   pkgcrypto.HashPassword([]byte(password), salt),
			SaltAuth:  salt,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.putUser(ctx, u); err != nil {
			return Session{}, err
		}
		return s.signInOffline(ctx, email, password)

	default:
		return Session{}, err
	}
}

// SignOut deletes all local sessions; a reachable remote session is
// invalidated best-effort.
func (s *AuthShim) SignOut(ctx context.Context) error {
	sessions, err := s.localSessions(ctx)
	if err == nil {
		for _, ls := range sessions {
			if err := s.identity.SignOut(ctx, ls.AccessToken); err != nil && !errors.Is(err, errs.ErrRemoteUnavailable) {
				s.log.Warn("remote sign-out failed", zap.Error(err))
			}
		}
	}
	return s.store.Clear(ctx, model.PartOfflineSessions)
}

// CurrentSession prefers remote resolution of the stored token; when the
// remote service is unreachable it returns the first unexpired local session.
// Expired sessions are pruned at read time.
func (s *AuthShim) CurrentSession(ctx context.Context) (Session, error) {
	sessions, err := s.localSessions(ctx)
	if err != nil {
		return Session{}, err
	}

	var live *model.OfflineSession
	for i := range sessions {
		if time.Now().After(sessions[i].ExpiresAt) {
			_ = s.store.Delete(ctx, model.PartOfflineSessions, sessions[i].ID.String())
			continue
		}
		if live == nil || sessions[i].CreatedAt.After(live.CreatedAt) {
			live = &sessions[i]
		}
	}
	if live == nil {
		return Session{}, errs.ErrSessionExpired
	}

	u, err := s.identity.CurrentUser(ctx, live.AccessToken)
	if err == nil {
		return Session{
			User:        stripSecrets(u),
			AccessToken: live.AccessToken,
			ExpiresAt:   live.ExpiresAt,
			Caps:        authz.ForRole(u.Role),
			Offline:     false,
		}, nil
	}
	if !errors.Is(err, errs.ErrRemoteUnavailable) {
		// token rejected by a reachable backend: the session is dead
		_ = s.store.Delete(ctx, model.PartOfflineSessions, live.ID.String())
		return Session{}, errs.ErrSessionExpired
	}

	lu, lerr := s.userByID(ctx, live.UserID)
	if lerr != nil {
		return Session{}, errs.ErrSessionExpired
	}
	return Session{
		User:        stripSecrets(lu),
		AccessToken: live.AccessToken,
		ExpiresAt:   live.ExpiresAt,
		Caps:        authz.ForRole(lu.Role),
		Offline:     true,
	}, nil
}

// --- local persistence helpers ---

// mirrorUser re-hashes the password with a fresh random salt and stores the
// shadow record for future offline verification.
func (s *AuthShim) mirrorUser(ctx context.Context, u model.OfflineUser, password string) error {
	salt, err := pkgcrypto.RandBytes(16)
	if err != nil {
		return err
	}
	u.SaltAuth = salt
	u.PwdHash = pkgcrypto.HashPassword([]byte(password), salt)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return s.putUser(ctx, u)
}

func (s *AuthShim) putUser(ctx context.Context, u model.OfflineUser) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, model.PartOfflineUsers, u.ID.String(), b)
}

func (s *AuthShim) userByEmail(ctx context.Context, email string) (model.OfflineUser, error) {
	payloads, err := s.store.GetAll(ctx, model.PartOfflineUsers)
	if err != nil {
		return model.OfflineUser{}, err
	}
	for _, p := range payloads {
		var u model.OfflineUser
		if err := json.Unmarshal(p, &u); err != nil {
			continue
		}
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.OfflineUser{}, errs.ErrNotFound
}

func (s *AuthShim) userByID(ctx context.Context, id uuid.UUID) (model.OfflineUser, error) {
	p, err := s.store.Get(ctx, model.PartOfflineUsers, id.String())
	if err != nil {
		return model.OfflineUser{}, err
	}
	var u model.OfflineUser
	if err := json.Unmarshal(p, &u); err != nil {
		return model.OfflineUser{}, fmt.Errorf("decode shadow user: %w", err)
	}
	return u, nil
}

func (s *AuthShim) localSessions(ctx context.Context) ([]model.OfflineSession, error) {
	payloads, err := s.store.GetAll(ctx, model.PartOfflineSessions)
	if err != nil {
		return nil, err
	}
	out := make([]model.OfflineSession, 0, len(payloads))
	for _, p := range payloads {
		var ls model.OfflineSession
		if err := json.Unmarshal(p, &ls); err != nil {
			continue
		}
		out = append(out, ls)
	}
	return out, nil
}

// storeSession persists the session locally and returns the normalized shape.
func (s *AuthShim) storeSession(ctx context.Context, res remote.AuthResult, offline bool) (Session, error) {
	sid, err := uuid.NewV4()
	if err != nil {
		return Session{}, err
	}
	ls := model.OfflineSession{
		ID:           sid,
		UserID:       res.User.ID,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
		CreatedAt:    time.Now().UTC(),
	}
	b, err := json.Marshal(ls)
	if err != nil {
		return Session{}, err
	}
	if err := s.store.Put(ctx, model.PartOfflineSessions, ls.ID.String(), b); err != nil {
		return Session{}, err
	}
	return Session{
		User:        stripSecrets(res.User),
		AccessToken: res.AccessToken,
		ExpiresAt:   res.ExpiresAt,
		Caps:        authz.ForRole(res.User.Role),
		Offline:     offline,
	}, nil
}

// issueLocalToken creates a signed HS256 JWT valid for the shim's session TTL.
func (s *AuthShim) issueLocalToken(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.sessionTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	return signed, exp, err
}

func stripSecrets(u model.OfflineUser) model.OfflineUser {
	u.PwdHash, u.SaltAuth = nil, nil
	return u
}
