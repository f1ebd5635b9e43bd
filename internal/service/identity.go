package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ajali/internal/access"
	"github.com/iliyamo/ajali/internal/apperr"
	"github.com/iliyamo/ajali/internal/model"
	"github.com/iliyamo/ajali/internal/queue"
	"github.com/iliyamo/ajali/internal/repository"
	"github.com/iliyamo/ajali/internal/utils"
)

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Email       string `json:"email" validate:"required,email,max=120"`
	Username    string `json:"username" validate:"required,min=3,max=80"`
	Password    string `json:"password" validate:"required,min=8,bcrypt_len"`
	FullName    string `json:"full_name" validate:"required,min=2,max=120"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=20"`
}

func (in *RegisterInput) normalize() {
	in.Email = repository.NormalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
}

// Session is what a successful sign-up, login or refresh hands back.
type Session struct {
	User    model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// IdentityService owns accounts, credentials and tokens.
type IdentityService struct {
	users  UserStore
	tokens TokenStore
	issuer *utils.TokenIssuer
	cost   int
	decoy  string
	notify Notifier
	log    Logger
	now    func() time.Time
}

// NewIdentityService prepares the decoy digest used to keep failed logins
// for unknown emails as slow as failed logins for known ones.
func NewIdentityService(users UserStore, tokens TokenStore, issuer *utils.TokenIssuer, bcryptCost int, notify Notifier, log Logger) (*IdentityService, error) {
	decoy, err := utils.DecoyHash(bcryptCost)
	if err != nil {
		return nil, err
	}
	if notify == nil {
		notify = nopNotifier{}
	}
	if log == nil {
		log = nopLogger{}
	}
	return &IdentityService{
		users: users, tokens: tokens, issuer: issuer, cost: bcryptCost,
		decoy: decoy, notify: notify, log: log, now: utcNow,
	}, nil
}

var (
	errEmailTaken    = apperr.Conflict(apperr.CodeEmailExists, "Email already registered")
	errUsernameTaken = apperr.Conflict(apperr.CodeUsernameExists, "Username already taken")
	errBadLogin      = apperr.Unauthorized(apperr.CodeInvalidCredentials, "Invalid email or password")
	errDeactivated   = apperr.Forbidden(apperr.CodeAccountDeactivated, "Account is deactivated")
	errBadRefresh    = apperr.Unauthorized(apperr.CodeTokenInvalid, "invalid refresh token")
)

// Register creates a regular account and signs it in.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	u, err := s.createUser(ctx, in, model.RoleUser)
	if err != nil {
		return Session{}, err
	}
	sess, err := s.issueSession(ctx, u)
	if err != nil {
		return Session{}, err
	}
	s.notify.Notify(ctx, queue.Event{
		Type: queue.EventUserRegistered, UserID: u.ID, Email: u.Email, Username: u.Username, OccurredAt: u.CreatedAt,
	})
	return sess, nil
}

// CreateAdmin creates an administrator account without signing it in.
func (s *IdentityService) CreateAdmin(ctx context.Context, in RegisterInput) (model.User, error) {
	return s.createUser(ctx, in, model.RoleAdmin)
}

func (s *IdentityService) createUser(ctx context.Context, in RegisterInput, role string) (model.User, error) {
	in.normalize()
	if err := validateStruct(in); err != nil {
		return model.User{}, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return model.User{}, errEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, apperr.Internal("check email", err)
	}
	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return model.User{}, errUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, apperr.Internal("check username", err)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return model.User{}, err
	}
	now := s.now()
	u := model.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		FullName:     in.FullName,
		PhoneNumber:  in.PhoneNumber,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// The unique indexes close the race between the checks above and here.
	switch err := s.users.Create(ctx, &u); {
	case errors.Is(err, repository.ErrDuplicateEmail):
		return model.User{}, errEmailTaken
	case errors.Is(err, repository.ErrDuplicateUsername):
		return model.User{}, errUsernameTaken
	case err != nil:
		return model.User{}, apperr.Internal("create user", err)
	}
	return u, nil
}

// Authenticate checks credentials. Exactly one bcrypt comparison runs
// whether or not the email is known.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (Session, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, apperr.Validation("email and password are required", map[string]string{
			"email": "is required", "password": "is required",
		})
	}
	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		utils.VerifyPassword(s.decoy, password)
		return Session{}, errBadLogin
	case err != nil:
		return Session{}, apperr.Internal("load user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, errBadLogin
	}
	if !u.IsActive {
		return Session{}, errDeactivated
	}
	return s.issueSession(ctx, u)
}

// Lookup returns an account by id.
func (s *IdentityService) Lookup(ctx context.Context, userID string) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, storeErr("user", "load user", err)
	}
	return u, nil
}

// ResolveToken verifies an access token and loads its bearer. The actor's
// role comes from the stored account, not from the token, so demotions and
// deactivations take effect immediately.
func (s *IdentityService) ResolveToken(ctx context.Context, raw string) (*access.Actor, model.User, error) {
	claims, err := s.issuer.Verify(raw)
	switch {
	case errors.Is(err, utils.ErrTokenExpired):
		return nil, model.User{}, apperr.Unauthorized(apperr.CodeTokenExpired, "token expired")
	case err != nil:
		return nil, model.User{}, apperr.Unauthorized(apperr.CodeTokenInvalid, "invalid token")
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, model.User{}, apperr.Unauthorized(apperr.CodeTokenInvalid, "invalid token")
	case err != nil:
		return nil, model.User{}, apperr.Internal("load user", err)
	}
	if !u.IsActive {
		return nil, model.User{}, errDeactivated
	}
	return &access.Actor{ID: u.ID, Role: u.Role}, u, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *IdentityService) Refresh(ctx context.Context, raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, apperr.InvalidField(apperr.CodeValidation, "refresh_token", "is required")
	}
	hash := utils.HashRefreshRaw(raw)
	userID, err := s.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, errBadRefresh
		}
		return Session{}, apperr.Internal("validate refresh", err)
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return Session{}, apperr.Internal("revoke refresh", err)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, errBadRefresh
		}
		return Session{}, apperr.Internal("load user", err)
	}
	if !u.IsActive {
		return Session{}, errDeactivated
	}
	return s.issueSession(ctx, u)
}

// Logout revokes one refresh token when given, otherwise every token of
// the signed-in actor.
func (s *IdentityService) Logout(ctx context.Context, actor *access.Actor, refreshRaw string) error {
	refreshRaw = strings.TrimSpace(refreshRaw)
	if refreshRaw != "" {
		hash := utils.HashRefreshRaw(refreshRaw)
		if _, err := s.tokens.ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errBadRefresh
			}
			return apperr.Internal("validate refresh", err)
		}
		if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
			return apperr.Internal("revoke refresh", err)
		}
		return nil
	}
	if actor == nil {
		return apperr.InvalidField(apperr.CodeValidation, "refresh_token", "provide Authorization header or refresh_token")
	}
	if err := s.tokens.RevokeAllForUser(ctx, actor.ID); err != nil {
		return apperr.Internal("revoke sessions", err)
	}
	return nil
}

// SeedAdmin makes sure an administrator with the given email exists. An
// account already holding the email or username is promoted and gets the
// new password; otherwise a fresh admin is created.
func (s *IdentityService) SeedAdmin(ctx context.Context, email, username, password string) (model.User, bool, error) {
	email = repository.NormalizeEmail(email)
	if len(password) < 8 {
		return model.User{}, false, apperr.InvalidField(apperr.CodeValidation, "password", "must be at least 8 characters")
	}
	if len(password) > utils.MaxPasswordBytes {
		return model.User{}, false, apperr.InvalidField(apperr.CodeValidation, "password", errPasswordBytes)
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		existing, err = s.users.GetByUsername(ctx, username)
	}
	switch {
	case err == nil:
		hash, herr := s.hashPassword(password)
		if herr != nil {
			return model.User{}, false, herr
		}
		existing.PasswordHash = hash
		existing.UpdatedAt = s.now()
		if err := s.users.PromoteAdmin(ctx, &existing); err != nil {
			return model.User{}, false, storeErr("user", "promote admin", err)
		}
		return existing, false, nil
	case errors.Is(err, repository.ErrNotFound):
		u, err := s.CreateAdmin(ctx, RegisterInput{
			Email: email, Username: username, Password: password, FullName: "System Administrator",
		})
		return u, err == nil, err
	default:
		return model.User{}, false, apperr.Internal("load user", err)
	}
}

// hashPassword reports an over-long password as a field error rather than
// an internal one.
func (s *IdentityService) hashPassword(plain string) (string, error) {
	hash, err := utils.HashPassword(plain, s.cost)
	switch {
	case errors.Is(err, utils.ErrPasswordTooLong):
		return "", apperr.InvalidField(apperr.CodeValidation, "password", errPasswordBytes)
	case err != nil:
		return "", apperr.Internal("hash password", err)
	}
	return hash, nil
}

func (s *IdentityService) issueSession(ctx context.Context, u model.User) (Session, error) {
	acc, err := s.issuer.NewAccessToken(u.ID, u.Role)
	if err != nil {
		return Session{}, apperr.Internal("issue access token", err)
	}
	ref, err := s.issuer.NewRefreshToken()
	if err != nil {
		return Session{}, apperr.Internal("issue refresh token", err)
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(ref.Raw), ref.Exp); err != nil {
		return Session{}, apperr.Internal("store refresh token", err)
	}
	return Session{User: u, Access: acc, Refresh: ref}, nil
}
