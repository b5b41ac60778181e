package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"user-accounts/internal/domain"
	"user-accounts/internal/email"
	"user-accounts/internal/repository"
)

// UserService coordina registro, login, sesiones y verificacion de email.
type UserService struct {
	logger         *zap.Logger
	users          repository.UserRepository
	credentials    *CredentialStore
	verifyTokens   *TokenService
	rememberTokens *TokenService
	sessions       *SessionService
	rememberStore  SessionStore
	emailSender    email.Sender
	limiter        RateLimiter
	verifyBaseURL  string
}

func NewUserService(
	logger *zap.Logger,
	users repository.UserRepository,
	credentials *CredentialStore,
	verifyTokens *TokenService,
	rememberTokens *TokenService,
	sessions *SessionService,
	rememberStore SessionStore,
	emailSender email.Sender,
	limiter RateLimiter,
	verifyBaseURL string,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rememberStore == nil {
		rememberStore = NewMemorySessionStore()
	}
	if limiter == nil {
		limiter = NewRateLimiter(10*time.Minute, 3)
	}
	return &UserService{
		logger:         logger,
		users:          users,
		credentials:    credentials,
		verifyTokens:   verifyTokens,
		rememberTokens: rememberTokens,
		sessions:       sessions,
		rememberStore:  rememberStore,
		emailSender:    emailSender,
		limiter:        limiter,
		verifyBaseURL:  verifyBaseURL,
	}
}

type RegisterInput struct {
	Firstname  string
	Middlename string
	Lastname   string
	Username   string
	Email      string
	Password   string
}

type LoginInput struct {
	Email    string
	Password string
	Remember bool
}

// LoginResult es lo que recibe quien llama tras autenticarse.
type LoginResult struct {
	User    domain.User
	Session domain.Session
}

var errNotConfigured = errors.New("user service not configured")

// Limites de las columnas de users.
const (
	MaxNameLength  = 50
	MaxEmailLength = 254
)

func fitsColumns(input RegisterInput) bool {
	for _, name := range []string{input.Firstname, input.Middlename, input.Lastname, input.Username} {
		if utf8.RuneCountInString(strings.TrimSpace(name)) > MaxNameLength {
			return false
		}
	}
	return utf8.RuneCountInString(strings.TrimSpace(input.Email)) <= MaxEmailLength
}

func storeUnavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// Register valida unicidad, crea el usuario y dispara el correo de verificacion.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s.users == nil || s.credentials == nil {
		return domain.User{}, errNotConfigured
	}

	emailAddr := normalizeEmail(input.Email)
	username := normalizeUsername(input.Username)
	if emailAddr == "" || input.Password == "" ||
		strings.TrimSpace(input.Firstname) == "" || strings.TrimSpace(input.Lastname) == "" ||
		!fitsColumns(input) {
		return domain.User{}, ErrInvalidInput
	}

	// Chequeo previo para dar un mensaje claro; la restriccion unique decide al final.
	if username != "" {
		if err := s.ensureAvailable(ctx, "username", func() (domain.User, error) {
			return s.users.GetByUsername(ctx, username)
		}); err != nil {
			return domain.User{}, err
		}
	}
	if err := s.ensureAvailable(ctx, "email", func() (domain.User, error) {
		return s.users.GetByEmail(ctx, emailAddr)
	}); err != nil {
		return domain.User{}, err
	}

	user, err := s.credentials.NewUser(NewUserInput{
		Firstname:  input.Firstname,
		Middlename: input.Middlename,
		Lastname:   input.Lastname,
		Username:   username,
		Email:      emailAddr,
		Password:   input.Password,
	})
	if err != nil {
		return domain.User{}, err
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		var dup *repository.UniqueViolationError
		if errors.As(err, &dup) {
			field := dup.Field
			if field == "" {
				field = "email"
			}
			return domain.User{}, &DuplicateAccountError{Field: field}
		}
		s.logger.Error("create user failed", zap.Error(err))
		return domain.User{}, storeUnavailable(err)
	}

	if _, err := s.sendVerification(ctx, created); err != nil {
		s.logger.Warn("verification email after register failed", zap.Error(err), zap.Int64("user_id", created.ID))
	}
	return created, nil
}

func (s *UserService) ensureAvailable(ctx context.Context, field string, lookup func() (domain.User, error)) error {
	_, err := lookup()
	if err == nil {
		return &DuplicateAccountError{Field: field}
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	s.logger.Error("lookup user failed", zap.Error(err), zap.String("field", field))
	return storeUnavailable(err)
}

// Authenticate no distingue email desconocido de contrasena incorrecta.
func (s *UserService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, error) {
	if s.users == nil || s.credentials == nil {
		return domain.User{}, errNotConfigured
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, storeUnavailable(err)
	}
	if !s.credentials.VerifyPassword(user, password) {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	user, err := s.Authenticate(ctx, input.Email, input.Password)
	if err != nil {
		return LoginResult{}, err
	}
	return s.startSession(ctx, user, input.Remember)
}

// LoginWithRememberToken reautentica sin contrasena. Cada token sirve una sola vez:
// se revoca al usarlo y la sesion nueva trae otro.
func (s *UserService) LoginWithRememberToken(ctx context.Context, token string) (LoginResult, error) {
	if s.users == nil || s.rememberTokens == nil {
		return LoginResult{}, errNotConfigured
	}
	userID, tokenID, err := s.rememberTokens.InspectWithID(token)
	if err != nil {
		s.logger.Debug("remember token rejected", zap.Error(err))
		return LoginResult{}, ErrTokenInvalid
	}
	owner, ok, err := s.rememberStore.Lookup(ctx, tokenID)
	if err != nil {
		return LoginResult{}, storeUnavailable(err)
	}
	if !ok || owner != userID {
		s.logger.Debug("remember token revoked", zap.Int64("user_id", userID))
		return LoginResult{}, ErrTokenInvalid
	}
	if err := s.rememberStore.Delete(ctx, tokenID); err != nil {
		return LoginResult{}, storeUnavailable(err)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, ErrTokenInvalid
		}
		return LoginResult{}, storeUnavailable(err)
	}
	return s.startSession(ctx, user, true)
}

// RevokeRememberToken invalida un token "recordarme". Un token ilegible o vencido no hace nada.
func (s *UserService) RevokeRememberToken(ctx context.Context, token string) error {
	if s.rememberTokens == nil || strings.TrimSpace(token) == "" {
		return nil
	}
	_, tokenID, err := s.rememberTokens.InspectWithID(token)
	if err != nil {
		return nil
	}
	if err := s.rememberStore.Delete(ctx, tokenID); err != nil {
		return storeUnavailable(err)
	}
	return nil
}

func (s *UserService) startSession(ctx context.Context, user domain.User, remember bool) (LoginResult, error) {
	if s.sessions == nil {
		return LoginResult{}, errNotConfigured
	}
	session, err := s.sessions.Start(ctx, user.ID)
	if err != nil {
		s.logger.Error("start session failed", zap.Error(err), zap.Int64("user_id", user.ID))
		return LoginResult{}, storeUnavailable(err)
	}
	if remember && s.rememberTokens != nil {
		rememberToken, err := s.issueRememberToken(ctx, user.ID)
		if err != nil {
			if endErr := s.sessions.End(ctx, session.Token); endErr != nil {
				s.logger.Warn("end orphan session failed", zap.Error(endErr), zap.Int64("user_id", user.ID))
			}
			return LoginResult{}, err
		}
		session.RememberToken = rememberToken
	}
	return LoginResult{User: user, Session: session}, nil
}

func (s *UserService) issueRememberToken(ctx context.Context, userID int64) (string, error) {
	token, tokenID, err := s.rememberTokens.IssueWithID(userID)
	if err != nil {
		s.logger.Error("issue remember token failed", zap.Error(err), zap.Int64("user_id", userID))
		return "", err
	}
	if err := s.rememberStore.Save(ctx, tokenID, userID, s.rememberTokens.MaxAge()); err != nil {
		return "", storeUnavailable(err)
	}
	return token, nil
}

// Logout termina la sesion y, si se envia, revoca tambien el token "recordarme".
func (s *UserService) Logout(ctx context.Context, sessionToken, rememberToken string) error {
	if s.sessions == nil {
		return errNotConfigured
	}
	if err := s.sessions.End(ctx, sessionToken); err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			return err
		}
		return storeUnavailable(err)
	}
	return s.RevokeRememberToken(ctx, rememberToken)
}

// ResolveSession devuelve el user id detras de un token de sesion.
func (s *UserService) ResolveSession(ctx context.Context, sessionToken string) (int64, error) {
	if s.sessions == nil {
		return 0, errNotConfigured
	}
	userID, err := s.sessions.Resolve(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			return 0, err
		}
		return 0, storeUnavailable(err)
	}
	return userID, nil
}

func (s *UserService) CurrentUser(ctx context.Context, sessionToken string) (domain.User, error) {
	userID, err := s.ResolveSession(ctx, sessionToken)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrSessionInvalid
		}
		return domain.User{}, storeUnavailable(err)
	}
	return user, nil
}

// RequestVerification emite un token nuevo y lo envia por correo.
func (s *UserService) RequestVerification(ctx context.Context, userID int64) (time.Time, error) {
	if s.users == nil {
		return time.Time{}, errNotConfigured
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, storeUnavailable(err)
	}
	if user.Verified {
		return time.Time{}, ErrAlreadyVerified
	}
	return s.sendVerification(ctx, user)
}

func (s *UserService) sendVerification(ctx context.Context, user domain.User) (time.Time, error) {
	if s.verifyTokens == nil {
		return time.Time{}, errNotConfigured
	}
	if s.limiter != nil && !s.limiter.Allow(ctx, user.Email) {
		return time.Time{}, ErrRateLimited
	}

	token, expiresAt, err := s.verifyTokens.IssueWithExpiry(user.ID)
	if err != nil {
		return time.Time{}, err
	}

	if s.emailSender == nil {
		return time.Time{}, ErrEmailSendFailure
	}
	err = s.emailSender.SendVerification(ctx, email.VerificationEmail{
		To:        user.Email,
		Name:      user.FullName(),
		Token:     token,
		Link:      s.verificationLink(token),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		s.logger.Warn("send verification email failed", zap.Error(err), zap.Int64("user_id", user.ID))
		return time.Time{}, ErrEmailSendFailure
	}
	return expiresAt, nil
}

func (s *UserService) verificationLink(token string) string {
	if s.verifyBaseURL == "" {
		return ""
	}
	u, err := url.Parse(s.verifyBaseURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// Verify confirma el email. Un token valido para un usuario inexistente cuenta como invalido.
func (s *UserService) Verify(ctx context.Context, token string) (domain.User, error) {
	if s.users == nil || s.verifyTokens == nil {
		return domain.User{}, errNotConfigured
	}

	userID, err := s.verifyTokens.Inspect(token)
	if err != nil {
		s.logger.Debug("verification token rejected", zap.Error(err))
		return domain.User{}, ErrTokenInvalid
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrTokenInvalid
		}
		return domain.User{}, storeUnavailable(err)
	}
	if user.Verified {
		return user, nil
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrTokenInvalid
		}
		return domain.User{}, storeUnavailable(err)
	}
	user.Verified = true
	s.logger.Info("user verified", zap.Int64("user_id", user.ID))
	return user, nil
}
