package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"user-accounts/internal/domain"
	"user-accounts/internal/email"
	"user-accounts/internal/repository"
)

type mockUserRepo struct {
	usersByID       map[int64]domain.User
	usersByEmail    map[string]int64
	usersByUsername map[string]int64
	nextID          int64

	createErr error
	lookupErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:       make(map[int64]domain.User),
		usersByEmail:    make(map[string]int64),
		usersByUsername: make(map[string]int64),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	if m.createErr != nil {
		return domain.User{}, m.createErr
	}
	if _, ok := m.usersByEmail[user.Email]; ok {
		return domain.User{}, &repository.UniqueViolationError{Field: "email", Constraint: "users_email_key"}
	}
	if user.Username != "" {
		if _, ok := m.usersByUsername[user.Username]; ok {
			return domain.User{}, &repository.UniqueViolationError{Field: "username", Constraint: "users_username_key"}
		}
	}
	m.nextID++
	user.ID = m.nextID
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	if user.Username != "" {
		m.usersByUsername[user.Username] = user.ID
	}
	return user, nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (domain.User, error) {
	if m.lookupErr != nil {
		return domain.User{}, m.lookupErr
	}
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	if m.lookupErr != nil {
		return domain.User{}, m.lookupErr
	}
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return m.GetByID(ctx, id)
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	if m.lookupErr != nil {
		return domain.User{}, m.lookupErr
	}
	id, ok := m.usersByUsername[username]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return m.GetByID(ctx, id)
}

func (m *mockUserRepo) MarkVerified(_ context.Context, id int64) error {
	user, ok := m.usersByID[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Verified = true
	m.usersByID[id] = user
	return nil
}

type mockEmailSender struct {
	sent []email.VerificationEmail
	err  error
}

func (m *mockEmailSender) SendVerification(_ context.Context, msg email.VerificationEmail) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockEmailSender) last() email.VerificationEmail {
	if len(m.sent) == 0 {
		return email.VerificationEmail{}
	}
	return m.sent[len(m.sent)-1]
}

type mockLimiter struct {
	allow bool
}

func (m *mockLimiter) Allow(_ context.Context, _ string) bool {
	return m.allow
}

type userServiceFixture struct {
	svc            *UserService
	repo           *mockUserRepo
	sender         *mockEmailSender
	clock          *fakeClock
	verifyTokens   *TokenService
	rememberTokens *TokenService
	sessionStore   *memorySessionStore
	rememberStore  *memorySessionStore
}

func newUserServiceFixture(t *testing.T, limiter RateLimiter) *userServiceFixture {
	t.Helper()
	clock := newFakeClock()
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	verifyTokens := NewTokenService("test-secret", time.Hour, PurposeVerify, WithClock(clock.Now))
	rememberTokens := NewTokenService("test-secret", 30*24*time.Hour, PurposeRemember, WithClock(clock.Now))
	if limiter == nil {
		limiter = &mockLimiter{allow: true}
	}
	sessionStore := NewMemorySessionStore().(*memorySessionStore)
	rememberStore := NewMemorySessionStore().(*memorySessionStore)
	svc := NewUserService(
		zap.NewNop(),
		repo,
		NewCredentialStore(NewBcryptHasher(bcrypt.MinCost)),
		verifyTokens,
		rememberTokens,
		NewSessionService(sessionStore, time.Hour),
		rememberStore,
		sender,
		limiter,
		"https://app.example.com/verify",
	)
	return &userServiceFixture{
		svc:            svc,
		repo:           repo,
		sender:         sender,
		clock:          clock,
		verifyTokens:   verifyTokens,
		rememberTokens: rememberTokens,
		sessionStore:   sessionStore,
		rememberStore:  rememberStore,
	}
}

func (f *userServiceFixture) register(t *testing.T, emailAddr, username, password string) domain.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), RegisterInput{
		Firstname: "Ada",
		Lastname:  "Lovelace",
		Username:  username,
		Email:     emailAddr,
		Password:  password,
	})
	if err != nil {
		t.Fatalf("register %s: %v", emailAddr, err)
	}
	return user
}

func TestUserServiceRegister_Success(t *testing.T) {
	f := newUserServiceFixture(t, nil)

	user := f.register(t, " A@X.com ", "Ada", "secret1")
	if user.ID == 0 {
		t.Fatalf("expected id assigned")
	}
	if user.Email != "a@x.com" || user.Username != "ada" {
		t.Fatalf("expected normalized email/username, got %q/%q", user.Email, user.Username)
	}
	if user.Verified {
		t.Fatalf("expected new user to be unverified")
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret1" {
		t.Fatalf("expected password to be hashed")
	}

	if len(f.sender.sent) != 1 {
		t.Fatalf("expected one verification email, got %d", len(f.sender.sent))
	}
	msg := f.sender.last()
	if msg.To != "a@x.com" || msg.Name != "Ada Lovelace" {
		t.Fatalf("unexpected email recipient %+v", msg)
	}
	link, err := url.Parse(msg.Link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if link.Query().Get("token") != msg.Token {
		t.Fatalf("expected link to carry token, got %s", msg.Link)
	}
	if !msg.ExpiresAt.Equal(f.clock.now.Add(time.Hour)) {
		t.Fatalf("expected expiry one hour ahead, got %v", msg.ExpiresAt)
	}
}

func TestUserServiceRegister_EmailFailureStillRegisters(t *testing.T) {
	f := newUserServiceFixture(t, nil)
	f.sender.err = errors.New("smtp down")

	user := f.register(t, "a@x.com", "", "secret1")
	if _, err := f.repo.GetByID(context.Background(), user.ID); err != nil {
		t.Fatalf("expected user persisted, got %v", err)
	}
}

func TestUserServiceRegister_InvalidInput(t *testing.T) {
	f := newUserServiceFixture(t, nil)

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{name: "missing email", input: RegisterInput{Firstname: "A", Lastname: "B", Password: "pw"}},
		{name: "missing password", input: RegisterInput{Firstname: "A", Lastname: "B", Email: "a@x.com"}},
		{name: "missing firstname", input: RegisterInput{Lastname: "B", Email: "a@x.com", Password: "pw"}},
		{name: "missing lastname", input: RegisterInput{Firstname: "A", Email: "a@x.com", Password: "pw"}},
		{name: "password too long", input: RegisterInput{Firstname: "A", Lastname: "B", Email: "a@x.com", Password: strings.Repeat("x", 80)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.input)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
	if len(f.repo.usersByID) != 0 {
		t.Fatalf("expected nothing persisted")
	}
}

func TestUserServiceRegister_FieldLengths(t *testing.T) {
	f := newUserServiceFixture(t, nil)
	long := strings.Repeat("n", MaxNameLength+1)
	longEmail := strings.Repeat("e", MaxEmailLength) + "@x.com"

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{name: "firstname", input: RegisterInput{Firstname: long, Lastname: "B", Email: "a@x.com", Password: "pw"}},
		{name: "middlename", input: RegisterInput{Firstname: "A", Middlename: long, Lastname: "B", Email: "a@x.com", Password: "pw"}},
		{name: "lastname", input: RegisterInput{Firstname: "A", Lastname: long, Email: "a@x.com", Password: "pw"}},
		{name: "username", input: RegisterInput{Firstname: "A", Lastname: "B", Username: long, Email: "a@x.com", Password: "pw"}},
		{name: "email", input: RegisterInput{Firstname: "A", Lastname: "B", Email: longEmail, Password: "pw"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.input)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
	if len(f.repo.usersByID) != 0 {
		t.Fatalf("expected nothing persisted, got %d users", len(f.repo.usersByID))
	}

	// 50 caracteres multibyte todavia entran en la columna.
	user, err := f.svc.Register(context.Background(), RegisterInput{
		Firstname: strings.Repeat("ñ", MaxNameLength),
		Lastname:  "B",
		Email:     "a@x.com",
		Password:  "pw",
	})
	if err != nil {
		t.Fatalf("expected name at the limit to be accepted, got %v", err)
	}
	if user.ID == 0 {
		t.Fatalf("expected user persisted")
	}
}

func TestUserServiceRegister_DuplicateEmail(t *testing.T) {
	f := newUserServiceFixture(t, nil)
	f.register(t, "a@x.com", "", "secret1")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Firstname: "Other",
		Lastname:  "Person",
		Email:     "A@x.com",
		Password:  "secret2",
	})
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
	if err.Error() != "email is already in use" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if len(f.repo.usersByID) != 1 {
		t.Fatalf("expected exactly one user persisted, got %d", len(f.repo.usersByID))
	}
}

func TestUserServiceRegister_DuplicateUsername(t *testing.T) {
	f := newUserServiceFixture(t, nil)
	f.register(t, "a@x.com", "ada", "secret1")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Firstname: "Ada",
		Lastname:  "Byron",
		Username:  "ADA",
		Email:     "b@x.com",
		Password:  "secret2",
	})
	var dup *DuplicateAccountError
	if !errors.As(err, &dup) || dup.Field != "username" {
		t.Fatalf("expected username duplicate, got %v", err)
	}
	if err.Error() != "username is already taken" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestUserServiceRegister_RaceMapsToDuplicate(t *testing.T) {
	f := newUserServiceFixture(t, nil)
	f.repo.createErr = &repository.UniqueViolationError{Field: "email", Constraint: "users_email_key"}

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Firstname: "Ada",
		Lastname:  "Lovelace",
		Email:     "a@x.com",
		Password:  "secret1",
	})
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount from store race, got %v", err)
	}
}

func TestUserServiceRegister_StoreUnavailable(t *testing.T) {
	f := newUserServiceFixture(t, nil)
	f.repo.createErr = errors.New("connection reset")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Firstname: "Ada",
		Lastname:  "Lovelace",
		Email:     "a@x.com",
		Password:  "secret1",
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	f.repo.createErr = nil
	f.repo.lookupErr = errors.New("connection reset")
	_, err = f.svc.Register(context.Background(), RegisterInput{
		Firstname: "Ada",
		Lastname:  "Lovelace",
		Email:     "a@x.com",
		Password:  "secret1",
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable on lookup failure, got %v", err)
	}
}

func TestUserServiceLogin(t *testing.T) {
	f := newUserServiceFixture(t, nil)
	registered := f.register(t, "a@x.com", "", "secret1")

	res, err := f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("expected login success, got %v", err)
	}
	if res.User.ID != registered.ID {
		t.Fatalf("expected user %d, got %d", registered.ID, res.User.ID)
	}
	if res.Session.Token == "" {
		t.Fatalf("expected session token")
	}
	if res.Session.RememberToken != "" {
		t.Fatalf("expected no remember token without remember flag")
	}

	for _, tc := range []struct{ email, password string }{
		{"a@x.com", "Secret1"},
		{"a@x.com", "secret1 "},
		{"a@x.com", ""},
		{"missing@x.com", "secret1"},
	} {
		if _, err := f.svc.Login(context.Background(), LoginInput{Email: tc.email, Password: tc.password}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials for %q/%q, got %v", tc.email, tc.password, err)
		}
	}
}

func TestUserServiceLogin_StoreUnavailable(t *testing.T) {
	f := newUserServiceFixture(t, nil)
	f.repo.lookupErr = errors.New("db down")

	_, err := f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "secret1"})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestUserServiceSessionLifecycle(t *testing.T) {
	f := newUserServiceFixture(t, nil)
	registered := f.register(t, "a@x.com", "", "secret1")

	res, err := f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	me, err := f.svc.CurrentUser(context.Background(), res.Session.Token)
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if me.ID != registered.ID {
		t.Fatalf("expected current user %d, got %d", registered.ID, me.ID)
	}

	if err := f.svc.Logout(context.Background(), res.Session.Token, ""); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.svc.CurrentUser(context.Background(), res.Session.Token); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid after logout, got %v", err)
	}
	if err := f.svc.Logout(context.Background(), "", ""); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid for empty token, got %v", err)
	}
}

func TestUserServiceRememberToken(t *testing.T) {
	f := newUserServiceFixture(t, nil)
	registered := f.register(t, "a@x.com", "", "secret1")

	res, err := f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "secret1", Remember: true})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Session.RememberToken == "" {
		t.Fatalf("expected remember token")
	}

	f.clock.Advance(time.Minute)
	again, err := f.svc.LoginWithRememberToken(context.Background(), res.Session.RememberToken)
	if err != nil {
		t.Fatalf("remember login: %v", err)
	}
	if again.User.ID != registered.ID {
		t.Fatalf("expected user %d, got %d", registered.ID, again.User.ID)
	}
	if again.Session.Token == res.Session.Token {
		t.Fatalf("expected a fresh session")
	}
	if again.Session.RememberToken == "" || again.Session.RememberToken == res.Session.RememberToken {
		t.Fatalf("expected rotated remember token")
	}

	verifyToken := f.sender.last().Token
	if _, err := f.svc.LoginWithRememberToken(context.Background(), verifyToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected verification token to be refused for remember login, got %v", err)
	}

	f.clock.Advance(31 * 24 * time.Hour)
	if _, err := f.svc.LoginWithRememberToken(context.Background(), again.Session.RememberToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected expired remember token to be refused, got %v", err)
	}
}

func TestUserServiceRememberToken_SingleUse(t *testing.T) {
	f := newUserServiceFixture(t, nil)
	f.register(t, "a@x.com", "", "secret1")

	res, err := f.svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "secret1", Remember: true})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	first := res.Session.RememberToken
	if len(f.rememberStore.items) != 1 {
		t.Fatalf("expected remember token tracked, got %d", len(f.rememberStore.items))
	}

	rotated, err := f.svc.LoginWithRememberToken(context.Background(), first)
	if err != nil {
		t.Fatalf("remember login: %v", err)
	}
	if _, err := f.svc.LoginWithRememberToken(context.Background(), first); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected rotated token to be refused, got %v", err)
	}
	if len(f.rememberStore.items) != 1 {
		t.Fatalf("expected only the rotated token tracked, got %d", len(f.rememberStore.items))
	}

	if err := f.svc.Logout(context.Background(), rotated.Session.Token, rotated.Session.RememberToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.svc.LoginWithRememberToken(context.Background(), rotated.Session.RememberToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected token revoked at logout to be refused, got %v", err)
	}
	if len(f.rememberStore.items) != 0 {
		t.Fatalf("expected no remember tokens left, got %d", len(f.rememberStore.items))
	}
}

func TestUserServiceRememberToken_UntrackedRefused(t *testing.T) {
	f := newUserServiceFixture(t, nil)
	registered := f.register(t, "a@x.com", "", "secret1")

	// Firmado con el secreto correcto pero nunca registrado en el store.
	forged, err := f.rememberTokens.Issue(registered.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.svc.LoginWithRememberToken(context.Background(), forged); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected untracked token to be refused, got %v", err)
	}
	if err := f.svc.RevokeRememberToken(context.Background(), "garbage"); err != nil {
		t.Fatalf("expected revoke of unreadable token to be a no-op, got %v", err)
	}
}

type failingSessionStore struct {
	err error
}

func (s failingSessionStore) Save(context.Context, string, int64, time.Duration) error { return s.err }

func (s failingSessionStore) Lookup(context.Context, string) (int64, bool, error) {
	return 0, false, s.err
}

func (s failingSessionStore) Delete(context.Context, string) error { return s.err }

func TestUserServiceLogin_RememberFailureEndsSession(t *testing.T) {
	tests := []struct {
		name           string
		rememberTokens *TokenService
		rememberStore  SessionStore
		wantErr        error
	}{
		{
			name:           "token signing fails",
			rememberTokens: NewTokenService("", time.Hour, PurposeRemember),
			rememberStore:  NewMemorySessionStore(),
			wantErr:        ErrTokenSecretMissing,
		},
		{
			name:           "remember store down",
			rememberTokens: NewTokenService("test-secret", time.Hour, PurposeRemember),
			rememberStore:  failingSessionStore{err: errors.New("redis down")},
			wantErr:        ErrStoreUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockUserRepo()
			sessions := NewMemorySessionStore().(*memorySessionStore)
			svc := NewUserService(
				zap.NewNop(),
				repo,
				NewCredentialStore(NewBcryptHasher(bcrypt.MinCost)),
				NewTokenService("test-secret", time.Hour, PurposeVerify),
				tt.rememberTokens,
				NewSessionService(sessions, time.Hour),
				tt.rememberStore,
				&mockEmailSender{},
				&mockLimiter{allow: true},
				"https://app.example.com/verify",
			)
			if _, err := svc.Register(context.Background(), RegisterInput{
				Firstname: "Ada", Lastname: "Lovelace", Email: "a@x.com", Password: "secret1",
			}); err != nil {
				t.Fatalf("register: %v", err)
			}

			_, err := svc.Login(context.Background(), LoginInput{Email: "a@x.com", Password: "secret1", Remember: true})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(sessions.items) != 0 {
				t.Fatalf("expected the half-created session to be ended, got %d sessions", len(sessions.items))
			}
		})
	}
}

func TestUserServiceVerify_Flow(t *testing.T) {
	f := newUserServiceFixture(t, nil)
	registered := f.register(t, "a@x.com", "", "secret1")
	token := f.sender.last().Token

	verified, err := f.svc.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verified.Verified || verified.ID != registered.ID {
		t.Fatalf("expected verified user %d, got %+v", registered.ID, verified)
	}
	stored, _ := f.repo.GetByID(context.Background(), registered.ID)
	if !stored.Verified {
		t.Fatalf("expected verified flag persisted")
	}

	again, err := f.svc.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("expected repeated verify to be a no-op, got %v", err)
	}
	if !again.Verified {
		t.Fatalf("expected user to stay verified")
	}

	if _, err := f.svc.RequestVerification(context.Background(), registered.ID); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestUserServiceVerify_Rejects(t *testing.T) {
	f := newUserServiceFixture(t, nil)
	registered := f.register(t, "a@x.com", "", "secret1")
	token := f.sender.last().Token

	t.Run("garbage", func(t *testing.T) {
		if _, err := f.svc.Verify(context.Background(), "garbage"); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid, got %v", err)
		}
	})

	t.Run("remember token", func(t *testing.T) {
		remember, err := f.rememberTokens.Issue(registered.ID)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, err := f.svc.Verify(context.Background(), remember); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid, got %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		ghost, err := f.verifyTokens.Issue(999)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, err := f.svc.Verify(context.Background(), ghost); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		f.clock.Advance(2 * time.Hour)
		if _, err := f.svc.Verify(context.Background(), token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid, got %v", err)
		}
		stored, _ := f.repo.GetByID(context.Background(), registered.ID)
		if stored.Verified {
			t.Fatalf("expected user to remain unverified")
		}
	})
}

func TestUserServiceRequestVerification(t *testing.T) {
	f := newUserServiceFixture(t, nil)
	registered := f.register(t, "a@x.com", "", "secret1")

	f.clock.Advance(5 * time.Minute)
	expiresAt, err := f.svc.RequestVerification(context.Background(), registered.ID)
	if err != nil {
		t.Fatalf("request verification: %v", err)
	}
	if !expiresAt.Equal(f.clock.now.Add(time.Hour)) {
		t.Fatalf("expected expiry one hour ahead, got %v", expiresAt)
	}
	if len(f.sender.sent) != 2 {
		t.Fatalf("expected a second email, got %d", len(f.sender.sent))
	}

	if _, err := f.svc.RequestVerification(context.Background(), 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	f.sender.err = errors.New("smtp down")
	if _, err := f.svc.RequestVerification(context.Background(), registered.ID); !errors.Is(err, ErrEmailSendFailure) {
		t.Fatalf("expected ErrEmailSendFailure, got %v", err)
	}
}

func TestUserServiceRequestVerification_RateLimited(t *testing.T) {
	limiter := &mockLimiter{allow: true}
	f := newUserServiceFixture(t, limiter)
	registered := f.register(t, "a@x.com", "", "secret1")

	limiter.allow = false
	if _, err := f.svc.RequestVerification(context.Background(), registered.ID); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("expected no extra email when limited, got %d", len(f.sender.sent))
	}
}
