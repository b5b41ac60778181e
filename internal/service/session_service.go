package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"user-accounts/internal/domain"
)

// SessionService emite tokens de sesion opacos y revocables.
type SessionService struct {
	store SessionStore
	ttl   time.Duration
	now   func() time.Time
}

func NewSessionService(store SessionStore, ttl time.Duration) *SessionService {
	if store == nil {
		store = NewMemorySessionStore()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionService{
		store: store,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Start abre una sesion para el usuario y la guarda en el store.
func (s *SessionService) Start(ctx context.Context, userID int64) (domain.Session, error) {
	if userID <= 0 {
		return domain.Session{}, ErrInvalidInput
	}
	session := domain.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.store.Save(ctx, session.Token, userID, s.ttl); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// Resolve devuelve el user id de una sesion viva o ErrSessionInvalid.
func (s *SessionService) Resolve(ctx context.Context, token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, ErrSessionInvalid
	}
	userID, ok, err := s.store.Lookup(ctx, token)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrSessionInvalid
	}
	return userID, nil
}

// End revoca la sesion. Es idempotente.
func (s *SessionService) End(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrSessionInvalid
	}
	return s.store.Delete(ctx, token)
}
