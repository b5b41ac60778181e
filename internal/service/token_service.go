package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenPurpose separa los tokens de verificacion de los de "recordarme".
type TokenPurpose string

const (
	PurposeVerify   TokenPurpose = "verify"
	PurposeRemember TokenPurpose = "remember"
)

const defaultTokenIssuer = "user-accounts"

// TokenService emite y valida tokens firmados con vencimiento que prueban un user id.
type TokenService struct {
	secret  []byte
	maxAge  time.Duration
	purpose TokenPurpose
	issuer  string
	now     func() time.Time
}

type TokenOption func(*TokenService)

// WithClock reemplaza el reloj usado para emitir y validar.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		if strings.TrimSpace(issuer) != "" {
			s.issuer = issuer
		}
	}
}

type tokenClaims struct {
	UserID  int64        `json:"user_id"`
	Purpose TokenPurpose `json:"typ"`
	jwt.RegisteredClaims
}

func NewTokenService(secret string, maxAge time.Duration, purpose TokenPurpose, opts ...TokenOption) *TokenService {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	s := &TokenService{
		secret:  []byte(secret),
		maxAge:  maxAge,
		purpose: purpose,
		issuer:  defaultTokenIssuer,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenService) MaxAge() time.Duration {
	return s.maxAge
}

func (s *TokenService) Issue(userID int64) (string, error) {
	token, _, err := s.IssueWithExpiry(userID)
	return token, err
}

// IssueWithExpiry firma {user_id} y devuelve tambien el instante de vencimiento.
func (s *TokenService) IssueWithExpiry(userID int64) (string, time.Time, error) {
	token, _, expiresAt, err := s.issue(userID)
	return token, expiresAt, err
}

// IssueWithID devuelve ademas el jti, para poder revocar el token en el servidor.
func (s *TokenService) IssueWithID(userID int64) (string, string, error) {
	token, id, _, err := s.issue(userID)
	return token, id, err
}

func (s *TokenService) issue(userID int64) (string, string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", "", time.Time{}, ErrTokenSecretMissing
	}
	if userID <= 0 {
		return "", "", time.Time{}, ErrInvalidInput
	}
	now := s.now()
	expiresAt := now.Add(s.maxAge)
	id := uuid.NewString()
	claims := tokenClaims{
		UserID:  userID,
		Purpose: s.purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, id, expiresAt, nil
}

// Verify devuelve el user id embebido o ok=false ante cualquier falla.
func (s *TokenService) Verify(token string) (int64, bool) {
	userID, err := s.Inspect(token)
	if err != nil {
		return 0, false
	}
	return userID, true
}

// Inspect valida el token y reporta el motivo de la falla
// (ErrTokenExpired, ErrTokenBadSignature o ErrTokenMalformed).
func (s *TokenService) Inspect(token string) (int64, error) {
	userID, _, err := s.InspectWithID(token)
	return userID, err
}

// InspectWithID es Inspect mas el jti del token.
func (s *TokenService) InspectWithID(token string) (int64, string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, "", ErrTokenMalformed
	}
	if len(s.secret) == 0 {
		return 0, "", ErrTokenBadSignature
	}

	var claims tokenClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return 0, "", ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return 0, "", ErrTokenBadSignature
		default:
			return 0, "", ErrTokenMalformed
		}
	}
	if claims.Purpose != s.purpose || claims.UserID <= 0 {
		return 0, "", ErrTokenMalformed
	}
	return claims.UserID, claims.ID, nil
}
