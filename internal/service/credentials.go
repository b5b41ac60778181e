package service

import (
	"strings"
	"time"

	"user-accounts/internal/domain"
)

// CredentialStore construye usuarios con contrasena hasheada y verifica credenciales.
// No persiste nada: el commit es responsabilidad de quien llama.
type CredentialStore struct {
	hasher PasswordHasher
	now    func() time.Time
}

func NewCredentialStore(hasher PasswordHasher) *CredentialStore {
	return &CredentialStore{
		hasher: hasher,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type NewUserInput struct {
	Firstname  string
	Middlename string
	Lastname   string
	Username   string
	Email      string
	Password   string
}

// NewUser arma un domain.User listo para insertar. La contrasena nunca se guarda en claro.
func (c *CredentialStore) NewUser(input NewUserInput) (domain.User, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return domain.User{}, ErrInvalidInput
	}

	hash, err := c.hasher.Hash(input.Password)
	if err != nil {
		return domain.User{}, err
	}

	return domain.User{
		Firstname:    strings.TrimSpace(input.Firstname),
		Middlename:   strings.TrimSpace(input.Middlename),
		Lastname:     strings.TrimSpace(input.Lastname),
		Username:     normalizeUsername(input.Username),
		Email:        email,
		PasswordHash: hash,
		RegisteredOn: c.now(),
		Verified:     false,
	}, nil
}

// VerifyPassword compara la contrasena contra el hash guardado. Nunca falla con error.
func (c *CredentialStore) VerifyPassword(user domain.User, password string) bool {
	return c.hasher.Check(password, user.PasswordHash)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
