package email

import (
	"context"
	"errors"
	"time"
)

// VerificationEmail es el contenido del correo de verificacion de cuenta.
type VerificationEmail struct {
	To        string    `json:"to"`
	Name      string    `json:"name,omitempty"`
	Token     string    `json:"token"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Sender define la interfaz para envio de correos de verificacion.
type Sender interface {
	SendVerification(ctx context.Context, msg VerificationEmail) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendVerification(_ context.Context, _ VerificationEmail) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
