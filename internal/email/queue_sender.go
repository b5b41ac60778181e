package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const verificationMessageType = "verification"

// Publisher es la parte de mq.Backend que necesita QueueSender.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// QueueSender encola el correo para que lo envie el worker de mailer.
type QueueSender struct {
	publisher Publisher
	queue     string
}

func NewQueueSender(publisher Publisher, queue string) (*QueueSender, error) {
	if publisher == nil {
		return nil, errors.New("queue publisher is required")
	}
	if strings.TrimSpace(queue) == "" {
		return nil, errors.New("queue name is required")
	}
	return &QueueSender{publisher: publisher, queue: queue}, nil
}

func (s *QueueSender) SendVerification(ctx context.Context, msg VerificationEmail) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("to email is required")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := s.publisher.Publish(ctx, s.queue, data, map[string]string{"type": verificationMessageType}); err != nil {
		return fmt.Errorf("publish verification email: %w", err)
	}
	return nil
}
