package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/textproto"

	"go.uber.org/zap"

	"user-accounts/internal/mq"
)

// Subscriber es la parte de mq.Backend que necesita el Worker.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Worker consume la cola de verificacion y entrega cada correo con un Sender.
type Worker struct {
	logger     *zap.Logger
	subscriber Subscriber
	queue      string
	sender     Sender
}

func NewWorker(logger *zap.Logger, subscriber Subscriber, queue string, sender Sender) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		logger:     logger,
		subscriber: subscriber,
		queue:      queue,
		sender:     sender,
	}
}

// Run bloquea hasta que ctx se cancele o la suscripcion falle.
func (w *Worker) Run(ctx context.Context) error {
	if w.subscriber == nil || w.sender == nil {
		return errors.New("mail worker not configured")
	}
	err := w.subscriber.Subscribe(ctx, w.queue, w.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle procesa un mensaje. Se descartan los mensajes ilegibles y los rechazos SMTP 5xx;
// el resto de los fallos de envio vuelve al broker para reintento.
func (w *Worker) Handle(ctx context.Context, msg mq.Message) error {
	if t := msg.Attributes["type"]; t != "" && t != verificationMessageType {
		w.logger.Warn("unknown mail message type", zap.String("type", t), zap.String("message_id", msg.ID))
		return nil
	}

	var payload VerificationEmail
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		w.logger.Warn("drop malformed mail message", zap.Error(err), zap.String("message_id", msg.ID))
		return nil
	}
	if payload.To == "" {
		w.logger.Warn("drop mail message without recipient", zap.String("message_id", msg.ID))
		return nil
	}

	if err := w.sender.SendVerification(ctx, payload); err != nil {
		if isPermanentSMTPFailure(err) {
			w.logger.Warn("drop undeliverable verification email", zap.Error(err), zap.String("message_id", msg.ID))
			return nil
		}
		w.logger.Warn("send verification email failed", zap.Error(err), zap.String("message_id", msg.ID))
		return err
	}
	w.logger.Info("verification email sent", zap.String("message_id", msg.ID))
	return nil
}

func isPermanentSMTPFailure(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code >= 500
}
