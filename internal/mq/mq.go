package mq

import "context"

// Message es el payload entregado a los suscriptores, independiente del broker.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler procesa un mensaje. Devolver error pide reintento (nack).
type Handler func(ctx context.Context, msg Message) error

// Backend define las operaciones de broker que usa el servicio.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}
