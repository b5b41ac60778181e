package mq

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQOptions ajusta la declaracion de colas, el prefetch y los reintentos.
// Un mensaje que falla MaxRetries veces pasa a la cola "<cola>.dead".
type RabbitMQOptions struct {
	QueueDurable  bool
	PrefetchCount int
	MaxRetries    int
}

// DefaultRabbitMQOptions: colas durables, un mensaje en vuelo y hasta 5 reintentos.
func DefaultRabbitMQOptions() RabbitMQOptions {
	return RabbitMQOptions{QueueDurable: true, PrefetchCount: 1, MaxRetries: 5}
}

const retryCountHeader = "x-retry-count"

var _ Backend = (*RabbitMQClient)(nil)

// RabbitMQClient envuelve una conexion y un canal AMQP.
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	opts    RabbitMQOptions
}

func NewRabbitMQClient(url string, opts RabbitMQOptions) (*RabbitMQClient, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if opts.PrefetchCount > 0 {
		if err := ch.Qos(opts.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitMQClient{conn: conn, channel: ch, opts: opts}, nil
}

// Publish envia un mensaje persistente a la cola indicada.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}
	if _, err := r.declareQueue(channel); err != nil {
		return "", err
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}

	messageID := newMessageID()
	err := r.channel.PublishWithContext(ctx, "", channel, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consume la cola hasta que ctx se cancele.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}
	if _, err := r.declareQueue(channel); err != nil {
		return err
	}

	consumerTag := fmt.Sprintf("consumer-%s", newMessageID())
	deliveries, err := r.channel.Consume(channel, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			message := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			}
			if err := handler(ctx, message); err != nil {
				r.retryOrDeadLetter(ctx, channel, delivery)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// retryOrDeadLetter reencola una copia con el contador incrementado, o rechaza sin requeue
// para que el broker la mueva a la cola muerta.
func (r *RabbitMQClient) retryOrDeadLetter(ctx context.Context, queue string, delivery amqp.Delivery) {
	attempt, retry := nextAttempt(delivery.Headers, r.opts.MaxRetries)
	if !retry {
		_ = delivery.Nack(false, false)
		return
	}

	headers := amqp.Table{}
	for key, value := range delivery.Headers {
		headers[key] = value
	}
	headers[retryCountHeader] = int32(attempt)
	err := r.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  delivery.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    delivery.MessageId,
		Headers:      headers,
		Body:         delivery.Body,
	})
	if err != nil {
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

// nextAttempt devuelve el numero del proximo intento y si todavia corresponde reintentar.
func nextAttempt(headers amqp.Table, maxRetries int) (int, bool) {
	done := retryCount(headers)
	if done >= maxRetries {
		return done, false
	}
	return done + 1, true
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryCountHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func deadLetterQueue(name string) string {
	return name + ".dead"
}

func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) declareQueue(name string) (amqp.Queue, error) {
	dead := deadLetterQueue(name)
	if _, err := r.channel.QueueDeclare(dead, r.opts.QueueDurable, false, false, false, nil); err != nil {
		return amqp.Queue{}, err
	}
	return r.channel.QueueDeclare(name, r.opts.QueueDurable, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dead,
	})
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}

func newMessageID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
