package mail

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker/v2"
	gomail "gopkg.in/gomail.v2"

	"github.com/joy095/hallbooking/config"
	"github.com/joy095/hallbooking/logger"
)

var ErrTransportUnavailable = errors.New("mail transport unavailable")

// Transport sends one rendered message.
type Transport interface {
	Send(ctx context.Context, m Message) error
	Close() error
}

// Adapter delivers the messages planned for one event.
type Adapter struct {
	transport Transport
}

func NewAdapter(t Transport) *Adapter {
	return &Adapter{transport: t}
}

// Deliver sends every message and stops at the first failure. A redelivery
// repeats all messages; receivers dedupe on the idempotency key.
func (a *Adapter) Deliver(ctx context.Context, msgs []Message) error {
	for _, m := range msgs {
		if err := a.transport.Send(ctx, m); err != nil {
			return fmt.Errorf("deliver %s message: %w", m.Role, err)
		}
	}
	return nil
}

// NewTransport builds the transport selected by MAIL_TRANSPORT.
func NewTransport(cfg config.App) (Transport, error) {
	switch cfg.MailTransport {
	case "", "smtp":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("SMTP_HOST is required for the smtp mail transport")
		}
		return NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword), nil
	case "amqp":
		return NewAMQPTransport(cfg.AMQPURL, cfg.MailExchange)
	case "dryrun":
		return &DryRunTransport{}, nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
	}
}

// SMTPTransport sends through an SMTP relay behind a circuit breaker.
type SMTPTransport struct {
	dialer  *gomail.Dialer
	breaker *gobreaker.CircuitBreaker[any]
}

func NewSMTPTransport(host string, port int, username, password string) *SMTPTransport {
	dialer := gomail.NewDialer(host, port, username, password)
	dialer.TLSConfig = &tls.Config{ServerName: host}

	settings := gobreaker.Settings{
		Name:        "smtp:" + host,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WarnLogger.Warnf("Circuit breaker %s changed from %s to %s", name, from.String(), to.String())
		},
	}
	return &SMTPTransport{dialer: dialer, breaker: gobreaker.NewCircuitBreaker[any](settings)}
}

func (t *SMTPTransport) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("To", m.To...)
	if m.ReplyTo != "" {
		msg.SetHeader("Reply-To", m.ReplyTo)
	}
	msg.SetHeader("Subject", m.Subject)
	msg.SetHeader("Message-ID", m.MessageID())
	msg.SetHeader("X-Idempotency-Key", m.IdempotencyKey)
	msg.SetBody("text/plain", m.Body)

	_, err := t.breaker.Execute(func() (any, error) {
		return nil, t.dialer.DialAndSend(msg)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
		}
		logger.ErrorLogger.Errorf("Failed to send %s email %s: %v", m.Role, m.IdempotencyKey, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	logger.InfoLogger.Infof("Sent %s email %s", m.Role, m.IdempotencyKey)
	return nil
}

func (t *SMTPTransport) Close() error { return nil }

// AMQPTransport publishes rendered messages to an exchange for a mail relay
// to pick up. The routing key is mail.<role>.
type AMQPTransport struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	mu       sync.Mutex
}

func NewAMQPTransport(url, exchange string) (*AMQPTransport, error) {
	if url == "" {
		return nil, fmt.Errorf("AMQP_URL is required for the amqp mail transport")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPTransport{conn: conn, ch: ch, exchange: exchange}, nil
}

func (t *AMQPTransport) Send(ctx context.Context, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing
	t.mu.Lock()
	defer t.mu.Unlock()
	err = t.ch.PublishWithContext(ctx, t.exchange, "mail."+m.Role, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    m.IdempotencyKey,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish mail message: %w", err)
	}
	return nil
}

func (t *AMQPTransport) Close() error {
	if t.ch != nil {
		_ = t.ch.Close()
	}
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

// DryRunTransport logs messages instead of sending them.
type DryRunTransport struct {
	mu   sync.Mutex
	sent []Message
}

func (t *DryRunTransport) Send(_ context.Context, m Message) error {
	t.mu.Lock()
	t.sent = append(t.sent, m)
	t.mu.Unlock()
	logger.InfoLogger.Infof("Dry run: %s email %q to %v", m.Role, m.Subject, m.To)
	return nil
}

// Sent returns the messages seen so far.
func (t *DryRunTransport) Sent() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.sent...)
}

func (t *DryRunTransport) Close() error { return nil }
