package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/and161185/goph-share/internal/metrics"
	"github.com/and161185/goph-share/internal/model"
)

// AMQPClient holds a connection and channel to RabbitMQ.
type AMQPClient struct {
	conn *amqp.Connection
	chn  *amqp.Channel
}

// DialAMQP opens a connection and a channel and declares queue as durable.
func DialAMQP(url, queue string) (*AMQPClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	chn, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := chn.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPClient{conn: conn, chn: chn}, nil
}

// Publish sends a persistent JSON message to a queue.
func (c *AMQPClient) Publish(ctx context.Context, queue string, body []byte) error {
	return c.chn.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Close closes the channel and the connection.
func (c *AMQPClient) Close() error {
	if err := c.chn.Close(); err != nil {
		return err
	}
	return c.conn.Close()
}

type publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// QueueMailer hands mails to the mail worker through a queue.
type QueueMailer struct {
	pub   publisher
	queue string
	from  string
}

// NewQueueMailer constructs a mailer publishing to queue with a default sender.
func NewQueueMailer(pub publisher, queue, from string) *QueueMailer {
	return &QueueMailer{pub: pub, queue: queue, from: from}
}

// Send enqueues m.
func (m *QueueMailer) Send(ctx context.Context, mail model.Mail) error {
	if mail.From == "" {
		mail.From = m.from
	}
	body, err := json.Marshal(mail)
	if err != nil {
		return err
	}
	if err := m.pub.Publish(ctx, m.queue, body); err != nil {
		metrics.MailDispatchTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("enqueue mail: %w", err)
	}
	metrics.MailDispatchTotal.WithLabelValues("queued").Inc()
	return nil
}

// LogMailer writes mails to the log. Used when no queue is configured.
type LogMailer struct{ Log *zap.Logger }

// Send implements Mailer.
func (m LogMailer) Send(_ context.Context, mail model.Mail) error {
	m.Log.Info("mail",
		zap.String("to", mail.To),
		zap.String("subject", mail.Subject),
		zap.String("template", mail.Template),
		zap.Any("context", mail.Context),
	)
	return nil
}
