// Package events publishes upload lifecycle events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// RoutingKeyPrefix is followed by the upload kind, e.g. bulk_upload.finished.accounts.
const RoutingKeyPrefix = "bulk_upload.finished."

// UploadFinished is the message body published when a job reaches a terminal status.
type UploadFinished struct {
	UploadID       string      `json:"bulk_upload_id"`
	CompanyID      string      `json:"company_id"`
	Kind           core.Kind   `json:"kind"`
	Status         core.Status `json:"status"`
	TotalRows      int         `json:"total_rows"`
	SuccessfulRows int         `json:"successful_rows"`
	FailedRows     int         `json:"failed_rows"`
	FinishedAt     time.Time   `json:"finished_at"`
}

// NewUploadFinished builds the event for job.
func NewUploadFinished(job core.UploadJob) UploadFinished {
	finished := job.CreatedAt
	if job.CompletedAt != nil {
		finished = *job.CompletedAt
	}
	return UploadFinished{
		UploadID:       job.ID,
		CompanyID:      job.CompanyID,
		Kind:           job.Kind,
		Status:         job.Status,
		TotalRows:      job.TotalRows,
		SuccessfulRows: job.SuccessfulRows,
		FailedRows:     job.FailedRows,
		FinishedAt:     finished.UTC(),
	}
}

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements core.Publisher on a durable topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	ch       channel
	exchange string
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// PublishUploadFinished sends the job's finished event as a persistent JSON message.
func (p *Publisher) PublishUploadFinished(ctx context.Context, job core.UploadJob) error {
	event := NewUploadFinished(job)
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		p.exchange,                        // exchange
		RoutingKeyPrefix+string(job.Kind), // routing key
		false,                             // mandatory
		false,                             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID,
			Timestamp:    event.FinishedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish upload %s: %w", job.ID, err)
	}
	return nil
}

// Close shuts down the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
