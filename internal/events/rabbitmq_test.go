package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	sent   []published
	err    error
	closed bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func testJob() core.UploadJob {
	completed := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	return core.UploadJob{
		ID:             "job-1",
		Kind:           core.KindTransactions,
		CompanyID:      "acme",
		Status:         core.StatusPartial,
		TotalRows:      3,
		SuccessfulRows: 2,
		FailedRows:     1,
		CreatedAt:      completed.Add(-time.Minute),
		CompletedAt:    &completed,
	}
}

func TestPublishUploadFinished(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{ch: ch, exchange: "bulk_uploads"}

	require.NoError(t, p.PublishUploadFinished(context.Background(), testJob()))
	require.Len(t, ch.sent, 1)

	sent := ch.sent[0]
	assert.Equal(t, "bulk_uploads", sent.exchange)
	assert.Equal(t, "bulk_upload.finished.transactions", sent.key)
	assert.Equal(t, amqp.Persistent, sent.msg.DeliveryMode)
	assert.Equal(t, "application/json", sent.msg.ContentType)
	assert.Equal(t, "job-1", sent.msg.MessageId)

	var body map[string]any
	require.NoError(t, json.Unmarshal(sent.msg.Body, &body))
	assert.Equal(t, "job-1", body["bulk_upload_id"])
	assert.Equal(t, "acme", body["company_id"])
	assert.Equal(t, "transactions", body["kind"])
	assert.Equal(t, "partial", body["status"])
	assert.EqualValues(t, 3, body["total_rows"])
	assert.EqualValues(t, 2, body["successful_rows"])
	assert.EqualValues(t, 1, body["failed_rows"])
	assert.Equal(t, "2024-01-15T10:30:00Z", body["finished_at"])
}

func TestPublishUploadFinished_Error(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := &Publisher{ch: ch, exchange: "bulk_uploads"}

	err := p.PublishUploadFinished(context.Background(), testJob())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job-1")
}

func TestNewUploadFinished_FallsBackToCreatedAt(t *testing.T) {
	job := testJob()
	job.CompletedAt = nil

	event := NewUploadFinished(job)
	assert.Equal(t, job.CreatedAt, event.FinishedAt)
}

func TestClose(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{ch: ch}

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
