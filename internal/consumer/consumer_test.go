package consumer

import (
	"context"
	"errors"
	"testing"

	"docrag/internal/broker"
	"docrag/internal/documents"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProcessor struct {
	err error
}

func (f *fakeProcessor) Process(ctx context.Context, objectName string) (*documents.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &documents.Document{}, nil
}

type fakeAcknowledger struct {
	acked       bool
	nacked      bool
	nackRequeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error { f.acked = true; return nil }
func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = true
	f.nackRequeue = requeue
	return nil
}

func newTestConsumer(p Processor) *Consumer {
	return &Consumer{pipeline: p, logger: zap.NewNop()}
}

func TestExtractObjectKey_DecodesURLEncodedKey(t *testing.T) {
	body := []byte(`{"Records":[{"s3":{"object":{"key":"uploads%2Fdoc+1.pdf"}}}]}`)
	key, err := extractObjectKey(body)
	require.NoError(t, err)
	assert.Equal(t, "uploads/doc 1.pdf", key)
}

func TestExtractObjectKey_MissingKeyErrors(t *testing.T) {
	_, err := extractObjectKey([]byte(`{"Records":[]}`))
	assert.Error(t, err)
}

func TestExtractObjectKey_MalformedJSONErrors(t *testing.T) {
	_, err := extractObjectKey([]byte(`not json`))
	assert.Error(t, err)
}

func TestHandle_MalformedEventIsNackedWithoutRequeue(t *testing.T) {
	c := newTestConsumer(&fakeProcessor{})
	ack := &fakeAcknowledger{}
	d := broker.NewDelivery([]byte("not json"), 1, ack)

	c.handle(context.Background(), d)
	assert.True(t, ack.nacked)
	assert.False(t, ack.nackRequeue)
	assert.False(t, ack.acked)
}

func TestHandle_NonPDFObjectIsAcked(t *testing.T) {
	c := newTestConsumer(&fakeProcessor{})
	ack := &fakeAcknowledger{}
	body := []byte(`{"Records":[{"s3":{"object":{"key":"uploads%2Fnotes.txt"}}}]}`)
	d := broker.NewDelivery(body, 1, ack)

	c.handle(context.Background(), d)
	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
}

func TestHandle_PipelineFailureIsNackedWithoutRequeue(t *testing.T) {
	c := newTestConsumer(&fakeProcessor{err: errors.New("boom")})
	ack := &fakeAcknowledger{}
	body := []byte(`{"Records":[{"s3":{"object":{"key":"uploads%2Freport.pdf"}}}]}`)
	d := broker.NewDelivery(body, 1, ack)

	c.handle(context.Background(), d)
	assert.True(t, ack.nacked)
	assert.False(t, ack.nackRequeue)
}

func TestHandle_SuccessfulPDFIsAcked(t *testing.T) {
	c := newTestConsumer(&fakeProcessor{})
	ack := &fakeAcknowledger{}
	body := []byte(`{"Records":[{"s3":{"object":{"key":"uploads%2Freport.pdf"}}}]}`)
	d := broker.NewDelivery(body, 1, ack)

	c.handle(context.Background(), d)
	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
}
