// Package consumer implements the Event Consumer: parse -> URL-decode
// -> extension check -> pipeline invocation -> ack/nack-no-requeue,
// with prefetch=1 (spec §4.5). Grounded near-literally on
// original_source's pdf_processor_consumer.py (extract_pdf_path,
// .pdf-extension skip-and-ack, nack-no-requeue on decode/pipeline
// errors) and document_worker.py's qos/consume/shutdown pattern.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"docrag/internal/broker"
	"docrag/internal/documents"
	"docrag/internal/pipeline"

	"go.uber.org/zap"
)

// Processor is the slice of pipeline.Pipeline the consumer depends
// on, kept as an interface so Run/handle can be tested with a fake
// instead of a live database and object store.
type Processor interface {
	Process(ctx context.Context, objectName string) (*documents.Document, error)
}

// event is the inbound object-store notification shape (spec §4.5,
// §6).
type event struct {
	Records []struct {
		S3 struct {
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// extractObjectKey parses the event JSON and returns the URL-decoded
// object key, or an error if the payload is malformed (poison
// message).
func extractObjectKey(body []byte) (string, error) {
	var e event
	if err := json.Unmarshal(body, &e); err != nil {
		return "", fmt.Errorf("parse event json: %w", err)
	}
	if len(e.Records) == 0 || e.Records[0].S3.Object.Key == "" {
		return "", fmt.Errorf("event missing Records[0].s3.object.key")
	}
	key, err := url.QueryUnescape(e.Records[0].S3.Object.Key)
	if err != nil {
		return "", fmt.Errorf("url-decode object key: %w", err)
	}
	return key, nil
}

// Consumer drains a broker connection and drives the document
// pipeline per delivered message.
type Consumer struct {
	conn     *broker.Connection
	pipeline Processor
	logger   *zap.Logger
}

func New(conn *broker.Connection, p Processor, logger *zap.Logger) *Consumer {
	return &Consumer{conn: conn, pipeline: p, logger: logger}
}

// Run consumes messages until ctx is cancelled, processing strictly
// one at a time (prefetch=1 is set at connection/channel level).
// Cancellation stops accepting new deliveries; an in-flight message is
// allowed to finish before Run returns (spec §4.5 cancellation).
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.conn.Consume(ctx)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	for d := range deliveries {
		c.handle(ctx, d)
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, d broker.Delivery) {
	key, err := extractObjectKey(d.Body)
	if err != nil {
		c.logger.Warn("quarantining malformed event", zap.Error(err))
		if nackErr := d.Nack(false); nackErr != nil {
			c.logger.Error("failed to nack malformed event", zap.Error(nackErr))
		}
		return
	}

	if !pipeline.IsPDF(key) {
		c.logger.Info("skipping non-pdf object", zap.String("key", key))
		if err := d.Ack(); err != nil {
			c.logger.Error("failed to ack skipped event", zap.Error(err))
		}
		return
	}

	if _, err := c.pipeline.Process(ctx, key); err != nil {
		c.logger.Error("pipeline failed, quarantining message",
			zap.String("key", key), zap.Error(err))
		if nackErr := d.Nack(false); nackErr != nil {
			c.logger.Error("failed to nack after pipeline error", zap.Error(nackErr))
		}
		return
	}

	if err := d.Ack(); err != nil {
		c.logger.Error("failed to ack processed event", zap.String("key", key), zap.Error(err))
	}
}
