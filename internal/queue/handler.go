package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/podgraph/backend/pkg/common"
	"github.com/podgraph/backend/pkg/logger"
	"github.com/podgraph/backend/pkg/store"

	"github.com/rabbitmq/amqp091-go"
)

// MaxRetries is how often a message goes through the retry queue before it
// is dead-lettered.
const MaxRetries = 10

const retriesHeader = "x-retries"

// Retries returns the number of retries recorded on a delivery.
func Retries(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	}
	return 0
}

// ShouldRetry reports whether a failed message goes back through the retry
// queue instead of the dead-letter queue.
func ShouldRetry(msg amqp091.Delivery, err error) bool {
	return !IsPermanent(err) && Retries(msg.Headers) < MaxRetries
}

// HandleProcessingError republishes a failed message to the retry queue of
// queueName, or to its dead-letter queue when retry is false, and acks the
// original. If republishing fails the message is requeued.
func HandleProcessingError(ctx context.Context, ch publishChannel, msg amqp091.Delivery, queueName string, retry bool) {
	retries := Retries(msg.Headers)

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	target := queueName + "_dlq"
	if retry {
		target = queueName + "_retry"
		headers[retriesHeader] = int32(retries + 1)
	}

	if err := PublishFIFO(ctx, ch, target, msg.Body, headers); err != nil {
		logger.Error("[Queue] Failed to republish message", "queue", target, "err", err)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			logger.Error("[Queue] Failed to nack message", "err", nackErr)
		}
		return
	}
	if retry {
		logger.Info("[Queue] Message scheduled for retry", "queue", target, "retry", retries+1)
	} else {
		logger.Warn("[Queue] Sending message to DLQ", "dlq", target, "retries", retries)
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
}

// ResetJobForRetry puts the job of an ingestion message back to pending so
// the redelivered message is processed again.
func ResetJobForRetry(ctx context.Context, jobs store.JobStorage, body []byte, cause error) error {
	var data IngestMsg
	if err := json.Unmarshal(body, &data); err != nil {
		return err
	}
	if data.JobID == "" {
		return fmt.Errorf("message has no job id")
	}

	var msg *string
	if cause != nil {
		s := cause.Error()
		msg = &s
	}
	return jobs.UpdateJobStatus(ctx, data.JobID, store.JobUpdate{
		Status:       common.JobStatusPending,
		Stage:        StageRetrying,
		Progress:     0,
		ErrorMessage: msg,
	})
}
