package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/podgraph/backend/internal/util"
	"github.com/podgraph/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// IngestQueue carries one IngestMsg per ingestion job.
const IngestQueue = "ingest_queue"

const retryDelayMs = 10000

// IngestMsg is the body published for a pending ingestion job.
type IngestMsg struct {
	JobID     string `json:"job_id"`
	PodcastID string `json:"podcast_id"`
	UserID    string `json:"user_id"`
}

// IngestPublisher hands a pending job to whoever processes it.
type IngestPublisher interface {
	PublishIngest(ctx context.Context, msg IngestMsg) error
}

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnv("RABBITMQ_PORT")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupQueues declares every queue together with its _retry queue, which
// dead-letters back after retryDelayMs, and its _dlq.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		_, err = ch.QueueDeclare(
			dlqName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelayMs),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", retryName, err)
		}
	}

	return nil
}

func PublishFIFO(ctx context.Context, ch publishChannel, queueName string, data []byte, headers amqp091.Table) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.PublishWithContext(
		ctx,
		"",
		queueName,
		false,
		false,
		publishing,
	)
}

// ChannelPublisher publishes ingestion jobs to IngestQueue.
type ChannelPublisher struct {
	ch publishChannel
}

func NewChannelPublisher(ch *amqp091.Channel) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

func (p *ChannelPublisher) PublishIngest(ctx context.Context, msg IngestMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := PublishFIFO(ctx, p.ch, IngestQueue, body, nil); err != nil {
		return fmt.Errorf("failed to publish job %s: %w", msg.JobID, err)
	}
	logger.Debug("[Queue] Published ingestion job", "job_id", msg.JobID, "podcast_id", msg.PodcastID)
	return nil
}

var _ IngestPublisher = (*ChannelPublisher)(nil)
