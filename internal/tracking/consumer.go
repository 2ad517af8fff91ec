package tracking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

// Consumer drains the SQS tracking queue and feeds each hit through the
// classification pipeline into the recorder. Messages are deleted whether or
// not recording succeeded: a lost tracking write is acceptable, a poison
// message endlessly redelivered is not.
type Consumer struct {
	sqsClient *sqs.Client
	queueURL  string
	pipeline  *Pipeline
	recorder  *EventRecorder
	done      chan struct{}
}

// NewConsumer creates an SQS tracking consumer.
func NewConsumer(sqsClient *sqs.Client, queueURL string, pipeline *Pipeline, recorder *EventRecorder) *Consumer {
	return &Consumer{
		sqsClient: sqsClient,
		queueURL:  queueURL,
		pipeline:  pipeline,
		recorder:  recorder,
		done:      make(chan struct{}),
	}
}

// Start begins the long-poll loop in a background goroutine.
func (c *Consumer) Start(ctx context.Context) {
	logger.Info("tracking: SQS consumer started", "queue", c.queueURL)
	go c.poll(ctx)
}

// Stop signals the poll loop to exit after the current receive.
func (c *Consumer) Stop() {
	close(c.done)
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		out, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("tracking: SQS receive failed", "error", err.Error())
			time.Sleep(5 * time.Second)
			continue
		}

		for _, msg := range out.Messages {
			var hit Hit
			if err := json.Unmarshal([]byte(*msg.Body), &hit); err != nil {
				logger.Error("tracking: bad SQS message", "error", err.Error())
				c.deleteMessage(ctx, msg.ReceiptHandle)
				continue
			}

			ev := c.pipeline.Process(ctx, &hit)
			c.recorder.Record(ctx, ev)
			c.deleteMessage(ctx, msg.ReceiptHandle)
		}
	}
}

func (c *Consumer) deleteMessage(ctx context.Context, handle *string) {
	_, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	})
	if err != nil {
		logger.Warn("tracking: SQS delete failed", "error", err.Error())
	}
}
