package tracking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

// Publisher is the durable sink: hits are forwarded to an SQS queue and
// drained by a Consumer, which may run in another process. Like the
// in-process queue, a publish failure is logged and the hit is lost; the
// client response never waits on SQS.
type Publisher struct {
	client   *sqs.Client
	queueURL string
}

// NewPublisher creates an SQS-backed event sink.
func NewPublisher(client *sqs.Client, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

// Enqueue sends the hit to SQS without blocking the caller.
func (p *Publisher) Enqueue(hit *Hit) bool {
	body, err := json.Marshal(hit)
	if err != nil {
		logger.Error("tracking: marshal hit failed", "error", err.Error())
		return false
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
		})
		if err != nil {
			logger.Error("tracking: publish to SQS failed",
				"kind", string(hit.Kind),
				"campaign_id", hit.CampaignID.String(),
				"error", err.Error())
		}
	}()
	return true
}
