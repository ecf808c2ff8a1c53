package sqs

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/slackmgr/projectindex/notify"
	"github.com/slackmgr/types"
)

// Publisher sends change events to an SQS queue. It implements
// [notify.Publisher].
//
// For FIFO queues the message group ID is the project ID, so events for one
// project are delivered in order, and the deduplication ID is a SHA-256 hash
// of the event fields, so a retried publish of the same event is discarded by
// SQS.
//
// Create a Publisher with [NewPublisher] and call [Publisher.Init] once
// before publishing. Init is not thread-safe; Publish is safe for concurrent
// use after Init returns.
type Publisher struct {
	client      sqsClient
	awsCfg      *aws.Config
	queue       string
	queueURL    string
	fifo        bool
	opts        *Options
	logger      types.Logger
	initialized bool
}

// NewPublisher creates a Publisher for the given queue, which may be either a
// queue name or a full queue URL. The logger is enriched with "plugin" and
// "queue" fields.
//
// NewPublisher does not connect to AWS. Call [Publisher.Init] to build the
// client and resolve the queue URL.
func NewPublisher(awsCfg *aws.Config, queue string, logger types.Logger, opts ...Option) *Publisher {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	logger = logger.
		WithField("plugin", "sqs").
		WithField("queue", queue)

	return &Publisher{
		awsCfg: awsCfg,
		queue:  queue,
		opts:   options,
		logger: logger,
	}
}

// Init validates options, constructs the SQS client and resolves the queue
// URL. It returns the receiver so that initialization can be chained:
//
//	pub, err := sqs.NewPublisher(&awsCfg, "project-events.fifo", logger).Init(ctx)
//
// Init is idempotent.
func (p *Publisher) Init(ctx context.Context) (*Publisher, error) {
	if p.initialized {
		return p, nil
	}

	if p.queue == "" {
		return nil, errors.New("SQS queue name or URL cannot be empty")
	}

	if err := p.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid SQS options: %w", err)
	}

	// Use injected client if provided (for testing), otherwise create real client
	if p.opts.sqsClient != nil {
		p.client = p.opts.sqsClient
	} else {
		if p.awsCfg == nil {
			return nil, errors.New("AWS config cannot be nil")
		}

		p.client = sqs.NewFromConfig(*p.awsCfg, func(o *sqs.Options) {
			o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, p.opts.sqsAPIMaxRetryBackoffDelay)
			o.Retryer = retry.AddWithMaxAttempts(o.Retryer, p.opts.sqsAPIMaxRetryAttempts)
		})
	}

	if isQueueURL(p.queue) {
		p.queueURL = p.queue
	} else {
		resp, err := p.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(p.queue)})
		if err != nil {
			return nil, fmt.Errorf("failed to get SQS queue URL for %s: %w", p.queue, err)
		}

		p.queueURL = aws.ToString(resp.QueueUrl)
	}

	p.fifo = strings.HasSuffix(p.queueURL, ".fifo")
	p.initialized = true

	return p, nil
}

// Publish marshals event as JSON and sends it to the queue. The event type is
// attached as the "event_type" message attribute.
func (p *Publisher) Publish(ctx context.Context, event *notify.Event) error {
	if !p.initialized {
		return errors.New("SQS publisher not initialized")
	}

	if event == nil {
		return errors.New("event cannot be nil")
	}

	if event.ProjectID == "" {
		return errors.New("event project ID cannot be empty")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    &p.queueURL,
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Type)),
			},
		},
	}

	if p.fifo {
		groupID := event.ProjectID
		dedupID := dedupID(event)

		input.MessageGroupId = &groupID
		input.MessageDeduplicationId = &dedupID

		if _, err := p.client.SendMessage(ctx, input); err != nil {
			return fmt.Errorf("failed to send SQS message: %w", err)
		}

		p.logger.Debugf("Change event sent to FIFO SQS queue %s with group ID %s and dedup ID %s", p.queueURL, groupID, dedupID)

		return nil
	}

	if p.opts.delaySeconds > 0 {
		input.DelaySeconds = p.opts.delaySeconds
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to send SQS message: %w", err)
	}

	p.logger.Debugf("Change event sent to standard SQS queue %s", p.queueURL)

	return nil
}

func isQueueURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

func dedupID(e *notify.Event) string {
	return hash(
		string(e.Type),
		e.ProjectID,
		e.Path,
		e.State,
		strconv.Itoa(e.Version),
		e.Actor,
		e.OccurredAt.UTC().Format(time.RFC3339Nano),
	)
}

func hash(input ...string) string {
	h := sha256.New()

	for _, s := range input {
		h.Write([]byte(s))
		h.Write([]byte{0}) // null byte delimiter to prevent hash collisions
	}

	bs := h.Sum(nil)

	return base64.URLEncoding.EncodeToString(bs)
}
