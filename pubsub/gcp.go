package pubsub

import (
	"context"
	"time"

	"cloud.google.com/go/pubsub/v2"
)

// publishSettings are applied to a topic publisher when it is created.
type publishSettings struct {
	ordered bool
	delay   time.Duration
	count   int
	bytes   int
}

// topicClient creates topic publishers. Tests substitute a fake.
type topicClient interface {
	Publisher(topic string, settings publishSettings) topicPublisher
}

type topicPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) publishResult
	ResumePublish(orderingKey string)
	Stop()
}

type publishResult interface {
	Get(ctx context.Context) (serverID string, err error)
}

// gcpTopics adapts *pubsub.Client to topicClient.
type gcpTopics struct {
	client *pubsub.Client
}

//nolint:ireturn // Interface required by topicClient
func (g gcpTopics) Publisher(topic string, settings publishSettings) topicPublisher {
	p := g.client.Publisher(topic)
	p.EnableMessageOrdering = settings.ordered
	p.PublishSettings.DelayThreshold = settings.delay
	p.PublishSettings.CountThreshold = settings.count
	p.PublishSettings.ByteThreshold = settings.bytes

	return gcpPublisher{Publisher: p}
}

// gcpPublisher narrows the result type of (*pubsub.Publisher).Publish.
type gcpPublisher struct {
	*pubsub.Publisher
}

//nolint:ireturn // Interface required by topicPublisher
func (p gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
