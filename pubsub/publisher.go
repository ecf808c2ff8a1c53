package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"

	"cloud.google.com/go/pubsub/v2"
	"github.com/slackmgr/projectindex/notify"
	"github.com/slackmgr/types"
)

// topicNameRegex validates Pub/Sub topic resource names.
// Project IDs may contain colons for domain-prefixed projects (e.g., google.com:my-project).
// Topic names must start with a letter, followed by 2-254 word characters, dots, underscores, or hyphens.
var topicNameRegex = regexp.MustCompile(`^projects\/([a-z][a-z0-9-:.]{5,29})\/topics\/([a-zA-Z][\w._-]{2,254})$`)

// Publisher publishes change events to Pub/Sub topics. It implements
// [notify.Publisher].
type Publisher struct {
	gcpClient *pubsub.Client
	client    topicClient
	topic     string
	logger    types.Logger

	// The publisher cache is unbounded and assumes a small, finite set of topics.
	publishers     map[string]topicPublisher
	publishersLock sync.RWMutex

	isOrdered   bool
	opts        *Options
	initialized atomic.Bool
}

// NewPublisher creates a Publisher that sends events to topic, unless an
// event type is routed elsewhere with [WithEventTopic]. When isOrdered is
// true, the project ID is used as the ordering key.
func NewPublisher(c *pubsub.Client, topic string, isOrdered bool, logger types.Logger, opts ...Option) *Publisher {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Publisher{
		gcpClient:  c,
		topic:      topic,
		logger:     logger.WithField("plugin", "pubsub"),
		publishers: make(map[string]topicPublisher),
		isOrdered:  isOrdered,
		opts:       options,
	}
}

func (c *Publisher) Init(_ context.Context) (*Publisher, error) {
	if c.initialized.Load() {
		return c, nil
	}

	if !topicNameRegex.MatchString(c.topic) {
		return nil, fmt.Errorf("invalid pub/sub topic %q", c.topic)
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid pub/sub publisher options: %w", err)
	}

	if c.opts.topicClient != nil {
		c.client = c.opts.topicClient
	} else {
		if c.gcpClient == nil {
			return nil, errors.New("pub/sub client cannot be nil")
		}

		c.client = gcpTopics{client: c.gcpClient}
	}

	c.initialized.Store(true)

	return c, nil
}

// Close stops all cached publishers, flushing any pending messages.
func (c *Publisher) Close() {
	c.publishersLock.Lock()
	defer c.publishersLock.Unlock()

	for _, publisher := range c.publishers {
		publisher.Stop()
	}
}

// Publish marshals event as JSON and publishes it, waiting for the server to
// acknowledge the message.
func (c *Publisher) Publish(ctx context.Context, event *notify.Event) error {
	if !c.initialized.Load() {
		return errors.New("pub/sub publisher not initialized")
	}

	if event == nil {
		return errors.New("event cannot be nil")
	}

	topic := c.topicFor(event.Type)
	publisher := c.getPublisher(topic)

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	msg := &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"event_type": string(event.Type),
			"project_id": event.ProjectID,
		},
	}

	if c.isOrdered {
		msg.OrderingKey = event.ProjectID
	}

	result := publisher.Publish(ctx, msg)

	if _, err = result.Get(ctx); err != nil {
		if c.isOrdered {
			// A failed ordered publish pauses its key until resumed.
			publisher.ResumePublish(event.ProjectID)
		}

		return fmt.Errorf("failed to publish message to pub/sub topic %s: %w", topic, err)
	}

	if c.isOrdered {
		c.logger.Debugf("Change event sent to pub/sub topic %s with ordering key %s", topic, event.ProjectID)
	} else {
		c.logger.Debugf("Change event sent to pub/sub topic %s", topic)
	}

	return nil
}

func (c *Publisher) topicFor(eventType notify.EventType) string {
	if topic, ok := c.opts.eventTopics[eventType]; ok {
		return topic
	}

	return c.topic
}

//nolint:ireturn // Returns interface for dependency injection pattern
func (c *Publisher) getPublisher(topic string) topicPublisher {
	// Fast path: read lock
	c.publishersLock.RLock()
	publisher, exists := c.publishers[topic]
	c.publishersLock.RUnlock()

	if exists {
		return publisher
	}

	// Slow path: write lock with double-check
	c.publishersLock.Lock()
	defer c.publishersLock.Unlock()

	// Double-check after acquiring write lock
	if publisher, exists = c.publishers[topic]; exists {
		return publisher
	}

	publisher = c.client.Publisher(topic, publishSettings{
		ordered: c.isOrdered,
		delay:   c.opts.publisherDelayThreshold,
		count:   c.opts.publisherCountThreshold,
		bytes:   c.opts.publisherByteThreshold,
	})

	c.publishers[topic] = publisher

	return publisher
}
