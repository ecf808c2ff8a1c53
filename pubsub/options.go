package pubsub

import (
	"errors"
	"fmt"
	"time"

	"github.com/slackmgr/projectindex/notify"
)

type Option func(*Options)

type Options struct {
	publisherDelayThreshold time.Duration
	publisherCountThreshold int
	publisherByteThreshold  int
	eventTopics             map[notify.EventType]string
	topicClient             topicClient
}

func newOptions() *Options {
	return &Options{
		publisherDelayThreshold: 10 * time.Millisecond,
		publisherCountThreshold: 100,
		publisherByteThreshold:  1e6, // 1 MB
		eventTopics:             make(map[notify.EventType]string),
	}
}

func (o *Options) validate() error {
	if o.publisherDelayThreshold < 0 {
		return errors.New("publisher delay threshold must be non-negative")
	}

	if o.publisherCountThreshold <= 0 {
		return errors.New("publisher count threshold must be greater than zero")
	}

	if o.publisherByteThreshold <= 0 {
		return errors.New("publisher byte threshold must be greater than zero")
	}

	for eventType, topic := range o.eventTopics {
		if !topicNameRegex.MatchString(topic) {
			return fmt.Errorf("invalid pub/sub topic %q for event type %s", topic, eventType)
		}
	}

	return nil
}

func WithPublisherDelayThreshold(d time.Duration) Option {
	return func(o *Options) {
		o.publisherDelayThreshold = d
	}
}

func WithPublisherCountThreshold(n int) Option {
	return func(o *Options) {
		o.publisherCountThreshold = n
	}
}

func WithPublisherByteThreshold(n int) Option {
	return func(o *Options) {
		o.publisherByteThreshold = n
	}
}

// WithEventTopic routes events of the given type to topic instead of the
// publisher's default topic.
func WithEventTopic(eventType notify.EventType, topic string) Option {
	return func(o *Options) {
		o.eventTopics[eventType] = topic
	}
}

// WithTopicClient replaces the Pub/Sub client wrapper. Used by tests.
func WithTopicClient(client topicClient) Option {
	return func(o *Options) {
		o.topicClient = client
	}
}
