package index

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a [Writer].
type Option func(*Options)

// Options holds the configuration for a [Writer].
type Options struct {
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	concurrency    int
}

func newOptions() *Options {
	return &Options{
		maxRetries:     3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     2 * time.Second,
		concurrency:    8,
	}
}

func (o *Options) validate() error {
	if o.maxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}

	if o.initialBackoff <= 0 {
		return errors.New("initial backoff must be greater than zero")
	}

	if o.maxBackoff < o.initialBackoff {
		return errors.New("max backoff must be at least the initial backoff")
	}

	if o.concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}

	return nil
}

// WithMaxRetries sets how many times a partition batch is retried after a
// transient store error. The default is 3.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		o.maxRetries = n
	}
}

// WithBackoff sets the initial and maximum retry backoff. The backoff doubles
// after every attempt. Defaults are 50ms and 2s.
func WithBackoff(initial, maxBackoff time.Duration) Option {
	return func(o *Options) {
		o.initialBackoff = initial
		o.maxBackoff = maxBackoff
	}
}

// WithConcurrency limits how many partition batches are submitted at once.
// The default is 8.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		o.concurrency = n
	}
}

// WriteOption modifies a single [Writer.WriteAll] call.
type WriteOption func(*writeOptions)

type writeOptions struct {
	mustNotExist bool
}

// WithMustNotExist rejects the write of any record whose key already exists.
func WithMustNotExist() WriteOption {
	return func(o *writeOptions) {
		o.mustNotExist = true
	}
}

