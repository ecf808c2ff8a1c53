package dynamodb

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client]. Use [Option] functions
// (such as [WithDefaultPageSize] or [WithConsistentReads]) to customise the
// defaults.
type Options struct {
	defaultPageSize int
	consistentReads bool
	dynamoDBAPI     API
	clock           func() time.Time
}

func newOptions() *Options {
	return &Options{
		defaultPageSize: 1000,
		consistentReads: true,
		clock:           time.Now,
	}
}

func (o *Options) validate() error {
	if o.defaultPageSize <= 0 {
		return errors.New("default page size must be greater than zero")
	}

	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	return nil
}

// WithDefaultPageSize sets the page size used by queries that do not set a
// limit. The default is 1000. The value must be greater than zero.
func WithDefaultPageSize(n int) Option {
	return func(o *Options) {
		o.defaultPageSize = n
	}
}

// WithConsistentReads controls whether GetItem and Query use strongly
// consistent reads. The default is true.
func WithConsistentReads(enabled bool) Option {
	return func(o *Options) {
		o.consistentReads = enabled
	}
}

// WithAPI sets a custom [API] implementation. This is useful when a custom
// DynamoDB configuration is required, or for injecting mocks in tests.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.dynamoDBAPI = api
	}
}

// WithClock sets a custom clock function used for the updated_at attribute.
// Defaults to [time.Now]. This is useful for controlling time in tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}
