package bolt

import (
	"errors"
	"time"
)

// Option is a functional option for configuring a [Store].
type Option func(*Options)

// Options holds the configuration for a [Store].
type Options struct {
	openTimeout     time.Duration
	noSync          bool
	defaultPageSize int
	clock           func() time.Time
}

func newOptions() *Options {
	return &Options{
		openTimeout:     10 * time.Second,
		defaultPageSize: 1000,
		clock:           time.Now,
	}
}

// WithOpenTimeout sets how long [Open] waits for the file lock held by
// another process. The default is 10 seconds.
func WithOpenTimeout(d time.Duration) Option {
	return func(o *Options) { o.openTimeout = d }
}

// WithNoSync skips fsync after every commit. Only use it for tests and
// scratch databases.
func WithNoSync() Option {
	return func(o *Options) { o.noSync = true }
}

// WithDefaultPageSize sets the page size used when a query does not specify
// one. The default is 1000.
func WithDefaultPageSize(n int) Option {
	return func(o *Options) { o.defaultPageSize = n }
}

// WithClock overrides the clock used to stamp rows.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) { o.clock = clock }
}

func (o *Options) validate() error {
	if o.openTimeout < 0 {
		return errors.New("open timeout cannot be negative")
	}

	if o.defaultPageSize < 1 {
		return errors.New("default page size must be greater than zero")
	}

	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	return nil
}
