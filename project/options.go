package project

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Option is a functional option for configuring a [Service].
type Option func(*Options)

// Options holds the configuration for a [Service].
type Options struct {
	clock           func() time.Time
	newID           func() string
	defaultPageSize int
}

func newOptions() *Options {
	return &Options{
		clock:           time.Now,
		newID:           uuid.NewString,
		defaultPageSize: 50,
	}
}

func (o *Options) validate() error {
	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	if o.newID == nil {
		return errors.New("id generator cannot be nil")
	}

	if o.defaultPageSize < 1 {
		return errors.New("default page size must be at least 1")
	}

	return nil
}

// WithClock sets the clock used for creation and state change timestamps.
// Defaults to [time.Now].
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}

// WithIDGenerator sets the function used to assign ids to new projects.
// Defaults to [uuid.NewString].
func WithIDGenerator(newID func() string) Option {
	return func(o *Options) {
		o.newID = newID
	}
}

// WithDefaultPageSize sets the page size used by [Service.ListByState] when
// the caller passes zero. The default is 50.
func WithDefaultPageSize(n int) Option {
	return func(o *Options) {
		o.defaultPageSize = n
	}
}
