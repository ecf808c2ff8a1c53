package projectindex

import (
	"errors"
	"time"

	"github.com/slackmgr/projectindex/index"
	"github.com/slackmgr/projectindex/notify"
	"github.com/slackmgr/projectindex/project"
	"github.com/slackmgr/projectindex/resource"
)

// Option is a functional option for configuring a [Service].
type Option func(*Options)

// Options holds the configuration for a [Service].
type Options struct {
	publisher       notify.Publisher
	clock           func() time.Time
	indexOptions    []index.Option
	projectOptions  []project.Option
	resourceOptions []resource.Option
}

func newOptions() *Options {
	return &Options{
		publisher: notify.Nop{},
		clock:     time.Now,
	}
}

func (o *Options) validate() error {
	if o.publisher == nil {
		return errors.New("publisher cannot be nil")
	}

	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	return nil
}

// WithPublisher sets where change events are sent. The default discards
// them.
func WithPublisher(p notify.Publisher) Option {
	return func(o *Options) {
		o.publisher = p
	}
}

// WithClock sets the clock used for event timestamps and is passed on to the
// project and resource services.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
		o.projectOptions = append(o.projectOptions, project.WithClock(clock))
		o.resourceOptions = append(o.resourceOptions, resource.WithClock(clock))
	}
}

// WithIndexOptions configures the shared index writer.
func WithIndexOptions(opts ...index.Option) Option {
	return func(o *Options) {
		o.indexOptions = append(o.indexOptions, opts...)
	}
}

// WithProjectOptions configures the project service.
func WithProjectOptions(opts ...project.Option) Option {
	return func(o *Options) {
		o.projectOptions = append(o.projectOptions, opts...)
	}
}

// WithResourceOptions configures the resource service.
func WithResourceOptions(opts ...resource.Option) Option {
	return func(o *Options) {
		o.resourceOptions = append(o.resourceOptions, opts...)
	}
}
