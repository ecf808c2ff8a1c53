package resource

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// blobCleanupTimeout bounds the removal of content whose index write failed.
const blobCleanupTimeout = 10 * time.Second

// Option is a functional option for configuring a [Service].
type Option func(*Options)

// Options holds the configuration for a [Service].
type Options struct {
	clock          func() time.Time
	newUploadID    func() string
	lastWriterWins bool
	pageSize       int
}

func newOptions() *Options {
	return &Options{
		clock:       time.Now,
		newUploadID: uuid.NewString,
		pageSize:    100,
	}
}

func (o *Options) validate() error {
	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	if o.newUploadID == nil {
		return errors.New("upload id generator cannot be nil")
	}

	if o.pageSize < 1 {
		return errors.New("page size must be at least 1")
	}

	return nil
}

// WithClock sets the clock used for version timestamps. Defaults to
// [time.Now].
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}

// WithUploadIDGenerator sets the function that makes blob paths of
// concurrent uploads of the same version distinct. Defaults to
// [uuid.NewString].
func WithUploadIDGenerator(newID func() string) Option {
	return func(o *Options) {
		o.newUploadID = newID
	}
}

// WithLastWriterWins lets concurrent writers of the same version index
// overwrite each other instead of failing with a conflict.
func WithLastWriterWins() Option {
	return func(o *Options) {
		o.lastWriterWins = true
	}
}

// WithPageSize sets the page size used when scanning version and resource
// records. The default is 100.
func WithPageSize(n int) Option {
	return func(o *Options) {
		o.pageSize = n
	}
}
