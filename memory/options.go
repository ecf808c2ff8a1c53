package memory

// Option is a functional option for configuring a [Store].
type Option func(*Options)

// Options holds the configuration for a [Store].
type Options struct {
	defaultPageSize int
}

func newOptions() *Options {
	return &Options{
		defaultPageSize: 1000,
	}
}

// WithDefaultPageSize sets the page size used when a query does not specify
// one. The default is 1000. Values less than one are ignored.
func WithDefaultPageSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.defaultPageSize = n
		}
	}
}
