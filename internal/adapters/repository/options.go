package repository

import "github.com/okian/occupancy/pkg/logger"

// Option applies a configuration option to a store.
type Option func(*storeOptions)

type storeOptions struct {
	logger logger.Logger
}

// WithLogger sets the logger used by the store.
func WithLogger(l logger.Logger) Option {
	return func(o *storeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(opts []Option) storeOptions {
	o := storeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Nop()
	}
	return o
}
