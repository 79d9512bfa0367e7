package api

import "github.com/okian/occupancy/pkg/logger"

// Option applies a configuration option to the Server.
type Option func(*options)

type options struct {
	logger               logger.Logger
	degradeOnUnavailable bool
}

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDegradeOnUnavailable makes GET /heatmap answer 200 with zero rows and
// degraded=true instead of 503 when a collaborator is down.
func WithDegradeOnUnavailable(enabled bool) Option {
	return func(o *options) {
		o.degradeOnUnavailable = enabled
	}
}
