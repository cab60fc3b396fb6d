package agent

import (
	log "github.com/sirupsen/logrus"
)

type options struct {
	ll log.FieldLogger
}

func defaultOptions() options {
	return options{
		ll: log.StandardLogger(),
	}
}

// OptionFunc describes the function signature for methods which modify the
// agent options.
type OptionFunc func(*options) error

// WithLogger sets a logger on the agent options.
func WithLogger(ll log.FieldLogger) OptionFunc {
	return func(o *options) error {
		o.ll = ll
		return nil
	}
}
