package msgswitch

import "github.com/rs/zerolog"

// switchOptions holds configuration for Switch construction.
type switchOptions struct {
	log zerolog.Logger
}

func defaultSwitchOptions() switchOptions {
	return switchOptions{log: zerolog.Nop()}
}

// Option configures a Switch instance.
type Option interface {
	applySwitch(*switchOptions)
}

type switchOptionFunc func(*switchOptions)

func (f switchOptionFunc) applySwitch(o *switchOptions) { f(o) }

// WithLogger sets the structured logger a Switch hands to its request pool
// for abort-class diagnostics (tag overflow, request-count overflow).
// Without this option a Switch logs nothing.
func WithLogger(log zerolog.Logger) Option {
	return switchOptionFunc(func(o *switchOptions) {
		o.log = log
	})
}

func resolveSwitchOptions(opts []Option) switchOptions {
	o := defaultSwitchOptions()
	for _, opt := range opts {
		opt.applySwitch(&o)
	}
	return o
}
