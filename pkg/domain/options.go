package domain

import "falken/pkg/diag"

type options struct {
	log      *diag.Logger
	clamping bool
}

// Option configures attributes, containers and brain specs.
type Option func(*options)

// WithLogger injects the diagnostic context. Without it the process default
// from diag.Default is used.
func WithLogger(l *diag.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClamping sets the clamping policy for numeric attributes created
// through the configured value. Field specs may still enable clamping per
// attribute.
func WithClamping(enabled bool) Option {
	return func(o *options) { o.clamping = enabled }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func resolveLogger(l *diag.Logger) *diag.Logger {
	if l != nil {
		return l
	}
	return diag.Default()
}
