package chunkstore

import (
	// Packages
	zerolog "github.com/rs/zerolog"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for chunk store configuration.
type Opt func(*opts) error

type opts struct {
	tracer trace.Tracer
	log    zerolog.Logger
}

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithTracer sets the tracer used for tracing operations.
func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opts) error {
		o.tracer = tracer
		return nil
	}
}

// WithLogger sets the logger for chunk store events.
func WithLogger(log zerolog.Logger) Opt {
	return func(o *opts) error {
		o.log = log
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opt []Opt) (opts, error) {
	o := opts{
		log: zerolog.Nop(),
	}
	for _, fn := range opt {
		if err := fn(&o); err != nil {
			return opts{}, err
		}
	}
	return o, nil
}
