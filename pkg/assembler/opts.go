package assembler

import (
	// Packages
	zerolog "github.com/rs/zerolog"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type Opt func(*opts) error

type opts struct {
	tracer trace.Tracer
	log    zerolog.Logger
	prefix string
}

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opts) error {
		o.tracer = tracer
		return nil
	}
}

func WithLogger(log zerolog.Logger) Opt {
	return func(o *opts) error {
		o.log = log
		return nil
	}
}

// WithArtifactPrefix sets the file name prefix of assembled artifacts,
// which defaults to schema.ArtifactPrefix
func WithArtifactPrefix(prefix string) Opt {
	return func(o *opts) error {
		o.prefix = prefix
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
