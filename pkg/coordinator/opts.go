package coordinator

import (
	"context"
	"time"

	// Packages
	uuid "github.com/google/uuid"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	zerolog "github.com/rs/zerolog"
	metric "go.opentelemetry.io/otel/metric"
	noop "go.opentelemetry.io/otel/metric/noop"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for coordinator configuration.
type Opt func(*opts) error

// CompleteFunc is called once for every artifact assembled, for example to
// create a record referencing the new file
type CompleteFunc func(context.Context, schema.Artifact) error

type opts struct {
	tracer     trace.Tracer
	meter      metric.Meter
	log        zerolog.Logger
	onComplete CompleteFunc
	maxAge     time.Duration
	interval   time.Duration
	newId      func() string
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

// WithMeter sets the meter used to record upload metrics.
func WithMeter(meter metric.Meter) Opt {
	return func(o *opts) error {
		if meter == nil {
			return httpresponse.ErrBadRequest.With("meter is nil")
		}
		o.meter = meter
		return nil
	}
}

// WithLogger sets the logger for upload events.
func WithLogger(log zerolog.Logger) Opt {
	return func(o *opts) error {
		o.log = log
		return nil
	}
}

// WithOnComplete sets a function called after each artifact is assembled.
// An error returned from the function is reported to the uploader, but
// the artifact is kept.
func WithOnComplete(fn CompleteFunc) Opt {
	return func(o *opts) error {
		o.onComplete = fn
		return nil
	}
}

// WithExpiry cancels sessions which have not received a chunk within
// maxAge. Sessions are checked every interval by Run; when interval is
// zero it defaults to a quarter of maxAge.
func WithExpiry(maxAge, interval time.Duration) Opt {
	return func(o *opts) error {
		if maxAge < 0 || interval < 0 {
			return httpresponse.ErrBadRequest.Withf("invalid expiry %v/%v", maxAge, interval)
		}
		o.maxAge = maxAge
		o.interval = interval
		if o.interval == 0 {
			o.interval = maxAge / 4
		}
		return nil
	}
}

// withIdFunc replaces the artifact identifier generator
func withIdFunc(fn func() string) Opt {
	return func(o *opts) error {
		o.newId = fn
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opt []Opt) (opts, error) {
	// Set defaults
	o := opts{
		meter: noop.NewMeterProvider().Meter(schema.SchemaName),
		log:   zerolog.Nop(),
		newId: uuid.NewString,
	}

	// Apply options
	for _, fn := range opt {
		if err := fn(&o); err != nil {
			return opts{}, err
		}
	}

	// Return success
	return o, nil
}
