package backend

import (
	"fmt"
	"net/url"

	// Packages
	"github.com/aws/aws-sdk-go-v2/aws"
	"go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type opt struct {
	url       *url.URL
	awsConfig *aws.Config
	endpoint  string       // custom S3 endpoint, path-style addressing is used when set
	anonymous bool         // forces anonymous S3 credentials
	createDir bool         // create the root directory of a file:// backend
	tracer    trace.Tracer // optional OTel tracer; when set, AWS SDK middleware is injected
}

type Opt func(*opt) error

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func apply(url *url.URL, opts ...Opt) (*opt, error) {
	// Apply options
	o := opt{url: url}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	// Return success
	return &o, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WithEndpoint sets the S3 endpoint for S3-compatible services.
func WithEndpoint(endpoint string) Opt {
	return func(o *opt) error {
		if endpoint == "" {
			o.endpoint = ""
		} else if endpoint, err := url.Parse(endpoint); err != nil {
			return err
		} else if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
			return fmt.Errorf("endpoint must be http:// or https://, got %s://", endpoint.Scheme)
		} else {
			o.endpoint = endpoint.String()
		}
		return nil
	}
}

// WithAnonymous forces use of anonymous credentials.
// Use this for S3-compatible services that don't require authentication.
func WithAnonymous() Opt {
	return func(o *opt) error {
		o.anonymous = true
		return nil
	}
}

// WithCreateDir creates the directory of a file:// backend if it doesn't exist
func WithCreateDir() Opt {
	return func(o *opt) error {
		o.createDir = true
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for the backend.
// When set on an s3:// backend, AWS SDK middleware is injected so each S3 API
// call (PutObject, GetObject, etc.) produces a child span.
func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opt) error {
		o.tracer = tracer
		return nil
	}
}

// WithAWSConfig provides an AWS SDK v2 Config directly.
// When provided for s3:// URLs, this config is used instead of the default
// configuration chain.
func WithAWSConfig(cfg aws.Config) Opt {
	return func(o *opt) error {
		o.awsConfig = &cfg
		return nil
	}
}
