package coordinator

import (
	"context"

	// Packages
	registry "github.com/mutablelogic/go-chunker/pkg/registry"
	schema "github.com/mutablelogic/go-chunker/pkg/schema"
	attribute "go.opentelemetry.io/otel/attribute"
	metric "go.opentelemetry.io/otel/metric"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type metrics struct {
	chunks  metric.Int64Counter
	bytes   metric.Int64Counter
	uploads metric.Int64Counter
	active  metric.Int64ObservableGauge
}

const (
	metricChunks  = schema.SchemaName + ".chunks"
	metricBytes   = schema.SchemaName + ".chunk.bytes"
	metricUploads = schema.SchemaName + ".uploads"
	metricActive  = schema.SchemaName + ".sessions.active"

	attrStatus = "status"
	attrResult = "result"
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func newMetrics(meter metric.Meter, sessions *registry.Registry) (*metrics, error) {
	self := new(metrics)
	if counter, err := meter.Int64Counter(metricChunks, metric.WithDescription("Chunk deliveries"), metric.WithUnit("{chunk}")); err != nil {
		return nil, err
	} else {
		self.chunks = counter
	}
	if counter, err := meter.Int64Counter(metricBytes, metric.WithDescription("Bytes of chunk data stored"), metric.WithUnit("By")); err != nil {
		return nil, err
	} else {
		self.bytes = counter
	}
	if counter, err := meter.Int64Counter(metricUploads, metric.WithDescription("Uploads finished, by final status"), metric.WithUnit("{upload}")); err != nil {
		return nil, err
	} else {
		self.uploads = counter
	}
	if gauge, err := meter.Int64ObservableGauge(metricActive, metric.WithDescription("Uploads in progress"), metric.WithUnit("{upload}"), metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
		o.Observe(int64(sessions.Len()))
		return nil
	})); err != nil {
		return nil, err
	} else {
		self.active = gauge
	}
	return self, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (m *metrics) chunk(ctx context.Context, result schema.Result) {
	m.chunks.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, string(result))))
}

func (m *metrics) stored(ctx context.Context, n int64) {
	m.bytes.Add(ctx, n)
}

func (m *metrics) upload(ctx context.Context, status schema.Status) {
	m.uploads.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, string(status))))
}
