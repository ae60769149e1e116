// Package otel sets up the global tracer provider.
package otel

import (
	"context"
	"fmt"

	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InitTracer exports sampled spans to Cloud Trace of projectID and installs
// the provider globally. Call the returned function to flush and shut the
// provider down.
func InitTracer(projectID string, sampleRatio float64) (func(context.Context) error, error) {
	// TODO: retrieve from metadata server
	// https://cloud.google.com/compute/docs/storing-retrieving-metadata
	if projectID == "" {
		return nil, fmt.Errorf("project id is required for tracing")
	}

	exporter, err := texporter.New(texporter.WithProjectID(projectID))
	if err != nil {
		return nil, fmt.Errorf("error while creating trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(sampleRatio)),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
