package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Span attributes stay bounded in cardinality: operation names, identities and
// outcomes only. URLs, file names and chat ids belong in logs.

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

// InstrumentOperation wraps fn in a span named operationName.
func (t *Telemetry) InstrumentOperation(ctx context.Context, operationName, component string, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, operationName)

	defer span.End()

	span.SetAttributes(
		attribute.String("component", component),
		attribute.String("operation", operationName),
	)

	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"

		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration_seconds", time.Since(start).Seconds()),
	)

	return err
}

// InstrumentRelay tracks a whole relay job. outcome is read after fn returns.
func (t *Telemetry) InstrumentRelay(ctx context.Context, fn func(ctx context.Context) (outcome string)) {
	t.addActiveRelays(ctx, 1)
	defer t.addActiveRelays(ctx, -1)

	var outcome string

	_ = t.InstrumentOperation(ctx, "relay", "relay", func(ctx context.Context) error {
		outcome = fn(ctx)

		return nil
	})

	t.RecordRelay(ctx, outcome)
}

// InstrumentDownload instruments the streaming download. fn returns the bytes written.
func (t *Telemetry) InstrumentDownload(ctx context.Context, fn func(ctx context.Context) (int64, error)) error {
	start := time.Now()

	var written int64

	err := t.InstrumentOperation(ctx, "download", "downloader", func(ctx context.Context) error {
		var err error

		written, err = fn(ctx)

		return err
	})

	status := "success"
	if err != nil {
		status = "error"
	}

	t.RecordDownload(ctx, status, written, time.Since(start))

	return err
}

// InstrumentUpload instruments a document upload under identity.
func (t *Telemetry) InstrumentUpload(ctx context.Context, identity string, fn InstrumentedFunc) error {
	start := time.Now()

	err := t.InstrumentOperation(ctx, "upload_"+identity, "uploader", fn)

	status := "success"
	if err != nil {
		status = "error"
	}

	t.RecordUpload(ctx, identity, status, time.Since(start))

	return err
}
