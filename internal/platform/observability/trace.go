package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/orderhub/api"

// Tracer returns the module tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// TraceTx wraps a ledger transaction in a span so lock contention and retry
// latency stay visible without instrumenting every repository call.
func TraceTx(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(
		attribute.String("ledger.unit", "transaction"),
	))
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
