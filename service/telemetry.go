package service

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"todo-api/domain"
)

const (
	tracerName        = "todo-api/service"
	operationsMessage = "operation.metrics"

	attrOperation   = "todo.operation"
	attrListID      = "todo.list_id"
	attrTaskID      = "todo.task_id"
	attrResultCount = "todo.result_count"
	attrDurationMs  = "todo.duration_ms"
)

// operation tracks one service call from start to its metrics log entry.
type operation struct {
	logger *log.Logger
	name   string
	start  time.Time
	span   trace.Span
	fields log.Fields
}

func (s *Service) begin(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *operation) {
	fields := log.Fields{"operation": name}
	for _, kv := range attrs {
		fields[string(kv.Key)] = kv.Value.AsInterface()
	}

	attrs = append(attrs, attribute.String(attrOperation, name))
	ctx, span := otel.Tracer(tracerName).Start(ctx, "todo.service."+name, trace.WithAttributes(attrs...))
	return ctx, &operation{
		logger: s.log,
		name:   name,
		start:  s.now(),
		span:   span,
		fields: fields,
	}
}

// end records the outcome on the span and logs the timing entry. count is
// the number of records returned.
func (o *operation) end(now time.Time, count int, err error) {
	elapsed := durationToMillis(now.Sub(o.start))
	o.span.SetAttributes(
		attribute.Int(attrResultCount, count),
		attribute.Float64(attrDurationMs, elapsed),
	)

	fields := log.Fields{}
	for k, v := range o.fields {
		fields[k] = v
	}
	fields["duration_ms"] = elapsed
	fields["result_count"] = count

	entry := o.logger.WithFields(fields)
	if sc := o.span.SpanContext(); sc.HasTraceID() {
		entry = entry.WithField("trace_id", sc.TraceID().String())
	}

	switch {
	case err == nil:
		o.span.SetStatus(codes.Ok, "")
		entry.Info(operationsMessage)
	case isCallerError(err):
		o.span.SetStatus(codes.Unset, "")
		o.span.SetAttributes(attribute.String("error.message", err.Error()))
		entry.WithError(err).Warn(operationsMessage)
	default:
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
		entry.WithError(err).Error(operationsMessage)
	}
	o.span.End()
}

func isCallerError(err error) bool {
	var ve *domain.ValidationError
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrDuplicate) || errors.As(err, &ve)
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
