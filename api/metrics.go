package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "todo-api/api"
	requestEventName   = "todo.api.request"
	requestEventDomain = "app"
	observabilityEvent = "observability.event"
	requestErrorKey    = "request.error"

	attrHTTPMethod     = "http.method"
	attrHTTPRoute      = "http.route"
	attrHTTPStatusCode = "http.status_code"
	attrTotalMillis    = "todo.request.total_ms"
	attrUser           = "todo.request.user"
	attrErrorMessage   = "error.message"
)

// requestMetrics follows one HTTP request from its span to the structured
// observability event logged when it completes.
type requestMetrics struct {
	logger *log.Logger
	start  time.Time
	method string
	route  string
	user   string
	span   trace.Span
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, method, route string) (*requestMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(attrHTTPMethod, method),
			attribute.String(attrHTTPRoute, route),
		),
	)
	return &requestMetrics{
		logger: logger,
		start:  time.Now(),
		method: method,
		route:  route,
		span:   span,
	}, ctx
}

func (m *requestMetrics) SetUser(username string) {
	m.user = username
}

// Log ends the span and emits the observability event for the request.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	severityText, severityNumber := severityForStatus(status, err)

	attrs := []attribute.KeyValue{
		attribute.String(attrHTTPMethod, m.method),
		attribute.String(attrHTTPRoute, m.route),
		attribute.Int(attrHTTPStatusCode, status),
		attribute.Float64(attrTotalMillis, durationToMillis(time.Since(m.start))),
	}
	if m.user != "" {
		attrs = append(attrs, attribute.String(attrUser, m.user))
	}
	if err != nil {
		attrs = append(attrs, attribute.String(attrErrorMessage, err.Error()))
	}

	m.span.SetAttributes(attrs...)
	m.span.AddEvent(observabilityEvent, trace.WithAttributes(append([]attribute.KeyValue{
		attribute.String("event.name", requestEventName),
		attribute.String("event.domain", requestEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, attrs...)...))
	switch {
	case severityText == "ERROR":
		msg := http.StatusText(status)
		if err != nil {
			msg = err.Error()
		}
		m.span.SetStatus(codes.Error, msg)
	case status < http.StatusBadRequest:
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()

	if m.logger == nil {
		return
	}
	attributes := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		attributes[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      attributes,
	}
	if sc := m.span.SpanContext(); sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
		fields["span_id"] = sc.SpanID().String()
	}

	entry := m.logger.WithFields(fields)
	switch severityText {
	case "ERROR":
		entry.Error(observabilityEvent)
	case "WARN":
		entry.Warn(observabilityEvent)
	default:
		entry.Info(observabilityEvent)
	}
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= http.StatusInternalServerError, status == 0 && err != nil:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

// Observability wraps every request in a server span and logs one
// observability event per request.
func Observability(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			metrics, ctx := newRequestMetrics(req.Context(), logger, req.Method, route)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			if u, ok := currentUser(c); ok {
				metrics.SetUser(u.Username)
			}
			reqErr, _ := c.Get(requestErrorKey).(error)
			if reqErr == nil {
				reqErr = err
			}
			metrics.Log(c.Response().Status, reqErr)
			return nil
		}
	}
}

func setRequestError(c echo.Context, err error) {
	c.Set(requestErrorKey, err)
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
