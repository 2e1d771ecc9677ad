package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/rfidtrack/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "rfidtrack/http"

// GinMiddleware opens a server span per request on the global provider.
func GinMiddleware() gin.HandlerFunc {
	return GinMiddlewareWithProvider(otel.GetTracerProvider())
}

// GinMiddlewareWithProvider continues any upstream trace and names the span
// after the matched route. The tag and handheld ids are attached once the
// handler has resolved them.
func GinMiddlewareWithProvider(provider trace.TracerProvider) gin.HandlerFunc {
	tracer := provider.Tracer(tracerName)

	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		}
		reqCtx := c.Request.Context()
		if requestID := obscontext.RequestIDFromContext(reqCtx); requestID != "" {
			attrs = append(attrs, attribute.String("request_id", requestID))
		}
		if deviceID := obscontext.DeviceIDFromContext(reqCtx); deviceID != "" {
			attrs = append(attrs, attribute.String("rfid.device_id", deviceID))
		}
		if tagID := strings.TrimSpace(c.GetString("tag_id")); tagID != "" {
			attrs = append(attrs, attribute.String("rfid.tag_id", tagID))
		}

		lastErr := c.Errors.Last()
		if lastErr != nil {
			if safeErr := SafeError(lastErr.Err); safeErr != nil {
				attrs = append(attrs, attribute.String("error.type", safeErr.Error()))
				if status >= http.StatusInternalServerError {
					span.RecordError(safeErr)
				}
			}
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
