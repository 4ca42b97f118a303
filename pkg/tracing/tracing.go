package tracing

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "learnhub"

// 资源 ID 路径参数，作为 span 属性方便按课程/课时/测验检索
var idParams = []string{"courseId", "lessonId", "quizId"}

// 不产生 span 的路径前缀
var untracedPrefixes = []string{"/metrics", "/swagger", "/api/health"}

// InitTracer sampleRatio 在 (0,1) 之外时全量采样
func InitTracer(serviceName, collectorEndpoint string, sampleRatio float64) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(collectorEndpoint)))
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.AlwaysSample()
	if sampleRatio > 0 && sampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp, nil
}

func traced(path string) bool {
	for _, prefix := range untracedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// SpanName 以路由模板命名，未匹配路由统一归为 unmatched
func SpanName(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	return c.Request.Method + " " + route
}

func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !traced(c.Request.URL.Path) {
			c.Next()
			return
		}

		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := otel.Tracer(tracerName).Start(ctx, SpanName(c), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
		)
		for _, name := range idParams {
			if raw := c.Param(name); raw != "" {
				if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
					span.SetAttributes(attribute.Int64("learnhub."+name, int64(id)))
				}
			}
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		for _, e := range c.Errors {
			span.RecordError(e.Err)
		}
		if status >= 500 {
			span.SetStatus(codes.Error, strconv.Itoa(status))
		}
	}
}
