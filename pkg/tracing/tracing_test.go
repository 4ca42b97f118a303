package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGinMiddlewareSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/api/student/courses/:courseId/progress", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/api/student/courses/42/progress", "/api/health", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	spans := recorder.Ended()
	if !assert.Len(t, spans, 2) {
		return
	}
	assert.Equal(t, "GET /api/student/courses/:courseId/progress", spans[0].Name())
	var courseID int64
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "learnhub.courseId" {
			courseID = kv.Value.AsInt64()
		}
	}
	assert.Equal(t, int64(42), courseID)

	assert.Equal(t, "GET /boom", spans[1].Name())
	assert.Equal(t, "Error", spans[1].Status().Code.String())
}
