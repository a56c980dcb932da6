package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer provides distributed tracing capabilities. A disabled tracer, or a
// context without a segment, runs work untraced.
type Tracer struct {
	serviceName string
	enabled     bool
}

// NewTracer creates a new tracer instance
func NewTracer(serviceName string, enabled bool) *Tracer {
	return &Tracer{
		serviceName: serviceName,
		enabled:     enabled,
	}
}

func (t *Tracer) active(ctx context.Context) bool {
	return t != nil && t.enabled && xray.GetSegment(ctx) != nil
}

// Handler wraps h so every request opens a segment
func (t *Tracer) Handler(h http.Handler) http.Handler {
	if t == nil || !t.enabled {
		return h
	}
	return xray.Handler(xray.NewFixedSegmentNamer(t.serviceName), h)
}

// StartSegment starts a new trace segment
func (t *Tracer) StartSegment(ctx context.Context, name string) (context.Context, *xray.Segment) {
	return xray.BeginSegment(ctx, fmt.Sprintf("%s.%s", t.serviceName, name))
}

// TraceFunction wraps a function with a subsegment
func (t *Tracer) TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error {
	if !t.active(ctx) {
		return fn(ctx)
	}

	ctx, seg := xray.BeginSubsegment(ctx, name)
	if seg == nil {
		return fn(ctx)
	}

	err := fn(ctx)
	seg.Close(err)
	return err
}

// AddMetadata adds metadata to the current segment
func (t *Tracer) AddMetadata(ctx context.Context, key string, value interface{}) {
	if !t.active(ctx) {
		return
	}
	xray.GetSegment(ctx).AddMetadata(key, value)
}

// AddAnnotation adds an indexed annotation to the current segment
func (t *Tracer) AddAnnotation(ctx context.Context, key string, value string) {
	if !t.active(ctx) {
		return
	}
	xray.GetSegment(ctx).AddAnnotation(key, value)
}
