// Package otlp exports finished spans to an OTLP/HTTP collector using the
// protobuf encoding.
package otlp

import (
	"time"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"

	"github.com/kzs0/tracehop/attr"
	"github.com/kzs0/tracehop/trace"
)

const scopeName = "github.com/kzs0/tracehop"

// NewExportRequest builds the collector request for spans of one service.
func NewExportRequest(spans []trace.FinishedSpan, serviceName string, resource attr.Set) *coltracepb.ExportTraceServiceRequest {
	resourceAttrs := []*commonpb.KeyValue{
		{Key: "service.name", Value: stringValue(serviceName)},
	}
	resource.Range(func(a attr.Attr) bool {
		resourceAttrs = append(resourceAttrs, attrToKeyValue(a))
		return true
	})

	otlpSpans := make([]*tracepb.Span, len(spans))
	for i, s := range spans {
		otlpSpans[i] = spanToOTLP(s)
	}

	return &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{
			{
				Resource: &resourcepb.Resource{Attributes: resourceAttrs},
				ScopeSpans: []*tracepb.ScopeSpans{
					{
						Scope: &commonpb.InstrumentationScope{Name: scopeName},
						Spans: otlpSpans,
					},
				},
			},
		},
	}
}

// EncodeSpans marshals spans into an ExportTraceServiceRequest.
func EncodeSpans(spans []trace.FinishedSpan, serviceName string, resource attr.Set) ([]byte, error) {
	if len(spans) == 0 {
		return nil, nil
	}
	return proto.Marshal(NewExportRequest(spans, serviceName, resource))
}

func spanToOTLP(s trace.FinishedSpan) *tracepb.Span {
	traceID := s.TraceID()
	spanID := s.SpanID()

	span := &tracepb.Span{
		TraceId:           traceID[:],
		SpanId:            spanID[:],
		TraceState:        s.Context.TraceState(),
		Name:              s.Name,
		Kind:              spanKindToOTLP(s.Kind),
		StartTimeUnixNano: unixNano(s.StartTime),
		EndTimeUnixNano:   unixNano(s.EndTime),
	}

	if parent := s.ParentID(); !parent.IsZero() {
		span.ParentSpanId = parent[:]
	}

	s.Attrs.Range(func(a attr.Attr) bool {
		span.Attributes = append(span.Attributes, attrToKeyValue(a))
		return true
	})

	for _, e := range s.Events {
		event := &tracepb.Span_Event{
			TimeUnixNano: unixNano(e.Time),
			Name:         e.Name,
		}
		e.Attrs.Range(func(a attr.Attr) bool {
			event.Attributes = append(event.Attributes, attrToKeyValue(a))
			return true
		})
		span.Events = append(span.Events, event)
	}

	if s.Status != trace.StatusUnset {
		span.Status = &tracepb.Status{
			Code:    statusToOTLP(s.Status),
			Message: s.StatusMessage,
		}
	}

	return span
}

func spanKindToOTLP(kind trace.SpanKind) tracepb.Span_SpanKind {
	switch kind {
	case trace.SpanKindServer:
		return tracepb.Span_SPAN_KIND_SERVER
	case trace.SpanKindClient:
		return tracepb.Span_SPAN_KIND_CLIENT
	default:
		return tracepb.Span_SPAN_KIND_INTERNAL
	}
}

func statusToOTLP(status trace.SpanStatus) tracepb.Status_StatusCode {
	switch status {
	case trace.StatusOK:
		return tracepb.Status_STATUS_CODE_OK
	case trace.StatusError:
		return tracepb.Status_STATUS_CODE_ERROR
	default:
		return tracepb.Status_STATUS_CODE_UNSET
	}
}

func attrToKeyValue(a attr.Attr) *commonpb.KeyValue {
	v := a.Value
	var value *commonpb.AnyValue
	switch v.Kind() {
	case attr.KindInt64:
		value = &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: v.AsInt64()}}
	case attr.KindDuration:
		value = &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: int64(v.AsDuration())}}
	case attr.KindFloat64:
		value = &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: v.AsFloat64()}}
	case attr.KindBool:
		value = &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: v.AsBool()}}
	default:
		value = stringValue(v.String())
	}
	return &commonpb.KeyValue{Key: a.Key, Value: value}
}

func stringValue(s string) *commonpb.AnyValue {
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: s}}
}

func unixNano(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano())
}
