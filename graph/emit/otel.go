package emit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating one OpenTelemetry span per event.
//
// Each span:
//   - is named after the event kind (e.g. "tool_call")
//   - carries agentcrew.run_id, agentcrew.step and agentcrew.agent
//   - carries kind-specific attributes (tool name, planned tools, handoff source)
//   - carries Meta entries, with LLM usage keys mapped to agentcrew.llm.*
//   - has error status for failed tool calls and workflow errors
//
// Spans are ended immediately since events are points in time.
//
// Usage:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	emitter := emit.NewOTelEmitter(tp.Tracer("agentcrew"))
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates a new OTelEmitter.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates and ends a span for the event.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), string(event.Kind))
	defer span.End()

	span.SetAttributes(
		attribute.String("agentcrew.run_id", event.RunID),
		attribute.Int("agentcrew.step", event.Step),
		attribute.String("agentcrew.agent", event.NodeID),
	)

	switch event.Kind {
	case KindAgentTransition:
		span.SetAttributes(attribute.String("agentcrew.from_agent", event.From))
	case KindAgentOutput:
		span.SetAttributes(
			attribute.StringSlice("agentcrew.planned_tools", event.ToolCalls),
			attribute.Int("agentcrew.output_chars", len(event.Text)),
		)
	case KindToolCall, KindToolCallResult:
		span.SetAttributes(attribute.String("agentcrew.tool", event.ToolName))
	}

	addMetadataAttributes(span, event.Meta)

	if event.IsError {
		msg := event.Msg
		if errText, ok := event.Meta["error"].(string); ok {
			msg = errText
		} else if s, ok := event.ToolOutput.(string); ok && msg == "" {
			msg = s
		}
		span.SetStatus(codes.Error, msg)
		span.RecordError(errors.New(msg))
	}
}

// addMetadataAttributes converts event metadata to span attributes.
func addMetadataAttributes(span trace.Span, meta map[string]any) {
	for key, value := range meta {
		attrKey := key
		switch key {
		case "tokens_in":
			attrKey = "agentcrew.llm.tokens_in"
		case "tokens_out":
			attrKey = "agentcrew.llm.tokens_out"
		case "cost_usd":
			attrKey = "agentcrew.llm.cost_usd"
		case "model":
			attrKey = "agentcrew.llm.model"
		case "duration_ms":
			attrKey = "agentcrew.turn.duration_ms"
		}

		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case uint64:
			span.SetAttributes(attribute.Int64(attrKey, int64(v)))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
