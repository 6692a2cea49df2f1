package classifier

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xaenox/support-monitor/internal/classifier"

// TracingPredictor records one span per model call.
type TracingPredictor struct {
	next   Predictor
	model  string
	tracer trace.Tracer
}

func NewTracingPredictor(next Predictor, model string, tp trace.TracerProvider) *TracingPredictor {
	return &TracingPredictor{next: next, model: model, tracer: tp.Tracer(tracerName)}
}

func (p *TracingPredictor) Predict(ctx context.Context, req Request) (Prediction, error) {
	ctx, span := p.tracer.Start(ctx, "classifier.predict",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.request.model", p.model),
			attribute.Int("classifier.tools", len(req.Tools)),
			attribute.Int("classifier.corrections", len(req.Corrections)),
		))
	defer span.End()

	pred, err := p.next.Predict(ctx, req)
	span.SetAttributes(
		attribute.Int64("gen_ai.usage.input_tokens", pred.Usage.InputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", pred.Usage.OutputTokens),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return pred, err
	}
	span.SetAttributes(
		attribute.String("classifier.category", string(pred.Result.Category)),
		attribute.Float64("classifier.confidence", pred.Result.Confidence),
		attribute.Bool("classifier.requires_attention", pred.Result.RequiresAttention),
	)
	return pred, nil
}
