package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/xaenox/support-monitor/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingProvider() (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)), rec
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingPredictorRecordsSpan(t *testing.T) {
	tp, rec := newRecordingProvider()
	inner := &scriptedPredictor{steps: []step{{result: models.ClassificationResult{
		Category: models.CategoryBugReport, Confidence: 0.8, RequiresAttention: true,
	}}}}
	p := NewTracingPredictor(inner, "qwen3:30b", tp)

	pred, err := p.Predict(context.Background(), Request{Prompt: "it crashed"})
	if err != nil {
		t.Fatal(err)
	}
	if pred.Result.Category != models.CategoryBugReport {
		t.Fatalf("category = %s", pred.Result.Category)
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	s := spans[0]
	if s.Name() != "classifier.predict" {
		t.Errorf("span name = %q", s.Name())
	}
	a := attrs(s)
	if a["gen_ai.request.model"].AsString() != "qwen3:30b" {
		t.Errorf("model attr = %v", a["gen_ai.request.model"])
	}
	if a["classifier.category"].AsString() != "bug_report" {
		t.Errorf("category attr = %v", a["classifier.category"])
	}
	if a["classifier.confidence"].AsFloat64() != 0.8 {
		t.Errorf("confidence attr = %v", a["classifier.confidence"])
	}
	if s.Status().Code == codes.Error {
		t.Error("successful call marked as error")
	}
}

func TestTracingPredictorRecordsError(t *testing.T) {
	tp, rec := newRecordingProvider()
	inner := &scriptedPredictor{steps: []step{{err: errors.New("connection refused")}}}
	p := NewTracingPredictor(inner, "m", tp)

	if _, err := p.Predict(context.Background(), Request{}); err == nil {
		t.Fatal("expected error")
	}
	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want error", spans[0].Status())
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected the error recorded as an event")
	}
	if _, ok := attrs(spans[0])["classifier.category"]; ok {
		t.Error("failed call should not carry a category")
	}
}

func TestClassifierThroughTracingPredictor(t *testing.T) {
	tp, rec := newRecordingProvider()
	inner := &scriptedPredictor{steps: []step{
		{result: models.ClassificationResult{Category: models.CategoryBugReport, Confidence: 0.1, RequiresAttention: true}},
		{result: models.ClassificationResult{Category: models.CategoryBugReport, Confidence: 0.9, RequiresAttention: true}},
	}}
	clf := newTestClassifier(NewTracingPredictor(inner, "m", tp), nil, nil)

	if _, err := clf.Classify(context.Background(), "the export crashed", testAuthor, testChannel); err != nil {
		t.Fatal(err)
	}
	if got := len(rec.Ended()); got != 2 {
		t.Errorf("spans = %d, want one per attempt", got)
	}
}
