package eval

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/xaenox/support-monitor/internal/classifier"
	"github.com/xaenox/support-monitor/internal/models"
	"github.com/xaenox/support-monitor/internal/usage"
)

func keywordClassifier() *classifier.Classifier {
	return classifier.New(classifier.NewKeywordPredictor(), usage.NewTracker("keyword", nil, nil), classifier.DefaultConfig(), nil)
}

func TestKeywordPredictorScores(t *testing.T) {
	report := Run(context.Background(), keywordClassifier(), Dataset(), DefaultEvaluators(), nil)

	if len(report.Cases) != 10 {
		t.Fatalf("cases = %d, want 10", len(report.Cases))
	}
	want := map[string]float64{
		"category_match":       0.8,
		"attention_match":      0.9,
		"confidence_threshold": 0.8,
	}
	for name, w := range want {
		if got := report.Averages[name]; math.Abs(got-w) > 1e-9 {
			t.Errorf("%s average = %v, want %v", name, got, w)
		}
	}

	byName := make(map[string]CaseResult, len(report.Cases))
	for _, c := range report.Cases {
		if c.Err != nil {
			t.Fatalf("case %s: %v", c.Case.Name, c.Err)
		}
		byName[c.Case.Name] = c
	}

	// Thanks and help tie; support wins the tie.
	thanks := byName["thanks_message"]
	if thanks.Output.Result.Category != models.CategorySupportRequest {
		t.Errorf("thanks_message category = %s", thanks.Output.Result.Category)
	}
	if thanks.Scores["attention_match"] != 0 {
		t.Error("thanks_message should miss attention")
	}
	if s := byName["emoji_only"].Scores; s["category_match"] != 1 || s["confidence_threshold"] != 0 {
		t.Errorf("emoji_only scores = %v", s)
	}
}

type failingPredictor struct{}

func (failingPredictor) Predict(context.Context, classifier.Request) (classifier.Prediction, error) {
	return classifier.Prediction{}, &classifier.OutputError{Raw: "nope", Reason: "not json"}
}

func TestFailedCaseScoresZero(t *testing.T) {
	cfg := classifier.DefaultConfig()
	cfg.OutputRetries = 0
	clf := classifier.New(failingPredictor{}, usage.NewTracker("m", nil, nil), cfg, nil)

	report := Run(context.Background(), clf, Dataset()[:2], DefaultEvaluators(), nil)
	for _, c := range report.Cases {
		if !errors.Is(c.Err, classifier.ErrClassificationFailed) {
			t.Fatalf("case %s err = %v", c.Case.Name, c.Err)
		}
		for name, s := range c.Scores {
			if s != 0 {
				t.Errorf("case %s %s = %v, want 0", c.Case.Name, name, s)
			}
		}
	}
	if report.Averages["category_match"] != 0 {
		t.Errorf("average = %v", report.Averages["category_match"])
	}
}

func TestConfidenceThresholdBoundary(t *testing.T) {
	e := ConfidenceThreshold{Min: 0.5}
	out := classifier.Output{Result: models.ClassificationResult{Confidence: 0.5}}
	if e.Evaluate(Case{}, out) != 1 {
		t.Error("confidence equal to the threshold should pass")
	}
	out.Result.Confidence = 0.49
	if e.Evaluate(Case{}, out) != 0 {
		t.Error("confidence below the threshold should fail")
	}
}

func TestWriteReport(t *testing.T) {
	report := Run(context.Background(), keywordClassifier(), Dataset()[:1], DefaultEvaluators(), nil)

	var buf bytes.Buffer
	if err := report.Write(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"password_reset", "support_request", "category_match", "average", "1.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
