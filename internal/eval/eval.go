// Package eval scores a classifier against labelled messages.
package eval

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/xaenox/support-monitor/internal/classifier"
	"go.uber.org/zap"
)

// Evaluator scores one classified case between 0 and 1.
type Evaluator interface {
	Name() string
	Evaluate(c Case, out classifier.Output) float64
}

type CategoryMatch struct{}

func (CategoryMatch) Name() string { return "category_match" }

func (CategoryMatch) Evaluate(c Case, out classifier.Output) float64 {
	return score(out.Result.Category == c.Category)
}

type AttentionMatch struct{}

func (AttentionMatch) Name() string { return "attention_match" }

func (AttentionMatch) Evaluate(c Case, out classifier.Output) float64 {
	return score(out.Result.RequiresAttention == c.RequiresAttention)
}

// ConfidenceThreshold passes when the model is at least Min sure.
type ConfidenceThreshold struct {
	Min float64
}

func (ConfidenceThreshold) Name() string { return "confidence_threshold" }

func (e ConfidenceThreshold) Evaluate(_ Case, out classifier.Output) float64 {
	return score(out.Result.Confidence >= e.Min)
}

// DefaultEvaluators mirrors how the dataset is meant to be scored.
func DefaultEvaluators() []Evaluator {
	return []Evaluator{CategoryMatch{}, AttentionMatch{}, ConfidenceThreshold{Min: 0.5}}
}

func score(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

type CaseResult struct {
	Case   Case
	Output classifier.Output
	Err    error
	Scores map[string]float64
}

type Report struct {
	Evaluators []string
	Cases      []CaseResult
	// Averages holds the mean score per evaluator over all cases. A case
	// that failed to classify scores 0 everywhere.
	Averages map[string]float64
}

// Run classifies every case in order and scores it.
func Run(ctx context.Context, clf *classifier.Classifier, cases []Case, evaluators []Evaluator, logger *zap.Logger) Report {
	if logger == nil {
		logger = zap.NewNop()
	}
	report := Report{Averages: make(map[string]float64, len(evaluators))}
	for _, e := range evaluators {
		report.Evaluators = append(report.Evaluators, e.Name())
	}

	for _, c := range cases {
		res := CaseResult{Case: c, Scores: make(map[string]float64, len(evaluators))}
		out, err := clf.Classify(ctx,
			c.Content,
			classifier.AuthorContext{Name: c.AuthorName},
			classifier.ChannelContext{Name: c.ChannelName})
		if err != nil {
			res.Err = err
			logger.Warn("Eval case failed", zap.String("case", c.Name), zap.Error(err))
		} else {
			res.Output = out
		}
		for _, e := range evaluators {
			s := 0.0
			if err == nil {
				s = e.Evaluate(c, out)
			}
			res.Scores[e.Name()] = s
			report.Averages[e.Name()] += s
		}
		report.Cases = append(report.Cases, res)
	}

	if n := len(cases); n > 0 {
		for name := range report.Averages {
			report.Averages[name] /= float64(n)
		}
	}
	return report
}

// Write prints one row per case followed by the averages.
func (r Report) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "case\texpected\tgot\tconfidence")
	for _, name := range r.Evaluators {
		fmt.Fprintf(tw, "\t%s", name)
	}
	fmt.Fprintln(tw)

	for _, c := range r.Cases {
		got := "error"
		confidence := "-"
		if c.Err == nil {
			got = string(c.Output.Result.Category)
			confidence = fmt.Sprintf("%.2f", c.Output.Result.Confidence)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s", c.Case.Name, c.Case.Category, got, confidence)
		for _, name := range r.Evaluators {
			fmt.Fprintf(tw, "\t%.0f", c.Scores[name])
		}
		fmt.Fprintln(tw)
	}

	fmt.Fprint(tw, "average\t\t\t")
	for _, name := range r.Evaluators {
		fmt.Fprintf(tw, "\t%.2f", r.Averages[name])
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}
