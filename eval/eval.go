package eval

import (
	"context"
	"errors"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/fusion/distance"
	"github.com/hupe1980/fusion/embeddings"
	"github.com/hupe1980/fusion/model"
)

// Options controls evaluation.
type Options struct {
	// Workers bounds concurrently scored instances; <= 0 means GOMAXPROCS.
	Workers int
	// Logger receives per-section results at debug level. May be nil.
	Logger *slog.Logger
}

// DefaultOptions returns options using all CPUs.
func DefaultOptions() Options {
	return Options{Workers: runtime.GOMAXPROCS(0)}
}

// Prediction is the outcome of one instance.
type Prediction struct {
	Instance
	// Predicted is the top-ranked word, empty if none was found.
	Predicted string
	// Cosine is the similarity of the target vector to b*, if computed.
	Cosine float32
	Correct bool
	// Skipped is set when b* is not in the vocabulary.
	Skipped bool
	// Missing lists unknown query terms.
	Missing []string
}

// SectionResult tallies one section.
type SectionResult struct {
	Name    string
	Correct int
	// Total counts scored instances; skipped ones are excluded.
	Total   int
	Skipped int
	// AvgCosine is the mean similarity of the target vector to b* over
	// instances where all terms were known.
	AvgCosine float64

	cosineSum   float64
	cosineCount int
}

// Accuracy returns Correct/Total, or 0 for an empty section.
func (s SectionResult) Accuracy() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total)
}

// Report is the result of an evaluation run.
type Report struct {
	Sections    []SectionResult
	Predictions []Prediction
	Correct     int
	Total       int
	Skipped     int
}

// Accuracy returns the overall accuracy.
func (r *Report) Accuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Total)
}

// Evaluate scores every instance against e in parallel.
func Evaluate(ctx context.Context, e *embeddings.Embeddings, instances []Instance, opts Options) (*Report, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	predictions := make([]Prediction, len(instances))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range instances {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := score(e, instances[i])
			if err != nil {
				return err
			}
			predictions[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := merge(predictions)
	if opts.Logger != nil {
		for _, s := range report.Sections {
			opts.Logger.LogAttrs(ctx, slog.LevelDebug, "evaluated section",
				slog.String("section", s.Name),
				slog.Int("correct", s.Correct),
				slog.Int("total", s.Total),
				slog.Int("skipped", s.Skipped),
			)
		}
	}
	return report, nil
}

func score(e *embeddings.Embeddings, inst Instance) (Prediction, error) {
	p := Prediction{Instance: inst}

	if _, ok := e.Vocab().WordIndex(inst.BStar); !ok {
		p.Skipped = true
		return p, nil
	}

	target, err := e.AnalogyTarget(inst.A, inst.AStar, inst.B)
	if err != nil {
		var le *model.LookupError
		if errors.As(err, &le) {
			p.Missing = le.Words
			return p, nil
		}
		return p, err
	}

	answer, _ := e.Embedding(inst.BStar)
	p.Cosine = distance.Cosine(target, answer)

	res, err := e.Similar(target, 1, e.WithExcludeWords(inst.A, inst.AStar, inst.B))
	if err != nil {
		return p, err
	}
	if len(res) > 0 {
		p.Predicted = res[0].Word
		p.Correct = p.Predicted == inst.BStar
	}
	return p, nil
}

// merge tallies predictions in input order; sections keep first-seen order.
func merge(predictions []Prediction) *Report {
	r := &Report{Predictions: predictions}
	index := map[string]int{}

	for _, p := range predictions {
		si, ok := index[p.Section]
		if !ok {
			si = len(r.Sections)
			index[p.Section] = si
			r.Sections = append(r.Sections, SectionResult{Name: p.Section})
		}
		s := &r.Sections[si]

		if p.Skipped {
			s.Skipped++
			r.Skipped++
			continue
		}
		s.Total++
		r.Total++
		if p.Correct {
			s.Correct++
			r.Correct++
		}
		if p.Missing == nil {
			s.cosineSum += float64(p.Cosine)
			s.cosineCount++
		}
	}

	for i := range r.Sections {
		s := &r.Sections[i]
		if s.cosineCount > 0 {
			s.AvgCosine = s.cosineSum / float64(s.cosineCount)
		}
	}
	return r
}
