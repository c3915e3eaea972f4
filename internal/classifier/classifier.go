package classifier

import "context"

// Result holds candidate labels ranked by descending score.
type Result struct {
	Labels []string
	Scores []float64
}

// Top returns the highest-ranked label.
func (r Result) Top() (string, float64, bool) {
	if len(r.Labels) == 0 {
		return "", 0, false
	}
	best := 0
	for i := 1; i < len(r.Labels) && i < len(r.Scores); i++ {
		if r.Scores[i] > r.Scores[best] {
			best = i
		}
	}
	score := 0.0
	if len(r.Scores) > best {
		score = r.Scores[best]
	}
	return r.Labels[best], score, true
}

// ZeroShot ranks text against free-form candidate labels.
type ZeroShot interface {
	Classify(ctx context.Context, text string, labels []string) (Result, error)
}
