package report

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/riskposture/internal/history"
	"github.com/jmerrifield20/riskposture/internal/kri"
	"github.com/jmerrifield20/riskposture/internal/metrics"
	"github.com/jmerrifield20/riskposture/internal/webhooks"
)

// Trend compares a score with the previous entry of the same scope.
type Trend struct {
	PreviousScore int       `json:"previous_score"`
	PreviousGrade kri.Grade `json:"previous_grade"`
	PreviousAt    time.Time `json:"previous_at"`
	Delta         int       `json:"delta"`
	GradeChanged  bool      `json:"grade_changed"`
}

// record publishes a result to metrics, history and webhooks. Failures of
// the history store or of deliveries are logged and never fail the run.
func (r *Runner) record(ctx context.Context, runID string, res *kri.Result) Scored {
	metrics.SetScore(res.Kind, res.Scope, res.FinalScore)
	metrics.RecordDefaulted(res.Defaulted)

	out := Scored{Result: res}
	if r.history == nil {
		return out
	}

	prev, err := r.history.Latest(ctx, r.customerID, res.Kind, res.Scope)
	switch {
	case err == nil:
		out.Trend = &Trend{
			PreviousScore: prev.FinalScore,
			PreviousGrade: kri.Grade(prev.Grade),
			PreviousAt:    prev.RecordedAt,
			Delta:         res.FinalScore - prev.FinalScore,
			GradeChanged:  prev.Grade != string(res.Grade),
		}
	case errors.Is(err, history.ErrNotFound):
		// first score of this scope
	default:
		r.logger.Warn("history lookup failed", zap.String("scope", res.Scope), zap.Error(err))
	}

	_, err = r.history.Append(ctx, history.Record{
		RunID:      runID,
		CustomerID: r.customerID,
		Kind:       res.Kind,
		Scope:      res.Scope,
		FinalScore: res.FinalScore,
		Grade:      string(res.Grade),
		PeriodFrom: res.Period.From,
		PeriodTo:   res.Period.To,
	})
	if err != nil {
		r.logger.Warn("history append failed", zap.String("scope", res.Scope), zap.Error(err))
	} else {
		metrics.RecordHistoryAppend()
	}

	if out.Trend != nil {
		r.notify(ctx, runID, res, out.Trend)
	}
	return out
}

func (r *Runner) notify(ctx context.Context, runID string, res *kri.Result, t *Trend) {
	if !r.webhooks.Enabled() {
		return
	}
	payload := map[string]string{
		"run_id":         runID,
		"customer_id":    r.customerID,
		"kind":           res.Kind,
		"scope":          res.Scope,
		"score":          strconv.Itoa(res.FinalScore),
		"grade":          string(res.Grade),
		"previous_score": strconv.Itoa(t.PreviousScore),
		"previous_grade": string(t.PreviousGrade),
	}
	if t.GradeChanged {
		r.dispatch(ctx, webhooks.EventGradeChanged, payload)
	}
	if r.dropAlert > 0 && -t.Delta >= r.dropAlert {
		r.dispatch(ctx, webhooks.EventScoreDropped, payload)
	}
}

func (r *Runner) dispatch(ctx context.Context, event string, payload map[string]string) {
	for _, d := range r.webhooks.Dispatch(ctx, event, payload) {
		if !d.Success {
			r.logger.Warn("webhook not delivered",
				zap.String("event", event),
				zap.String("url", d.URL),
				zap.Int("attempts", d.Attempts),
				zap.String("error", d.Error),
			)
		}
	}
}
