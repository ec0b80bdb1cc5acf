package runner

import (
	"context"
	"time"

	"github.com/gridops/meterbot/internal/logging"
	"github.com/gridops/meterbot/internal/model"
)

// Notifier tells operators which programs failed.
type Notifier interface {
	NotifyFailures(ctx context.Context, programs []string) error
}

// Recorder persists cycle outcomes.
type Recorder interface {
	Record(ctx context.Context, cycleID string, outcomes []model.Outcome) error
}

// Observer receives cycle outcomes for metrics.
type Observer interface {
	Observe(outcomes []model.Outcome, started, finished time.Time)
	Flush() error
}

// CycleResult summarizes one run over all enabled programs.
type CycleResult struct {
	ID       string
	Outcomes []model.Outcome
	Failed   model.FailureSet
}

// Cycle runs the enabled programs strictly one after another, then notifies
// once if any failed. Notifier, History and Metrics are optional.
type Cycle struct {
	Runner     *Runner
	Programs   []model.ProgramID
	Notifier   Notifier
	History    Recorder
	Metrics    Observer
	NewID      func() string
	SkipNotify bool
	Log        *logging.Logger
}

// Execute runs one cycle. A cancelled ctx stops before the next program;
// programs not started are not reported.
func (c *Cycle) Execute(ctx context.Context) (CycleResult, error) {
	res := CycleResult{}
	if c.NewID != nil {
		res.ID = c.NewID()
	}
	started := c.Runner.now()
	c.Log.Infof("start automation cycle=%s programs=%v", res.ID, c.Programs)

	for _, p := range c.Programs {
		if err := ctx.Err(); err != nil {
			c.Log.Warnf("cycle=%s cancelled before %s", res.ID, p)
			c.finish(ctx, &res, started)
			return res, err
		}
		out, err := c.Runner.Run(ctx, p)
		if err != nil {
			return res, err
		}
		res.Outcomes = append(res.Outcomes, out)
		if !out.Success {
			res.Failed.Add(p)
		}
	}
	c.finish(ctx, &res, started)

	if res.Failed.Empty() {
		c.Log.Infof("cycle=%s all programs succeeded", res.ID)
		return res, nil
	}
	c.Log.Warnf("cycle=%s failed programs=%v", res.ID, res.Failed.Names())
	switch {
	case c.SkipNotify:
		c.Log.Infof("notification skipped")
	case c.Notifier != nil:
		if err := c.Notifier.NotifyFailures(ctx, res.Failed.Names()); err != nil {
			c.Log.Errorf("notify: %v", err)
		}
	}
	return res, nil
}

func (c *Cycle) finish(ctx context.Context, res *CycleResult, started time.Time) {
	finished := c.Runner.now()
	if c.History != nil {
		// History survives cancellation of the cycle itself.
		if err := c.History.Record(context.WithoutCancel(ctx), res.ID, res.Outcomes); err != nil {
			c.Log.Warnf("record history: %v", err)
		}
	}
	if c.Metrics != nil {
		c.Metrics.Observe(res.Outcomes, started, finished)
		if err := c.Metrics.Flush(); err != nil {
			c.Log.Warnf("flush metrics: %v", err)
		}
	}
}
