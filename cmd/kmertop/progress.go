package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jcalabro/kmertop"
	"github.com/ledgerwatch/log/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// progress renders run events as progress bars: one over the input for
// each pass or shard phase, and one over the partitions of each
// iteration's count phase.
type progress struct {
	pbs    *mpb.Progress
	bar    *mpb.Bar
	logger log.Logger

	plan  kmertop.Plan
	total uint64
	start time.Time
}

func newProgress(w io.Writer, logger log.Logger) *progress {
	return &progress{
		pbs:    mpb.New(mpb.WithWidth(40), mpb.WithOutput(w)),
		logger: logger,
	}
}

func (p *progress) observe(e kmertop.Event) {
	switch e.Kind {
	case kmertop.EventPlanned:
		p.plan, p.total = e.Plan, e.Tokens
		p.logger.Info("selected strategy", "strategy", e.Plan.Strategy, "tokens", e.Tokens,
			"iterations", e.Plan.Iterations, "partitions", e.Plan.Partitions)

	case kmertop.EventShardStart:
		p.begin(fmt.Sprintf("iteration %d/%d shard", e.Iteration+1, p.plan.Iterations), p.total)

	case kmertop.EventShardDone:
		p.finish(p.total)
		p.logger.Info("sharded", "iteration", e.Iteration, "tokens", e.Tokens, "took", p.took())
		p.begin(fmt.Sprintf("iteration %d/%d count", e.Iteration+1, p.plan.Iterations), p.plan.Partitions)

	case kmertop.EventPassStart:
		if e.Partition < 0 {
			p.begin("count", p.total)
		}

	case kmertop.EventProgress:
		if e.Partition < 0 && p.bar != nil {
			p.bar.SetCurrent(int64(e.Tokens))
		}

	case kmertop.EventPassDone:
		if e.Partition < 0 {
			p.finish(e.Tokens)
			p.logger.Info("counted", "tokens", e.Tokens, "repeated", e.Distinct, "took", p.took())
			return
		}
		if p.bar != nil {
			p.bar.Increment()
		}
		if uint64(e.Partition)+1 == p.plan.Partitions {
			p.finish(p.plan.Partitions)
			p.logger.Info("counted partitions", "iteration", e.Iteration, "took", p.took())
		}
	}
}

func (p *progress) begin(name string, total uint64) {
	if p.bar != nil {
		p.bar.Abort(false)
	}
	p.start = time.Now()
	p.bar = p.pbs.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(name+": ", decor.WC{W: len(name) + 2, C: decor.DindentRight}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.OnComplete(decor.Name(""), ". done"),
		),
	)
}

// finish completes the current bar at count done.
func (p *progress) finish(done uint64) {
	if p.bar == nil {
		return
	}
	p.bar.SetCurrent(int64(done))
	p.bar.SetTotal(-1, true)
	p.bar = nil
}

func (p *progress) took() time.Duration {
	return time.Since(p.start).Round(time.Millisecond)
}

// close drops an unfinished bar and waits for rendering to stop.
func (p *progress) close() {
	if p.bar != nil {
		p.bar.Abort(false)
		p.bar = nil
	}
	p.pbs.Wait()
}
