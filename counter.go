package kmertop

import (
	"github.com/jcalabro/kmertop/filter"
	"github.com/ledgerwatch/log/v3"
	"github.com/pkg/errors"
)

// Counter runs a counting strategy over a source, offering every counted
// record to top.
type Counter interface {
	Count(src TokenSource, top *TopK) error
}

// RepeatCounter holds counts for tokens seen at least twice.
//
// It is only correct behind a membership filter that has already absorbed
// each token's first occurrence: a token observed here for the first time
// has occurred at least twice, so it starts at 2.
type RepeatCounter map[string]uint64

// Observe records a repeat of tok: absent tokens are set to 2, present
// tokens are incremented by 1.
func (c RepeatCounter) Observe(tok []byte) {
	if n, ok := c[string(tok)]; ok {
		c[string(tok)] = n + 1
		return
	}
	c[string(tok)] = 2
}

// SinglePassCounter counts every token of a source in one in-memory pass.
//
// The first time a token is seen it only sets bits in the membership
// filter. Tokens the filter already reports present get an entry in a
// RepeatCounter. A false positive can create a spurious entry for a token
// seen once, but a real repeat is never undercounted.
type SinglePassCounter struct {
	// Filter configures the pass's membership filter; Capacity is the
	// number of distinct tokens the pass may see.
	Filter filter.Options

	Observer Observer
	Logger   log.Logger
}

// Count implements Counter.
func (c *SinglePassCounter) Count(src TokenSource, top *TopK) error {
	tokens, err := src.Open()
	if err != nil {
		return err
	}
	defer tokens.Close()

	p := pass{filter: c.Filter, observer: c.Observer, logger: c.Logger, iteration: -1, partition: -1}
	return p.run(tokens, top)
}

// CountTokenReader runs a single pass over tokens and returns up to n of
// the best counted records, best first. opts.Capacity sizes the filter.
func CountTokenReader(tokens TokenReader, n int, opts filter.Options) ([]Record, error) {
	if n <= 0 {
		return nil, errors.Wrapf(ErrParameter, "n must be positive, got %d", n)
	}
	top := NewTopK(n)
	p := pass{filter: opts, iteration: -1, partition: -1}
	if err := p.run(tokens, top); err != nil {
		return nil, err
	}
	return top.Results(), nil
}

// pass is one run of the single-pass algorithm, either over a whole
// source or over one partition file.
type pass struct {
	filter    filter.Options
	observer  Observer
	logger    log.Logger
	iteration int
	partition int
}

// run counts tokens and offers every counted record to top. The filter is
// created here and released before run returns, on every path.
func (p *pass) run(tokens TokenReader, top *TopK) (err error) {
	logger := p.logger
	if logger == nil {
		logger = discardLogger()
	}

	f, err := filter.New(p.filter)
	if err != nil {
		return resourceErr(err, "create filter for %d tokens at rate %v", p.filter.Capacity, p.filter.FPRate)
	}
	logger.Debug("filter created", "kind", p.filter.Kind, "capacity", p.filter.Capacity, "mapped", p.filter.Dir != "")
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = resourceErr(cerr, "release filter")
		}
		logger.Debug("filter released", "added", f.Count())
	}()

	p.observer.emit(Event{Kind: EventPassStart, Iteration: p.iteration, Partition: p.partition})

	counts := make(RepeatCounter)
	var n uint64
	for tokens.Next() {
		tok := tokens.Token()
		if f.Test(tok) {
			counts.Observe(tok)
		} else {
			f.Add(tok)
		}
		n++
		if n%progressInterval == 0 {
			p.observer.emit(Event{Kind: EventProgress, Iteration: p.iteration, Partition: p.partition, Tokens: n})
		}
	}
	if err := tokens.Err(); err != nil {
		return err
	}

	for tok, count := range counts {
		top.Offer(tok, count)
	}

	p.observer.emit(Event{Kind: EventPassDone, Iteration: p.iteration, Partition: p.partition, Tokens: n, Distinct: len(counts)})
	return nil
}
