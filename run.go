package kmertop

import (
	"math"
	"os"

	"github.com/jcalabro/kmertop/filter"
	"github.com/ledgerwatch/log/v3"
	"github.com/pkg/errors"
)

// GiB is the number of bits in a gibibyte, the unit budgets are usually
// given in.
const GiB uint64 = 8 << 30

const (
	// DefaultFPRate is the default membership filter error rate.
	DefaultFPRate = 1e-3
	// DefaultDiskBits is the default disk budget, 25 GiB.
	DefaultDiskBits = 25 * GiB
	// DefaultMemoryBits is the default memory budget, 4 GiB.
	DefaultMemoryBits = 4 * GiB
)

// Options configures a run.
type Options struct {
	// K is the token length.
	K int
	// N is the number of records to report.
	N int
	// FPRate is the membership filter error rate, in [0, 1).
	FPRate float64

	// DiskBits and MemoryBits are the run's budgets.
	DiskBits   uint64
	MemoryBits uint64

	// Alphabet is the number of distinct symbols in sequences.
	Alphabet int
	// TokenOverhead overrides the planner's per-token memory overhead in
	// bytes. Zero means DefaultTokenOverhead.
	TokenOverhead int

	// WorkDir is where the run's scratch directory is created. Empty
	// means the system temporary directory.
	WorkDir string
	// FilterKind selects the membership filter implementation.
	FilterKind filter.Kind
	// MappedFilter keeps blocked filters in memory-mapped scratch files.
	MappedFilter bool
	// Codec encodes partition files.
	Codec Codec

	// Observer, if set, is told about the run's progress.
	Observer Observer
	// Logger receives debug records. Nil discards them.
	Logger log.Logger
}

// DefaultOptions returns options with every field but K and N set to its
// default.
func DefaultOptions() Options {
	return Options{
		FPRate:     DefaultFPRate,
		DiskBits:   DefaultDiskBits,
		MemoryBits: DefaultMemoryBits,
		Alphabet:   DefaultAlphabet,
		FilterKind: filter.Blocked,
		Codec:      CodecNone,
	}
}

// Validate reports the first out-of-range option as an ErrParameter.
func (o Options) Validate() error {
	switch {
	case o.K <= 0:
		return errors.Wrapf(ErrParameter, "k must be positive, got %d", o.K)
	case o.N <= 0:
		return errors.Wrapf(ErrParameter, "n must be positive, got %d", o.N)
	case math.IsNaN(o.FPRate) || o.FPRate < 0 || o.FPRate >= 1:
		return errors.Wrapf(ErrParameter, "error rate must be in [0, 1), got %v", o.FPRate)
	case o.DiskBits == 0:
		return errors.Wrap(ErrParameter, "disk budget must be positive")
	case o.MemoryBits == 0:
		return errors.Wrap(ErrParameter, "memory budget must be positive")
	case o.Alphabet < 1:
		return errors.Wrapf(ErrParameter, "alphabet size must be positive, got %d", o.Alphabet)
	case o.TokenOverhead < 0:
		return errors.Wrapf(ErrParameter, "token overhead must not be negative, got %d", o.TokenOverhead)
	}
	if o.FilterKind != "" {
		if _, err := filter.ParseKind(string(o.FilterKind)); err != nil {
			return errors.Wrap(ErrParameter, err.Error())
		}
	}
	if o.Codec != "" {
		if _, err := ParseCodec(string(o.Codec)); err != nil {
			return errors.Wrap(ErrParameter, err.Error())
		}
	}
	return nil
}

// Result is the outcome of a run.
type Result struct {
	Plan Plan
	// Total is the number of tokens in the input.
	Total uint64
	// Records holds up to N records, highest count first, equal counts in
	// ascending token order.
	Records []Record
}

// Run finds the N most frequent k-mers of the file at path.
//
// The strategy is decided once from the input size and the budgets. Any
// failure aborts the run; scratch files created so far are removed before
// Run returns and no partial results are reported.
func Run(path string, opts Options) (res *Result, err error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = discardLogger()
	}

	src, err := OpenSource(path, opts.K)
	if err != nil {
		return nil, err
	}
	logger.Debug("input scanned", "path", src.Path(), "k", src.K(), "tokens", src.Total())

	plan, err := NewPlan(Budget{
		TotalTokens:   src.Total(),
		K:             opts.K,
		DiskBits:      opts.DiskBits,
		MemoryBits:    opts.MemoryBits,
		Alphabet:      opts.Alphabet,
		TokenOverhead: opts.TokenOverhead,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("plan decided", "strategy", plan.Strategy, "iterations", plan.Iterations,
		"partitions", plan.Partitions, "capacity", plan.FilterCapacity, "universe", plan.Universe)
	opts.Observer.emit(Event{Kind: EventPlanned, Plan: plan, Iteration: -1, Partition: -1, Tokens: src.Total()})

	fopts := filter.Options{Kind: opts.FilterKind, FPRate: opts.FPRate}

	var scratch string
	if plan.Strategy == Partitioned || opts.MappedFilter {
		scratch, err = os.MkdirTemp(opts.WorkDir, "kmertop-")
		if err != nil {
			return nil, resourceErr(err, "create scratch directory in %q", opts.WorkDir)
		}
		logger.Debug("scratch directory created", "dir", scratch)
		defer func() {
			if rerr := os.RemoveAll(scratch); rerr != nil {
				logger.Warn("failed to remove scratch directory", "dir", scratch, "err", rerr)
				if err == nil {
					res, err = nil, resourceErr(rerr, "remove scratch directory %s", scratch)
				}
				return
			}
			logger.Debug("scratch directory removed", "dir", scratch)
		}()
		if opts.MappedFilter {
			fopts.Dir = scratch
		}
	}

	var counter Counter
	switch plan.Strategy {
	case Partitioned:
		counter = &PartitionedCounter{
			Plan:     plan,
			Filter:   fopts,
			Codec:    opts.Codec,
			Dir:      scratch,
			Observer: opts.Observer,
			Logger:   logger,
		}
	default:
		fopts.Capacity = plan.FilterCapacity
		counter = &SinglePassCounter{Filter: fopts, Observer: opts.Observer, Logger: logger}
	}

	top := NewTopK(opts.N)
	if err := counter.Count(src, top); err != nil {
		return nil, err
	}
	return &Result{Plan: plan, Total: src.Total(), Records: top.Results()}, nil
}
