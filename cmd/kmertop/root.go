package main

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/jcalabro/kmertop"
	"github.com/jcalabro/kmertop/filter"
	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/cobra"
)

// Filter storage modes.
const (
	storageMemory = "memory"
	storageMmap   = "mmap"
)

// Output formats.
const (
	formatText = "text"
	formatTSV  = "tsv"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	defaults := kmertop.DefaultOptions()
	s := settings{
		ErrorRate:     defaults.FPRate,
		DiskGiB:       defaults.DiskBits / kmertop.GiB,
		MemoryGiB:     defaults.MemoryBits / kmertop.GiB,
		Filter:        string(defaults.FilterKind),
		FilterStorage: storageMemory,
		Codec:         string(defaults.Codec),
		Format:        formatText,
		LogLevel:      "info",
	}

	cmd := &cobra.Command{
		Use:   "kmertop",
		Short: "Count the most frequent k-mers in a FASTQ file",
		Long: `Count the most frequent k-mers in a FASTQ file.

The input must consist of 4-line records: an identifier line starting with
'@', a sequence line, a separator line starting with '+' and a quality line.
Gzip, xz and zstd compressed inputs are read transparently.

When counting every distinct k-mer in memory would exceed 70% of the target
memory, k-mers are first sharded to partition files under the work
directory, using no more than the target disk space.

Only k-mers that occur at least twice are reported, highest count first.
`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				return &usageError{err}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if s.Config != "" {
				fc, err := loadConfig(s.Config)
				if err != nil {
					return err
				}
				fc.apply(&s, cmd.Flags().Changed)
			}
			return run(s, cmd.Flags().Changed, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})

	f := cmd.Flags()
	f.StringVarP(&s.File, "file-name", "f", s.File, "FASTQ file to process")
	f.IntVarP(&s.K, "kmer-size", "k", s.K, "length of k-mers")
	f.IntVarP(&s.N, "most-frequent", "n", s.N, "number of most frequent k-mers to print")
	f.Float64VarP(&s.ErrorRate, "error-rate", "e", s.ErrorRate, "bloom filter error rate, in [0, 1)")
	f.Uint64VarP(&s.DiskGiB, "target-disk", "d", s.DiskGiB, "target disk space in GiB")
	f.Uint64VarP(&s.MemoryGiB, "target-memory", "m", s.MemoryGiB, "target memory in GiB")
	f.BoolVarP(&s.Verbose, "verbose", "v", s.Verbose, "show progress and timing")
	f.StringVar(&s.Config, "config", s.Config, "YAML or TOML file with default flag values")
	f.StringVar(&s.WorkDir, "work-dir", s.WorkDir, "directory for scratch files (default: system temp dir)")
	f.StringVar(&s.Filter, "filter", s.Filter, "bloom filter kind: "+joinKinds())
	f.StringVar(&s.FilterStorage, "filter-storage", s.FilterStorage, "bloom filter storage: memory or mmap")
	f.StringVar(&s.Codec, "codec", s.Codec, "partition file codec: "+joinCodecs())
	f.StringVar(&s.Format, "format", s.Format, "output format: text or tsv")
	f.StringVar(&s.LogLevel, "log-level", s.LogLevel, "log level: trace, debug, info, warn, error or crit")

	return cmd
}

// options converts settings into run options.
func (s settings) options() (kmertop.Options, error) {
	opts := kmertop.DefaultOptions()
	if s.File == "" {
		return opts, usagef("--file-name is required")
	}
	if s.DiskGiB == 0 {
		return opts, usagef("--target-disk must be positive")
	}
	if s.MemoryGiB == 0 {
		return opts, usagef("--target-memory must be positive")
	}
	if s.DiskGiB > ^uint64(0)/kmertop.GiB || s.MemoryGiB > ^uint64(0)/kmertop.GiB {
		return opts, usagef("budgets must be below %d GiB", ^uint64(0)/kmertop.GiB)
	}

	kind, err := filter.ParseKind(s.Filter)
	if err != nil {
		return opts, &usageError{err}
	}
	codec, err := kmertop.ParseCodec(s.Codec)
	if err != nil {
		return opts, &usageError{err}
	}
	switch s.FilterStorage {
	case storageMemory:
	case storageMmap:
		opts.MappedFilter = true
	default:
		return opts, usagef("unknown filter storage %q (valid: %s, %s)", s.FilterStorage, storageMemory, storageMmap)
	}
	switch s.Format {
	case formatText, formatTSV:
	default:
		return opts, usagef("unknown format %q (valid: %s, %s)", s.Format, formatText, formatTSV)
	}

	opts.K = s.K
	opts.N = s.N
	opts.FPRate = s.ErrorRate
	opts.DiskBits = s.DiskGiB * kmertop.GiB
	opts.MemoryBits = s.MemoryGiB * kmertop.GiB
	opts.WorkDir = s.WorkDir
	opts.FilterKind = kind
	opts.Codec = codec
	return opts, nil
}

// logLevel resolves the log level. --verbose raises the default to debug
// unless a level was asked for explicitly.
func (s settings) logLevel(changed func(string) bool) (log.Lvl, error) {
	if s.Verbose && !changed("log-level") && s.LogLevel == "info" {
		return log.LvlDebug, nil
	}
	lvl, err := log.LvlFromString(strings.ToLower(s.LogLevel))
	if err != nil {
		return 0, usagef("unknown log level %q", s.LogLevel)
	}
	return lvl, nil
}

func newLogger(w io.Writer, lvl log.Lvl) log.Logger {
	logger := log.New()
	logger.SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(w, log.LogfmtFormat())))
	return logger
}

func run(s settings, changed func(string) bool, stdout, stderr io.Writer) error {
	opts, err := s.options()
	if err != nil {
		return err
	}
	lvl, err := s.logLevel(changed)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, lvl)
	opts.Logger = logger

	var pr *progress
	if s.Verbose {
		pr = newProgress(stderr, logger)
		opts.Observer = pr.observe
	}

	start := time.Now()
	res, err := kmertop.Run(s.File, opts)
	if pr != nil {
		pr.close()
	}
	if err != nil {
		return err
	}
	logger.Debug("done", "file", s.File, "k", opts.K, "tokens", res.Total,
		"strategy", res.Plan.Strategy, "records", len(res.Records), "took", time.Since(start).Round(time.Millisecond))

	w := bufio.NewWriter(stdout)
	if err := writeRecords(w, s.Format, res.Records); err != nil {
		return err
	}
	return w.Flush()
}

func joinKinds() string {
	names := make([]string, len(filter.Kinds))
	for i, k := range filter.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func joinCodecs() string {
	names := make([]string, len(kmertop.Codecs))
	for i, c := range kmertop.Codecs {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
