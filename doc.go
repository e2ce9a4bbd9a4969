// Package kmertop estimates the N most frequent k-mers of very large
// sequencing files under explicit memory and disk budgets, without ever
// holding every distinct k-mer in memory.
//
// # Input
//
// Input files are made of 4-line records: an identifier line starting with
// '@', a sequence line, a separator line starting with '+' and a quality
// line. A file breaking either marker rule is rejected as a whole. Every
// sequence line of length L yields the L-k windows starting at offsets
// 0 through L-k-1. Gzip, xz and zstd compressed files are read
// transparently.
//
// # Counting
//
// [NewPlan] decides, once per run, between two strategies:
//
// [SinglePassCounter] reads the input once. A membership filter absorbs the
// first occurrence of every k-mer, so only k-mers seen at least twice take
// a counter entry. A false positive can give a k-mer seen once a spurious
// count of 2, but a real repeat is never undercounted.
//
// [PartitionedCounter] is used when the counters would not fit in 70% of
// the memory budget. It splits k-mers by hash into iterations and, within
// each iteration, into partition files, then runs a single pass over one
// partition at a time. The input is read once per iteration.
//
// Both strategies feed a [TopK] selector, a bounded min-heap that keeps the
// best N records.
//
// # Ranking
//
// Records are ranked by count, highest first. Equal counts are ranked by
// token in ascending byte order, which makes results identical across runs
// regardless of the order counts are produced in.
//
// # Example
//
//	opts := kmertop.DefaultOptions()
//	opts.K, opts.N = 21, 10
//	res, err := kmertop.Run("reads.fastq.gz", opts)
//	if err != nil {
//		return err
//	}
//	for _, r := range res.Records {
//		fmt.Printf("%s: %d\n", r.Token, r.Count)
//	}
//
// # Errors
//
// Errors wrap one of [ErrNotFound], [ErrFormat], [ErrResource] or
// [ErrParameter]. A failed run removes its scratch files before returning.
package kmertop
