// Command kmertop prints the most frequent k-mers of a FASTQ file.
//
//	kmertop -f reads.fq -k 21 -n 25
//
// Small inputs are counted in one pass behind a bloom filter. When the
// memory budget is too small for that, tokens are first sharded to
// partition files on disk and each partition is counted on its own.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jcalabro/kmertop"
	"github.com/pkg/errors"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line args and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return exitOK
	}

	fmt.Fprintln(stderr, "error:", err)
	var ue *usageError
	if errors.As(err, &ue) || errors.Is(err, kmertop.ErrParameter) {
		return exitUsage
	}
	return exitError
}

// usageError marks a bad command line or config file.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{errors.Errorf(format, args...)}
}
