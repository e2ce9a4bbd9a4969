package kmertop

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

const (
	// idMarker starts the first line of every record.
	idMarker = '@'
	// sepMarker starts the third line of every record.
	sepMarker = '+'
	// maxLineSize bounds a single line, long reads included.
	maxLineSize = 64 << 20
)

// TokenReader yields the k-mers of one pass over a stream, in stream order.
// It is single-use: once Next returns false the reader is exhausted.
type TokenReader interface {
	// Next advances to the next token and reports whether there is one.
	Next() bool
	// Token returns the current token. The slice is only valid until the
	// next call to Next.
	Token() []byte
	// Err returns the first read error, if any.
	Err() error
	// Close releases the underlying file.
	Close() error
}

// TokenSource can be opened any number of times, each open producing every
// token exactly once in stream order.
type TokenSource interface {
	Open() (TokenReader, error)
}

// Source streams the k-mers of a file made of 4-line records: an
// identifier line starting with '@', a sequence line, a separator line
// starting with '+' and a quality line. Only sequence lines produce
// tokens. Compressed files are read transparently.
type Source struct {
	path  string
	k     int
	total uint64
}

// OpenSource validates the file at path and counts its k-mers.
//
// It fails with ErrNotFound if path does not name a regular file and with
// ErrFormat if the file breaks the record layout or holds no k-mers.
func OpenSource(path string, k int) (*Source, error) {
	if k <= 0 {
		return nil, errors.Wrapf(ErrParameter, "k must be positive, got %d", k)
	}
	if path == "-" {
		return nil, errors.Wrap(ErrParameter, "input must be a file: it is read once per pass")
	}
	if err := checkFile(path); err != nil {
		return nil, err
	}

	total, problem, err := scanTotal(path, k)
	if err != nil {
		return nil, err
	}
	if problem != "" {
		return nil, errors.Wrapf(ErrFormat, "%s: %s", path, problem)
	}
	if total == 0 {
		return nil, errors.Wrapf(ErrFormat, "%s: no sequence line is longer than k=%d", path, k)
	}
	return &Source{path: path, k: k, total: total}, nil
}

// CountTokens returns the number of k-mers in the file at path, or 0 if
// the file is not a valid 4-line record file. Callers must treat 0 as a
// format error rather than an empty input.
//
// It fails with ErrNotFound if path does not name a regular file.
func CountTokens(path string, k int) (uint64, error) {
	if err := checkFile(path); err != nil {
		return 0, err
	}
	total, problem, err := scanTotal(path, k)
	if err != nil || problem != "" {
		return 0, err
	}
	return total, nil
}

// checkFile fails with ErrNotFound unless path names an existing file.
func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(ErrNotFound, "file %s: %v", path, err)
	}
	if info.IsDir() {
		return errors.Wrapf(ErrNotFound, "file %s is a directory", path)
	}
	return nil
}

// scanTotal reads the whole file, checking record markers and summing
// max(0, len(seq)-k) over sequence lines. A marker violation is returned
// as a description in problem.
func scanTotal(path string, k int) (total uint64, problem string, err error) {
	// xopen refuses empty files; they simply hold no tokens.
	if info, serr := os.Stat(path); serr == nil && info.Size() == 0 {
		return 0, "", nil
	}
	r, err := xopen.Ropen(path)
	if err != nil {
		return 0, "", resourceErr(err, "open %s", path)
	}
	defer r.Close()

	sc := newLineScanner(r)
	for line := 0; sc.Scan(); line++ {
		text := sc.Bytes()
		switch line % 4 {
		case 0:
			if len(text) == 0 || text[0] != idMarker {
				return 0, fmt.Sprintf("line %d does not start with %q", line+1, idMarker), nil
			}
		case 1:
			if n := len(trimCR(text)) - k; n > 0 {
				total += uint64(n)
			}
		case 2:
			if len(text) == 0 || text[0] != sepMarker {
				return 0, fmt.Sprintf("line %d does not start with %q", line+1, sepMarker), nil
			}
		}
	}
	if err := sc.Err(); err != nil {
		return 0, "", resourceErr(err, "read %s", path)
	}
	return total, "", nil
}

// Path returns the file the source reads.
func (s *Source) Path() string { return s.path }

// K returns the token length.
func (s *Source) K() int { return s.k }

// Total returns the number of tokens a pass produces.
func (s *Source) Total() uint64 { return s.total }

// Open starts a new pass over the file.
func (s *Source) Open() (TokenReader, error) {
	r, err := xopen.Ropen(s.path)
	if err != nil {
		return nil, resourceErr(err, "reopen %s", s.path)
	}
	return &sourceReader{r: r, sc: newLineScanner(r), k: s.k, path: s.path}, nil
}

// sourceReader slides a k-wide window over each sequence line.
type sourceReader struct {
	r    *xopen.Reader
	sc   *bufio.Scanner
	path string
	k    int
	line int    // index of the next line to scan
	seq  []byte // current sequence line
	pos  int    // start of the next window in seq
	tok  []byte
	err  error
}

func (s *sourceReader) Next() bool {
	for {
		if s.pos < len(s.seq)-s.k {
			s.tok = s.seq[s.pos : s.pos+s.k]
			s.pos++
			return true
		}
		if !s.sc.Scan() {
			if err := s.sc.Err(); err != nil {
				s.err = resourceErr(err, "read %s", s.path)
			}
			s.seq, s.tok = nil, nil
			return false
		}
		idx := s.line
		s.line++
		if idx%4 == 1 {
			s.seq = trimCR(s.sc.Bytes())
			s.pos = 0
		}
	}
}

func (s *sourceReader) Token() []byte { return s.tok }

func (s *sourceReader) Err() error { return s.err }

func (s *sourceReader) Close() error { return s.r.Close() }

func newLineScanner(r *xopen.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	return sc
}

func trimCR(line []byte) []byte {
	return bytes.TrimSuffix(line, []byte{'\r'})
}
