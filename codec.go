package kmertop

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Codec selects how partition files are encoded on disk. Every codec
// stores the same newline-separated tokens; only the bytes on disk differ.
type Codec string

const (
	// CodecNone writes tokens as plain text.
	CodecNone Codec = "none"
	// CodecSnappy writes a snappy framed stream.
	CodecSnappy Codec = "snappy"
	// CodecZstd writes a zstd stream.
	CodecZstd Codec = "zstd"
)

// Codecs lists every supported Codec.
var Codecs = []Codec{CodecNone, CodecSnappy, CodecZstd}

// partitionBufferSize is the write buffer for each plain partition file.
const partitionBufferSize = 64 * 1024

// ParseCodec converts a name into a Codec.
func ParseCodec(s string) (Codec, error) {
	for _, c := range Codecs {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown codec %q (valid: %v)", s, Codecs)
}

// encoder wraps a partition file for writing. close flushes buffered data
// but leaves the file open.
type encoder interface {
	io.Writer
	close() error
}

type bufioEncoder struct{ *bufio.Writer }

func (e bufioEncoder) close() error { return e.Flush() }

type snappyEncoder struct{ *snappy.Writer }

func (e snappyEncoder) close() error { return e.Close() }

type zstdEncoder struct{ *zstd.Encoder }

func (e zstdEncoder) close() error { return e.Close() }

func (c Codec) newEncoder(w io.Writer) (encoder, error) {
	switch c {
	case CodecNone, "":
		return bufioEncoder{bufio.NewWriterSize(w, partitionBufferSize)}, nil
	case CodecSnappy:
		return snappyEncoder{snappy.NewBufferedWriter(w)}, nil
	case CodecZstd:
		// Many partitions are open at once, so each encoder stays small.
		enc, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.SpeedFastest),
			zstd.WithEncoderConcurrency(1),
			zstd.WithWindowSize(1<<20),
		)
		if err != nil {
			return nil, err
		}
		return zstdEncoder{enc}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", c)
	}
}

// newDecoder wraps a partition file for reading. The returned function
// releases decoder state but not the file.
func (c Codec) newDecoder(r io.Reader) (io.Reader, func(), error) {
	switch c {
	case CodecNone, "":
		return r, func() {}, nil
	case CodecSnappy:
		return snappy.NewReader(r), func() {}, nil
	case CodecZstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, err
		}
		return dec, dec.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown codec %q", c)
	}
}

// partitionWriter appends tokens to one partition file.
type partitionWriter struct {
	path string
	file *os.File
	enc  encoder
}

func createPartition(path string, codec Codec) (*partitionWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	enc, err := codec.newEncoder(f)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	return &partitionWriter{path: path, file: f, enc: enc}, nil
}

var newline = []byte{'\n'}

func (w *partitionWriter) write(tok []byte) error {
	if _, err := w.enc.Write(tok); err != nil {
		return err
	}
	_, err := w.enc.Write(newline)
	return err
}

// close flushes the encoder and closes the file, reporting the first error.
func (w *partitionWriter) close() error {
	err := w.enc.close()
	if cerr := w.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// scanRecords splits partition data at '\n' only. Unlike bufio.ScanLines
// it keeps a trailing '\r', which is a valid token byte.
func scanRecords(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// partitionReader yields the tokens of one partition file.
type partitionReader struct {
	path    string
	file    *os.File
	release func()
	sc      *bufio.Scanner
	err     error
}

func openPartition(path string, codec Codec) (*partitionReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, release, err := codec.newDecoder(bufio.NewReaderSize(f, partitionBufferSize))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	sc.Split(scanRecords)
	return &partitionReader{path: path, file: f, release: release, sc: sc}, nil
}

func (r *partitionReader) Next() bool {
	if r.sc.Scan() {
		return true
	}
	if err := r.sc.Err(); err != nil {
		r.err = resourceErr(err, "read partition %s", r.path)
	}
	return false
}

func (r *partitionReader) Token() []byte { return r.sc.Bytes() }

func (r *partitionReader) Err() error { return r.err }

func (r *partitionReader) Close() error {
	r.release()
	return r.file.Close()
}
