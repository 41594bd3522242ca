package bundle

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the stream transform wrapped around an archive.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionZstd
	CompressionGzip
)

var (
	magicLZ4  = []byte{0x04, 0x22, 0x4d, 0x18}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicGzip = []byte{0x1f, 0x8b}
)

// gzipDeflate is the only compression method byte defined for gzip.
const gzipDeflate = 8

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionGzip:
		return "gzip"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// Ext returns the conventional file suffix, including the dot.
func (c Compression) Ext() string {
	switch c {
	case CompressionLZ4:
		return ".lz4"
	case CompressionZstd:
		return ".zst"
	case CompressionGzip:
		return ".gz"
	default:
		return ""
	}
}

// ParseCompression accepts the names produced by String plus "zst" and "gz".
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "raw":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	case "gzip", "gz":
		return CompressionGzip, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression %q", name)
	}
}

// Detect inspects the leading bytes of a stream. A raw archive whose first
// name length starts with the gzip magic is told apart by the deflate method
// byte that must follow it.
func Detect(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, magicLZ4):
		return CompressionLZ4
	case bytes.HasPrefix(head, magicZstd):
		return CompressionZstd
	case bytes.HasPrefix(head, magicGzip) && len(head) > len(magicGzip) && head[len(magicGzip)] == gzipDeflate:
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// Decompress sniffs r and returns a reader producing the decoded archive
// stream. Closing the result releases the decoder but not r.
func Decompress(r io.Reader) (io.ReadCloser, Compression, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(magicLZ4))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, CompressionNone, fmt.Errorf("sniff bundle header: %w", err)
	}

	c := Detect(head)
	switch c {
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(br)), c, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, c, fmt.Errorf("zstd reader: %w", err)
		}
		return dec.IOReadCloser(), c, nil
	case CompressionGzip:
		if !decodesAsGzip(br) {
			return io.NopCloser(br), CompressionNone, nil
		}
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, c, fmt.Errorf("gzip reader: %w", err)
		}
		return gz, c, nil
	default:
		return io.NopCloser(br), c, nil
	}
}

// decodesAsGzip decodes the buffered window as a trial. Only a header or
// deflate error rules gzip out; running off the end of the window does not.
func decodesAsGzip(br *bufio.Reader) bool {
	window, _ := br.Peek(br.Size())
	gz, err := gzip.NewReader(bytes.NewReader(window))
	if err == nil {
		var one [1]byte
		_, err = gz.Read(one[:])
	}
	return err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// Compress wraps w with an encoder for c. Close flushes the encoder but
// does not close w.
func Compress(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return enc, nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", c)
	}
}
