package archive

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/marmos91/esembed/pkg/bufpool"
)

const (
	// DefaultChunkSize is the copy buffer size used between cancellation checks.
	DefaultChunkSize = 64 << 10

	// DefaultMaxNameLength bounds the name field so a garbage length cannot
	// trigger a huge allocation.
	DefaultMaxNameLength = 64 << 10
)

// Entry is the header of one archive record.
type Entry struct {
	Name string // relative, '/' separated
	Size int64  // declared content length
}

// IsDir reports whether the entry denotes a directory (trailing '/' and no
// content).
func (e Entry) IsDir() bool {
	return e.Size == 0 && strings.HasSuffix(e.Name, "/")
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithChunkSize sets the copy chunk size. Values <= 0 keep the default.
func WithChunkSize(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// WithMaxNameLength bounds the accepted name length.
func WithMaxNameLength(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.maxName = n
		}
	}
}

// Reader decodes records sequentially. It is not safe for concurrent use.
type Reader struct {
	r         io.Reader
	offset    int64
	cur       Entry
	remaining int64
	err       error

	chunkSize int
	maxName   int
}

// NewReader returns a Reader decoding from r.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	ar := &Reader{
		r:         r,
		chunkSize: DefaultChunkSize,
		maxName:   DefaultMaxNameLength,
	}
	for _, opt := range opts {
		opt(ar)
	}
	return ar
}

// Offset returns the number of bytes consumed from the underlying stream.
func (r *Reader) Offset() int64 { return r.offset }

// Next advances to the next record, discarding any unread content of the
// current one. It returns found=false with a nil error when the stream ends
// cleanly at a record boundary. Any other short read is a *CorruptError.
// Once Next returns an error every later call returns the same error.
func (r *Reader) Next() (Entry, bool, error) {
	if r.err != nil {
		return Entry{}, false, r.err
	}
	if r.remaining > 0 {
		n, err := io.CopyN(io.Discard, r.r, r.remaining)
		r.offset += n
		r.remaining -= n
		if err != nil {
			return Entry{}, false, r.fail(r.short(r.cur.Name, "truncated content while skipping", err))
		}
	}
	r.cur = Entry{}

	var hdr [4]byte
	n, err := io.ReadFull(r.r, hdr[:])
	r.offset += int64(n)
	switch {
	case errors.Is(err, io.EOF):
		return Entry{}, false, nil
	case err != nil:
		return Entry{}, false, r.fail(r.short("", "truncated name length", err))
	}
	nameLen := int32(binary.LittleEndian.Uint32(hdr[:]))
	if nameLen < 0 || int(nameLen) > r.maxName {
		return Entry{}, false, r.fail(r.corrupt("", "invalid name length", nil))
	}

	name := make([]byte, nameLen)
	n, err = io.ReadFull(r.r, name)
	r.offset += int64(n)
	if err != nil {
		return Entry{}, false, r.fail(r.short("", "truncated name", err))
	}
	if !utf8.Valid(name) {
		return Entry{}, false, r.fail(r.corrupt("", "name is not valid UTF-8", nil))
	}
	entryName := strings.ReplaceAll(string(name), `\`, "/")

	n, err = io.ReadFull(r.r, hdr[:])
	r.offset += int64(n)
	if err != nil {
		return Entry{}, false, r.fail(r.short(entryName, "truncated content length", err))
	}
	size := int32(binary.LittleEndian.Uint32(hdr[:]))
	if size < 0 {
		return Entry{}, false, r.fail(r.corrupt(entryName, "negative content length", nil))
	}

	r.cur = Entry{Name: entryName, Size: int64(size)}
	r.remaining = int64(size)
	return r.cur, true, nil
}

// Read reads content of the current entry and returns io.EOF at its
// declared end.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.r.Read(p)
	r.offset += int64(n)
	r.remaining -= int64(n)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF) && r.remaining == 0:
		err = nil
	default:
		err = r.fail(r.short(r.cur.Name, "truncated content", err))
	}
	return n, err
}

// ExtractToStream copies the rest of the current entry to w in chunks,
// checking ctx before each chunk. It returns the bytes written.
func (r *Reader) ExtractToStream(ctx context.Context, w io.Writer) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	if r.remaining == 0 {
		return 0, nil
	}

	buf := bufpool.Get(r.chunkSize)
	defer bufpool.Put(buf)

	var written int64
	for r.remaining > 0 {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		chunk := buf
		if int64(len(chunk)) > r.remaining {
			chunk = chunk[:r.remaining]
		}
		n, err := io.ReadFull(r.r, chunk)
		r.offset += int64(n)
		r.remaining -= int64(n)
		if n > 0 {
			wn, werr := w.Write(chunk[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			if wn < n {
				return written, io.ErrShortWrite
			}
		}
		if err != nil {
			return written, r.fail(r.short(r.cur.Name, "truncated content", err))
		}
	}
	return written, nil
}

// List reads every header from r and returns them in stream order.
func List(r io.Reader, opts ...ReaderOption) ([]Entry, error) {
	ar := NewReader(r, opts...)
	var entries []Entry
	for {
		e, ok, err := ar.Next()
		if err != nil {
			return entries, err
		}
		if !ok {
			return entries, nil
		}
		entries = append(entries, e)
	}
}

func (r *Reader) fail(err error) error {
	r.err = err
	return err
}

func (r *Reader) corrupt(entry, reason string, err error) *CorruptError {
	return &CorruptError{Offset: r.offset, Entry: entry, Reason: reason, Err: err}
}

// short classifies a failed read inside a record. Running out of input is
// corruption; any other error is an I/O failure of the underlying stream.
func (r *Reader) short(entry, reason string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return r.corrupt(entry, reason, io.ErrUnexpectedEOF)
	}
	return fmt.Errorf("archive read at offset %d: %w", r.offset, err)
}
