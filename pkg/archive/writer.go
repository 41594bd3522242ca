package archive

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"path"
	"strings"
)

// Writer encodes records. Call Close to flush; it does not close the
// underlying writer.
type Writer struct {
	w       *bufio.Writer
	err     error
	entries int
	bytes   int64
}

// NewWriter returns a Writer encoding to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, DefaultChunkSize)}
}

// WriteEntry writes a record whose content is exactly size bytes read from r.
func (w *Writer) WriteEntry(name string, r io.Reader, size int64) error {
	if w.err != nil {
		return w.err
	}
	name = strings.ReplaceAll(name, `\`, "/")
	if len(name) > math.MaxInt32 {
		return w.fail(fmt.Errorf("entry name too long: %d bytes", len(name)))
	}
	if size < 0 || size > math.MaxInt32 {
		return w.fail(fmt.Errorf("entry %q: size %d out of range", name, size))
	}

	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(name)))
	if _, err := w.w.Write(hdr[:]); err != nil {
		return w.fail(err)
	}
	if _, err := w.w.WriteString(name); err != nil {
		return w.fail(err)
	}
	binary.LittleEndian.PutUint32(hdr[:], uint32(size))
	if _, err := w.w.Write(hdr[:]); err != nil {
		return w.fail(err)
	}

	n, err := io.CopyN(w.w, r, size)
	w.bytes += n
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("entry %q: source ended after %d of %d bytes", name, n, size)
		}
		return w.fail(err)
	}
	w.entries++
	return nil
}

// WriteFile writes a record holding data.
func (w *Writer) WriteFile(name string, data []byte) error {
	return w.WriteEntry(name, bytes.NewReader(data), int64(len(data)))
}

// WriteDir writes an empty directory record.
func (w *Writer) WriteDir(name string) error {
	if !strings.HasSuffix(name, "/") {
		name += "/"
	}
	return w.WriteEntry(name, strings.NewReader(""), 0)
}

// AddFS writes every regular file of fsys in lexical walk order. Empty
// directories are written as directory records so they survive a round trip.
func (w *Writer) AddFS(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if name == "." {
			return nil
		}
		if d.IsDir() {
			children, err := fs.ReadDir(fsys, name)
			if err != nil {
				return err
			}
			if len(children) == 0 {
				return w.WriteDir(path.Clean(name))
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		f, err := fsys.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		return w.WriteEntry(name, f, info.Size())
	})
}

// Entries returns the number of records written so far.
func (w *Writer) Entries() int { return w.entries }

// Bytes returns the number of content bytes written so far.
func (w *Writer) Bytes() int64 { return w.bytes }

// Close flushes buffered records.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	return w.fail(w.w.Flush())
}

func (w *Writer) fail(err error) error {
	if err != nil && w.err == nil {
		w.err = err
	}
	return err
}
