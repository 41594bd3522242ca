// Package bundle locates, decompresses and extracts the runtime and
// application bundles.
package bundle

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/marmos91/esembed/internal/logger"
	"github.com/marmos91/esembed/pkg/archive"
)

// Options tunes Extract.
type Options struct {
	ChunkSize int
	Progress  func(archive.Entry)
}

// Extract opens src, decompresses it and extracts the archive beneath target.
func Extract(ctx context.Context, src Source, target string, opts Options) (archive.Stats, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return archive.Stats{}, err
	}
	defer rc.Close()

	dec, codec, err := Decompress(rc)
	if err != nil {
		return archive.Stats{}, fmt.Errorf("bundle %s: %w", src, err)
	}
	defer dec.Close()

	logger.Debug("extracting bundle",
		logger.KeyBundle, src.String(),
		logger.KeyCodec, codec.String(),
		logger.KeyTarget, target)

	var extractOpts []archive.ExtractOption
	if opts.Progress != nil {
		extractOpts = append(extractOpts, archive.WithProgress(opts.Progress))
	}
	st, err := archive.NewReader(dec, archive.WithChunkSize(opts.ChunkSize)).
		ExtractToDirectory(ctx, target, extractOpts...)
	if err != nil {
		return st, fmt.Errorf("bundle %s: %w", src, err)
	}
	return st, nil
}

// List returns the entries of the bundle at src.
func List(ctx context.Context, src Source) ([]archive.Entry, Compression, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, CompressionNone, err
	}
	defer rc.Close()

	dec, codec, err := Decompress(rc)
	if err != nil {
		return nil, codec, err
	}
	defer dec.Close()

	entries, err := archive.List(dec)
	return entries, codec, err
}

// Pack encodes fsys as an archive compressed with c and writes it to w.
func Pack(w io.Writer, fsys fs.FS, c Compression) (entries int, bytes int64, err error) {
	cw, err := Compress(w, c)
	if err != nil {
		return 0, 0, err
	}
	aw := archive.NewWriter(cw)
	if err := aw.AddFS(fsys); err != nil {
		_ = cw.Close()
		return aw.Entries(), aw.Bytes(), err
	}
	if err := aw.Close(); err != nil {
		_ = cw.Close()
		return aw.Entries(), aw.Bytes(), err
	}
	return aw.Entries(), aw.Bytes(), cw.Close()
}

// PackDir packs the directory dir into the file at dest.
func PackDir(dir, dest string, c Compression) (entries int, bytes int64, err error) {
	f, err := os.Create(dest)
	if err != nil {
		return 0, 0, err
	}
	entries, bytes, err = Pack(f, os.DirFS(dir), c)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return entries, bytes, err
}
