package bundle

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/esembed/pkg/archive"
)

func sampleTree() fstest.MapFS {
	return fstest.MapFS{
		"bin/java":          {Data: []byte("#!/bin/sh\n")},
		"lib/modules":       {Data: bytes.Repeat([]byte("module"), 4096)},
		"conf/logging.prop": {Data: []byte("level=INFO\n")},
	}
}

func TestPackAndExtractAllCodecs(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd, CompressionGzip} {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			n, size, err := Pack(&buf, sampleTree(), c)
			require.NoError(t, err)
			assert.Equal(t, 3, n)
			assert.EqualValues(t, 10+len("level=INFO\n")+6*4096, size)

			assert.Equal(t, c, Detect(buf.Bytes()))

			src := FSSource{FS: fstest.MapFS{"b": {Data: buf.Bytes()}}, Path: "b"}
			dir := t.TempDir()
			st, err := Extract(context.Background(), src, dir, Options{ChunkSize: 512})
			require.NoError(t, err)
			assert.Equal(t, 3, st.Entries)

			got, err := os.ReadFile(filepath.Join(dir, "conf", "logging.prop"))
			require.NoError(t, err)
			assert.Equal(t, "level=INFO\n", string(got))
		})
	}
}

func TestRawBundleWithGzipLikeHeader(t *testing.T) {
	// A 35615 byte name encodes its length as 1f 8b 00 00.
	name := strings.Repeat("n", 0x8b1f)
	var buf bytes.Buffer
	w := archive.NewWriter(&buf)
	require.NoError(t, w.WriteFile(name, []byte("payload")))
	require.NoError(t, w.Close())
	require.Equal(t, []byte{0x1f, 0x8b, 0x00, 0x00}, buf.Bytes()[:4])

	assert.Equal(t, CompressionNone, Detect(buf.Bytes()))
	entries, codec, err := List(context.Background(), FSSource{FS: fstest.MapFS{"b": {Data: buf.Bytes()}}, Path: "b"})
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, codec)
	require.Len(t, entries, 1)
	assert.Equal(t, name, entries[0].Name)

	t.Run("MethodByteMatchesButStreamIsNotGzip", func(t *testing.T) {
		// Valid gzip header followed by a deflate block of reserved type.
		data := append([]byte{0x1f, 0x8b, 0x08, 0x00, 0, 0, 0, 0, 0x00, 0xff}, 0x07, 0x00, 0x01)
		rc, c, err := Decompress(bytes.NewReader(data))
		require.NoError(t, err)
		defer rc.Close()
		assert.Equal(t, CompressionNone, c)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})
}

func TestListReportsCodec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.bundle")
	_, _, err := PackDir(writeTree(t), path, CompressionZstd)
	require.NoError(t, err)

	entries, codec, err := List(context.Background(), FileSource{Path: path})
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, codec)
	require.Len(t, entries, 2)
	assert.Equal(t, "config/elasticsearch.yml", entries[0].Name)
	assert.Equal(t, "lib/server.jar", entries[1].Name)
}

func TestExtractProgress(t *testing.T) {
	var buf bytes.Buffer
	_, _, err := Pack(&buf, sampleTree(), CompressionLZ4)
	require.NoError(t, err)

	var seen []string
	src := FSSource{FS: fstest.MapFS{"b": {Data: buf.Bytes()}}, Path: "b"}
	_, err = Extract(context.Background(), src, t.TempDir(), Options{
		Progress: func(e archive.Entry) { seen = append(seen, e.Name) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bin/java", "conf/logging.prop", "lib/modules"}, seen)
}

func TestExtractCorruptBundle(t *testing.T) {
	var buf bytes.Buffer
	_, _, err := Pack(&buf, sampleTree(), CompressionNone)
	require.NoError(t, err)
	truncated := buf.Bytes()[:buf.Len()-10]

	src := FSSource{FS: fstest.MapFS{"b": {Data: truncated}}, Path: "b"}
	_, err = Extract(context.Background(), src, t.TempDir(), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, archive.ErrCorrupt)
	assert.Contains(t, err.Error(), "fs:b")
}

func TestExtractMissingFile(t *testing.T) {
	_, err := Extract(context.Background(), FileSource{Path: filepath.Join(t.TempDir(), "nope")}, t.TempDir(), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{
		"": CompressionNone, "none": CompressionNone, "LZ4": CompressionLZ4,
		"zst": CompressionZstd, "zstd": CompressionZstd, "gz": CompressionGzip,
	} {
		got, err := ParseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCompression("brotli")
	assert.Error(t, err)
	assert.Equal(t, ".zst", CompressionZstd.Ext())
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://bundles/es/8.13/app.bundle")
	require.NoError(t, err)
	assert.Equal(t, "bundles", bucket)
	assert.Equal(t, "es/8.13/app.bundle", key)

	for _, bad := range []string{"s3://bucket", "s3:///key", "file:///x"} {
		_, _, err := ParseS3URI(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseSourceLocalPath(t *testing.T) {
	src, err := ParseSource(context.Background(), "/opt/bundles/jdk.bundle", S3Options{})
	require.NoError(t, err)
	assert.Equal(t, FileSource{Path: "/opt/bundles/jdk.bundle"}, src)

	_, err = ParseSource(context.Background(), "", S3Options{})
	assert.Error(t, err)
}

func TestS3SourceAndUpload(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}

	var buf bytes.Buffer
	_, _, err := Pack(&buf, sampleTree(), CompressionGzip)
	require.NoError(t, err)
	require.NoError(t, Upload(context.Background(), fake, "bundles", "app.bundle", &buf))

	src := S3Source{Client: fake, Bucket: "bundles", Key: "app.bundle"}
	assert.Equal(t, "s3://bundles/app.bundle", src.String())

	st, err := Extract(context.Background(), src, t.TempDir(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, st.Entries)

	_, err = S3Source{Client: fake, Bucket: "bundles", Key: "missing"}.Open(context.Background())
	assert.ErrorIs(t, err, errNoSuchKey)
}

func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "elasticsearch.yml"), []byte("a: b\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "server.jar"), []byte("jar"), 0o644))
	return dir
}

var errNoSuchKey = errors.New("no such key")

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errNoSuchKey
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}
