package bundle

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Source yields the compressed bytes of one bundle.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// FileSource reads a bundle from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) Open(context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open bundle %s: %w", s.Path, err)
	}
	return f, nil
}

func (s FileSource) String() string { return s.Path }

// FSSource reads a bundle from an fs.FS such as an embed.FS.
type FSSource struct {
	FS   fs.FS
	Path string
}

func (s FSSource) Open(context.Context) (io.ReadCloser, error) {
	f, err := s.FS.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open embedded bundle %s: %w", s.Path, err)
	}
	return f, nil
}

func (s FSSource) String() string { return "fs:" + s.Path }

// S3API is the subset of the S3 client used for bundles.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Source streams a bundle from an S3-compatible object store.
type S3Source struct {
	Client S3API
	Bucket string
	Key    string
}

func (s S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s, err)
	}
	return out.Body, nil
}

func (s S3Source) String() string { return "s3://" + s.Bucket + "/" + s.Key }

// S3Options configures the client built for s3:// URIs.
type S3Options struct {
	Region          string
	Endpoint        string // custom endpoint, e.g. MinIO or localstack
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client builds a client from the default AWS chain, overridden by opts.
// A custom endpoint switches to path-style addressing.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if opts.Endpoint != "" {
		return s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}), nil
	}
	return s3.NewFromConfig(cfg), nil
}

// ParseS3URI splits s3://bucket/key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parse %q: %w", uri, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("%q is not an s3:// URI", uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%q: want s3://bucket/key", uri)
	}
	return u.Host, key, nil
}

// IsS3URI reports whether uri uses the s3 scheme.
func IsS3URI(uri string) bool {
	return strings.HasPrefix(uri, "s3://")
}

// ParseSource maps a location to a Source: s3://bucket/key becomes an
// S3Source, anything else is a local path.
func ParseSource(ctx context.Context, uri string, opts S3Options) (Source, error) {
	if uri == "" {
		return nil, fmt.Errorf("empty bundle location")
	}
	if !IsS3URI(uri) {
		return FileSource{Path: uri}, nil
	}
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	client, err := NewS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	return S3Source{Client: client, Bucket: bucket, Key: key}, nil
}

// Upload stores body at s3://bucket/key.
func Upload(ctx context.Context, client S3API, bucket, key string, body io.Reader) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
