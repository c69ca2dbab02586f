// Package s3 provides a read-only minor store backed by a single S3
// object, typically a disk image. Reads are served with ranged GETs.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/ndd/pkg/minor"
)

// DefaultRequestTimeout bounds a single ranged GET.
const DefaultRequestTimeout = 30 * time.Second

// Config holds configuration for the S3 store.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Key is the object holding the device image.
	Key string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the SDK default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// RequestTimeout bounds each GET. Default: DefaultRequestTimeout.
	RequestTimeout time.Duration
}

// Client is the subset of the S3 API used by the store.
type Client interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store is a read-only S3 implementation of minor.Store.
type Store struct {
	client  Client
	bucket  string
	key     string
	size    int64
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// New creates a store on an existing client. The object size is fetched
// once with HeadObject.
func New(ctx context.Context, client Client, cfg Config) (*Store, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, errors.New("s3 store: bucket and key are required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(cfg.Bucket),
		Key:    aws.String(cfg.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 head object s3://%s/%s: %w", cfg.Bucket, cfg.Key, err)
	}

	return &Store{
		client:  client,
		bucket:  cfg.Bucket,
		key:     cfg.Key,
		size:    aws.ToInt64(head.ContentLength),
		timeout: cfg.RequestTimeout,
	}, nil
}

// NewFromConfig creates an S3 client from cfg and opens the store.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return New(ctx, client, cfg)
}

// ReadAt reads len(p) bytes at off with one ranged GET. Reads past the end
// of the object return io.EOF with the bytes that were available.
func (s *Store) ReadAt(p []byte, off int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, minor.ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("s3 read: negative offset %d", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	want := p
	if remain := s.size - off; int64(len(p)) > remain {
		want = p[:remain]
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+int64(len(want))-1)),
	})
	if err != nil {
		return 0, fmt.Errorf("s3 get object range: %w", err)
	}
	defer resp.Body.Close()

	n, err := io.ReadFull(resp.Body, want)
	if err != nil {
		return n, fmt.Errorf("read s3 object body: %w", err)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt always fails: S3 images are exposed read-only.
func (s *Store) WriteAt(p []byte, off int64) (int, error) {
	return 0, minor.ErrReadOnly
}

func (s *Store) Size() int64 {
	return s.size
}

// Location returns the s3:// URL of the image.
func (s *Store) Location() string {
	return "s3://" + s.bucket + "/" + s.key
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

var _ minor.Store = (*Store)(nil)
