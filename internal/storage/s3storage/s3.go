package s3storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/storage"
)

// API подмножество клиента S3, которое использует Store
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	PublicURL string
	AccessKey string
	SecretKey string
}

// Store реализует storage.Backend поверх S3-совместимого бакета.
// Объекты лежат по пути {prefix}/{namespace}/{key}.
type Store struct {
	client    API
	bucket    string
	prefix    string
	publicURL string

	mu      sync.Mutex
	checked map[string]bool
}

var _ storage.Backend = (*Store)(nil)

func New(client API, bucket, prefix, publicURL string) *Store {
	return &Store{
		client:    client,
		bucket:    bucket,
		prefix:    prefix,
		publicURL: publicURL,
		checked:   make(map[string]bool),
	}
}

// NewFromOptions собирает клиент AWS из опций. Статические ключи используются, только если заданы оба.
func NewFromOptions(ctx context.Context, opts Options) (*Store, error) {
	const op = "storage.s3storage.NewFromOptions"

	if opts.Bucket == "" {
		return nil, fmt.Errorf("%s: bucket is required", op)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := opts.PublicURL
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.amazonaws.com", opts.Bucket)
	}

	return New(client, opts.Bucket, opts.Prefix, publicURL), nil
}

func (s *Store) objectKey(key, namespace string) string {
	return path.Join(s.prefix, namespace, key)
}

func (s *Store) EnsureNamespace(ctx context.Context, namespace string) error {
	const op = "storage.s3storage.EnsureNamespace"

	if err := storage.ValidateNamespace(namespace); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	done := s.checked[namespace]
	s.mu.Unlock()
	if done {
		return nil
	}

	// Префиксы создавать не нужно, достаточно доступности бакета
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("%s: bucket %q: %w", op, s.bucket, err)
	}

	s.mu.Lock()
	s.checked[namespace] = true
	s.mu.Unlock()

	return nil
}

// Put буферизует тело: SDK нужен reader с Seek и известной длиной
func (s *Store) Put(ctx context.Context, r io.Reader, nameHint, namespace string) (string, error) {
	const op = "storage.s3storage.Put"

	if err := storage.ValidateNamespace(namespace); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%s: failed to read body: %w", op, err)
	}

	key := storage.NewKey(nameHint)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(key, namespace)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return key, nil
}

func (s *Store) Delete(ctx context.Context, key, namespace string) error {
	const op = "storage.s3storage.Delete"

	if err := storage.ValidateKey(key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key, namespace)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) URLFor(key, namespace string) string {
	u, err := url.JoinPath(s.publicURL, s.objectKey(key, namespace))
	if err != nil {
		return s.publicURL + "/" + s.objectKey(key, namespace)
	}

	return u
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}

	return false
}
