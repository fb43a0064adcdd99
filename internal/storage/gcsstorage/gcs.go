package gcsstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	objstore "github.com/lebowvsky/atelier-kaisla-sub001/internal/storage"
)

type Options struct {
	Bucket          string
	Prefix          string
	PublicURL       string
	CredentialsFile string
}

// Store реализует storage.Backend поверх бакета Google Cloud Storage
type Store struct {
	client    *storage.Client
	bucket    string
	prefix    string
	publicURL string

	mu      sync.Mutex
	checked map[string]bool
}

var _ objstore.Backend = (*Store)(nil)

func New(ctx context.Context, opts Options) (*Store, error) {
	const op = "storage.gcsstorage.New"

	if opts.Bucket == "" {
		return nil, fmt.Errorf("%s: bucket is required", op)
	}

	clientOpts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create storage client: %w", op, err)
	}

	publicURL := opts.PublicURL
	if publicURL == "" {
		publicURL = "https://storage.googleapis.com/" + opts.Bucket
	}

	return &Store{
		client:    client,
		bucket:    opts.Bucket,
		prefix:    opts.Prefix,
		publicURL: publicURL,
		checked:   make(map[string]bool),
	}, nil
}

func (s *Store) objectName(key, namespace string) string {
	return path.Join(s.prefix, namespace, key)
}

func (s *Store) EnsureNamespace(ctx context.Context, namespace string) error {
	const op = "storage.gcsstorage.EnsureNamespace"

	if err := objstore.ValidateNamespace(namespace); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	done := s.checked[namespace]
	s.mu.Unlock()
	if done {
		return nil
	}

	if _, err := s.client.Bucket(s.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("%s: bucket %q: %w", op, s.bucket, err)
	}

	s.mu.Lock()
	s.checked[namespace] = true
	s.mu.Unlock()

	return nil
}

func (s *Store) Put(ctx context.Context, r io.Reader, nameHint, namespace string) (string, error) {
	const op = "storage.gcsstorage.Put"

	if err := objstore.ValidateNamespace(namespace); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	key := objstore.NewKey(nameHint)

	w := s.client.Bucket(s.bucket).Object(s.objectName(key, namespace)).NewWriter(ctx)
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("%s: failed to write data to GCS: %w", op, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%s: failed to close GCS writer: %w", op, err)
	}

	return key, nil
}

func (s *Store) Delete(ctx context.Context, key, namespace string) error {
	const op = "storage.gcsstorage.Delete"

	if err := objstore.ValidateKey(key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := s.client.Bucket(s.bucket).Object(s.objectName(key, namespace)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) URLFor(key, namespace string) string {
	u, err := url.JoinPath(s.publicURL, s.objectName(key, namespace))
	if err != nil {
		return s.publicURL + "/" + s.objectName(key, namespace)
	}

	return u
}

func (s *Store) Close() error {
	return s.client.Close()
}
