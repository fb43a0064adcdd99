package memstorage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/storage"
)

// Store хранит объекты в памяти. Используется бэкендом "memory" и позволяет
// подставлять ошибки записи и удаления.
type Store struct {
	baseURL string

	mu         sync.Mutex
	objects    map[string][]byte
	namespaces map[string]bool
	puts       int
	deletes    int

	// FailPut вызывается перед n-й записью (нумерация с 1)
	FailPut func(n int, nameHint string) error
	// FailDelete вызывается перед каждым удалением
	FailDelete func(key string) error
}

var _ storage.Backend = (*Store)(nil)

func New(baseURL string) *Store {
	return &Store{
		baseURL:    baseURL,
		objects:    make(map[string][]byte),
		namespaces: make(map[string]bool),
	}
}

func path(key, namespace string) string {
	return namespace + "/" + key
}

func (s *Store) EnsureNamespace(ctx context.Context, namespace string) error {
	if err := storage.ValidateNamespace(namespace); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.namespaces[namespace] = true

	return nil
}

func (s *Store) Put(ctx context.Context, r io.Reader, nameHint, namespace string) (string, error) {
	const op = "storage.memstorage.Put"

	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.puts++
	n := s.puts
	fail := s.FailPut
	s.mu.Unlock()

	if fail != nil {
		if err := fail(n, nameHint); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	key := storage.NewKey(nameHint)

	s.mu.Lock()
	s.objects[path(key, namespace)] = data
	s.mu.Unlock()

	return key, nil
}

func (s *Store) Delete(ctx context.Context, key, namespace string) error {
	s.mu.Lock()
	s.deletes++
	fail := s.FailDelete
	s.mu.Unlock()

	if fail != nil {
		if err := fail(key); err != nil {
			return err
		}
	}

	s.mu.Lock()
	delete(s.objects, path(key, namespace))
	s.mu.Unlock()

	return nil
}

func (s *Store) URLFor(key, namespace string) string {
	return s.baseURL + "/" + path(key, namespace)
}

func (s *Store) Exists(key, namespace string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.objects[path(key, namespace)]
	return ok
}

// Keys возвращает отсортированные ключи пространства имен
func (s *Store) Keys(namespace string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := namespace + "/"
	var keys []string
	for p := range s.objects {
		if len(p) > len(prefix) && p[:len(prefix)] == prefix {
			keys = append(keys, p[len(prefix):])
		}
	}
	sort.Strings(keys)

	return keys
}

func (s *Store) Content(key, namespace string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[path(key, namespace)]
	return data, ok
}

func (s *Store) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.puts
}

func (s *Store) Deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deletes
}
