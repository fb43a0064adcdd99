package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/storage"
)

// LocalFileStorage реализация для локальной файловой системы.
// Каждое пространство имен - подкаталог baseDir.
type LocalFileStorage struct {
	baseDir string // Базовый каталог для хранения (например: "./uploads")
	baseURL string // Базовый URL для доступа к файлам (например: "http://localhost:8080/uploads")
	ensured *cache.Cache
}

var _ storage.Backend = (*LocalFileStorage)(nil)

func NewLocalFileStorage(baseDir, baseURL string) (*LocalFileStorage, error) {
	const op = "storage.filestorage.NewLocalFileStorage"

	if baseDir == "" {
		return nil, fmt.Errorf("%s: base dir is empty", op)
	}

	// Создаем директорию, если она не существует
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &LocalFileStorage{
		baseDir: baseDir,
		baseURL: baseURL,
		ensured: cache.New(10*time.Minute, 20*time.Minute),
	}, nil
}

func (s *LocalFileStorage) EnsureNamespace(ctx context.Context, namespace string) error {
	const op = "storage.filestorage.EnsureNamespace"

	if err := storage.ValidateNamespace(namespace); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, ok := s.ensured.Get(namespace); ok {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.MkdirAll(filepath.Join(s.baseDir, namespace), 0755); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.ensured.SetDefault(namespace, struct{}{})

	return nil
}

func (s *LocalFileStorage) Put(ctx context.Context, r io.Reader, nameHint, namespace string) (string, error) {
	const op = "storage.filestorage.Put"

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := storage.ValidateNamespace(namespace); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	key := storage.NewKey(nameHint)
	filePath := filepath.Join(s.baseDir, namespace, key)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return "", fmt.Errorf("%s: failed to create directories: %w", op, err)
		}
	}

	// Создаем целевой файл
	dst, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("%s: failed to create destination file: %w", op, err)
	}

	done := make(chan struct{})
	var copyErr error

	go func() {
		_, copyErr = io.Copy(dst, r)
		close(done)
	}()

	select {
	case <-done:
		closeErr := dst.Close()
		if copyErr == nil {
			copyErr = closeErr
		}
		if copyErr != nil {
			_ = os.Remove(filePath)
			return "", fmt.Errorf("%s: failed to copy file: %w", op, copyErr)
		}
	case <-ctx.Done():
		_ = dst.Close()
		<-done
		_ = os.Remove(filePath)
		return "", ctx.Err()
	}

	return key, nil
}

// Delete удаляет файл из хранилища; отсутствие файла не считается ошибкой
func (s *LocalFileStorage) Delete(ctx context.Context, key, namespace string) error {
	const op = "storage.filestorage.Delete"

	if err := storage.ValidateKey(key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := storage.ValidateNamespace(namespace); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := os.Remove(s.GetFullPath(key, namespace))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *LocalFileStorage) URLFor(key, namespace string) string {
	u, err := url.JoinPath(s.baseURL, namespace, key)
	if err != nil {
		return s.baseURL + "/" + namespace + "/" + key
	}

	return u
}

// Exists сообщает, лежит ли объект на диске
func (s *LocalFileStorage) Exists(key, namespace string) bool {
	_, err := os.Stat(s.GetFullPath(key, namespace))
	return err == nil
}

// GetFullPath возвращает полный путь к файлу на диске
func (s *LocalFileStorage) GetFullPath(key, namespace string) string {
	return filepath.Join(s.baseDir, namespace, key)
}

// BaseURL возвращает базовый URL для доступа к файлам
func (s *LocalFileStorage) BaseURL() string {
	return s.baseURL
}

func (s *LocalFileStorage) GetBaseDir() string {
	return s.baseDir
}
