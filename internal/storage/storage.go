package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrObjectNotFound   = errors.New("object not found")
	ErrInvalidKey       = errors.New("invalid storage key")
	ErrInvalidNamespace = errors.New("invalid namespace")
)

// Backend абстрагирует долговременное хранилище байтов.
// Delete не должен возвращать ошибку, если объекта уже нет.
type Backend interface {
	Put(ctx context.Context, r io.Reader, nameHint, namespace string) (string, error)
	Delete(ctx context.Context, key, namespace string) error
	URLFor(key, namespace string) string
	EnsureNamespace(ctx context.Context, namespace string) error
}

var (
	namespaceRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)
	extRe       = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)
)

// NewKey builds a collision-free key that keeps only a sanitized extension of the hint.
func NewKey(nameHint string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(nameHint)))
	if !extRe.MatchString(ext) {
		ext = ""
	}

	return uuid.NewString() + ext
}

func ValidateNamespace(namespace string) error {
	if !namespaceRe.MatchString(namespace) {
		return ErrInvalidNamespace
	}

	return nil
}

// ValidateKey rejects keys that could escape their namespace.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return ErrInvalidKey
	}

	return nil
}
