package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrInvalidKey = errors.New("invalid object key")

// Backend stores uploaded files and returns the address they are served at.
type Backend interface {
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
}

func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != key || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

// Local keeps files in a directory that is served under urlPrefix.
type Local struct {
	dir       string
	urlPrefix string
}

func NewLocal(dir string, urlPrefix string) *Local {
	return &Local{dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}
}

// Put doesn't rewrite a file that already exists, keys are expected to be
// derived from the content or unique.
func (l *Local) Put(_ context.Context, key string, _ string, data []byte) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(l.dir, filepath.FromSlash(key))
	url := l.urlPrefix + "/" + key

	_, err = os.Stat(fullPath)
	if err == nil {
		return url, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	err = os.MkdirAll(filepath.Dir(fullPath), 0755)
	if err != nil {
		return "", err
	}

	err = os.WriteFile(fullPath, data, 0644)
	if err != nil {
		return "", err
	}

	return url, nil
}
