package io

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/OFFIS-RIT/kgraph/pkg/common"

	"golang.org/x/sync/singleflight"
)

// TextExtension is the only file extension accepted for upload.
const TextExtension = ".txt"

// CheckTextFile rejects file names that are not plain text files.
func CheckTextFile(name string) error {
	if !strings.EqualFold(filepath.Ext(name), TextExtension) {
		return fmt.Errorf("%w: only %s files are supported, got %q", common.ErrUnsupportedSource, TextExtension, name)
	}
	return nil
}

// IOTextFileLoader reads text files from the local filesystem. Concurrent
// loads of the same path share one read.
type IOTextFileLoader struct {
	maxBytes int64
	group    singleflight.Group
}

// NewIOTextFileLoader creates a loader. maxBytes <= 0 disables the size check.
func NewIOTextFileLoader(maxBytes int64) *IOTextFileLoader {
	return &IOTextFileLoader{maxBytes: maxBytes}
}

// Load returns the base name and content of the file at path.
func (l *IOTextFileLoader) Load(ctx context.Context, path string) (string, []byte, error) {
	name := filepath.Base(path)
	if err := CheckTextFile(name); err != nil {
		return "", nil, err
	}

	result, err, _ := l.group.Do(path, func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if l.maxBytes > 0 && info.Size() > l.maxBytes {
			return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", common.ErrInvalidInput, name, info.Size(), l.maxBytes)
		}
		return os.ReadFile(path)
	})
	if err != nil {
		return "", nil, err
	}
	return name, result.([]byte), nil
}
