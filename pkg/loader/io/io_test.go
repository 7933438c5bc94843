package io

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

func TestCheckTextFile(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"notes.txt", false},
		{"NOTES.TXT", false},
		{"report.pdf", true},
		{"noext", true},
		{"archive.txt.gz", true},
	}
	for _, tt := range tests {
		err := CheckTextFile(tt.name)
		if (err != nil) != tt.wantErr {
			t.Fatalf("CheckTextFile(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, common.ErrUnsupportedSource) {
			t.Fatalf("expected ErrUnsupportedSource, got %v", err)
		}
	}
}

func TestIOTextFileLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("hello graph"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewIOTextFileLoader(0)
	name, content, err := l.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if name != "doc.txt" || string(content) != "hello graph" {
		t.Fatalf("unexpected result %q %q", name, content)
	}

	small := NewIOTextFileLoader(4)
	if _, _, err := small.Load(context.Background(), path); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected size error, got %v", err)
	}
}
