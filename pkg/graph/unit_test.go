package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

func TestSplitIntoChunks(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		size    int
		overlap int
		want    [][2]int
	}{
		{name: "empty text", length: 0, size: 10, overlap: 2, want: nil},
		{name: "shorter than window", length: 5, size: 10, overlap: 2, want: [][2]int{{0, 5}}},
		{name: "exactly one window", length: 10, size: 10, overlap: 2, want: [][2]int{{0, 10}}},
		{name: "two windows", length: 15, size: 10, overlap: 2, want: [][2]int{{0, 10}, {8, 15}}},
		{name: "no overlap", length: 25, size: 10, overlap: 0, want: [][2]int{{0, 10}, {10, 20}, {20, 25}}},
		{name: "final window exact", length: 18, size: 10, overlap: 2, want: [][2]int{{0, 10}, {8, 18}}},
		{name: "defaults", length: 1500, size: 700, overlap: 100, want: [][2]int{{0, 700}, {600, 1300}, {1200, 1500}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("x", tt.length)
			got, err := SplitIntoChunks(text, tt.size, tt.overlap)
			if err != nil {
				t.Fatalf("SplitIntoChunks() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d chunks, got %d: %+v", len(tt.want), len(got), got)
			}
			for i, w := range tt.want {
				if got[i].Start != w[0] || got[i].End != w[1] || got[i].Seq != i {
					t.Fatalf("chunk %d = [%d,%d) seq %d, want [%d,%d)", i, got[i].Start, got[i].End, got[i].Seq, w[0], w[1])
				}
			}
		})
	}
}

func TestSplitIntoChunks_CoverageAndOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 97) + "xyz"
	size, overlap := 70, 13
	spans, err := SplitIntoChunks(text, size, overlap)
	if err != nil {
		t.Fatalf("SplitIntoChunks() error = %v", err)
	}

	runes := []rune(text)
	if spans[0].Start != 0 || spans[len(spans)-1].End != len(runes) {
		t.Fatalf("spans do not cover the text: first %+v last %+v", spans[0], spans[len(spans)-1])
	}
	for i, s := range spans {
		if !(0 <= s.Start && s.Start < s.End && s.End <= len(runes)) {
			t.Fatalf("invalid offsets in chunk %d: %+v", i, s)
		}
		if s.Text != string(runes[s.Start:s.End]) {
			t.Fatalf("chunk %d text does not match its offsets", i)
		}
		if i > 0 {
			prev := spans[i-1]
			if prev.End-s.Start != overlap {
				t.Fatalf("chunk %d overlaps previous by %d, want %d", i, prev.End-s.Start, overlap)
			}
		}
	}
}

func TestSplitIntoChunks_RuneOffsets(t *testing.T) {
	spans, err := SplitIntoChunks("ääääääää", 5, 1)
	if err != nil {
		t.Fatalf("SplitIntoChunks() error = %v", err)
	}
	if len(spans) != 2 || spans[0].Text != "äääää" || spans[1].Start != 4 || spans[1].End != 8 {
		t.Fatalf("unexpected spans %+v", spans)
	}
}

func TestSplitIntoChunks_InvalidWindow(t *testing.T) {
	tests := []struct{ size, overlap int }{{10, 10}, {10, 11}, {0, 0}, {10, -1}}
	for _, tt := range tests {
		_, err := SplitIntoChunks("text", tt.size, tt.overlap)
		if !errors.Is(err, common.ErrInvalidInput) {
			t.Fatalf("size %d overlap %d: expected ErrInvalidInput, got %v", tt.size, tt.overlap, err)
		}
	}
}
