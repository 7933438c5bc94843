package util

import "testing"

func TestDocumentIDs(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "empty hash", got: HashID(""), want: "d41d8cd98f00b204e9800998ecf8427e"},
		{name: "file id", got: FileDocumentID("notes.txt"), want: HashID("file:notes.txt")},
		{name: "url id", got: URLDocumentID("https://example.com"), want: HashID("url:https://example.com")},
		{name: "concept id", got: ConceptID("machine learning"), want: HashID("machine learning")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestFileAndURLIDsDiffer(t *testing.T) {
	if FileDocumentID("a") == URLDocumentID("a") {
		t.Fatal("expected file and url namespaces to produce different ids")
	}
}

func TestChunkID(t *testing.T) {
	if got := ChunkID("abc", 3); got != "abc_3" {
		t.Fatalf("unexpected chunk id %q", got)
	}
}
