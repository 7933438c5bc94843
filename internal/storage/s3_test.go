package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/OFFIS-RIT/kgraph/pkg/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type memoryObjects struct {
	objects map[string][]byte
	meta    map[string]map[string]string
	failPut bool
}

func (m *memoryObjects) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.failPut {
		return nil, errors.New("unavailable")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	m.objects[key] = body
	m.meta[key] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (m *memoryObjects) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("no such key")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func TestDocumentArchiveRoundTrip(t *testing.T) {
	objects := &memoryObjects{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
	archive := NewDocumentArchive(objects, "kg", "")
	doc := common.Document{
		ID:          "abc",
		Type:        common.DocumentTypeURL,
		Name:        "https://example.com",
		URL:         "https://example.com",
		ContentHash: "h1",
	}

	if err := archive.PutDocument(context.Background(), doc, []byte("<html/>")); err != nil {
		t.Fatalf("PutDocument: %v", err)
	}
	if got := archive.Key(doc); got != "documents/abc/h1" {
		t.Fatalf("Key() = %q", got)
	}
	if meta := objects.meta["kg/documents/abc/h1"]; meta["source-url"] != doc.URL || meta["doc-type"] != "url" {
		t.Fatalf("unexpected metadata %v", meta)
	}

	got, err := archive.GetDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if string(got) != "<html/>" {
		t.Fatalf("GetDocument() = %q", got)
	}
}

func TestDocumentArchivePutFailure(t *testing.T) {
	archive := NewDocumentArchive(&memoryObjects{failPut: true}, "kg", "raw")
	err := archive.PutDocument(context.Background(), common.Document{ID: "x"}, []byte("x"))
	if err == nil {
		t.Fatalf("expected error")
	}
}
