package util

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// HashID returns the hex md5 digest of s.
func HashID(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// FileDocumentID derives the document id of an uploaded file from its name.
func FileDocumentID(name string) string {
	return HashID("file:" + name)
}

// URLDocumentID derives the document id of a fetched page from its URL.
func URLDocumentID(url string) string {
	return HashID("url:" + url)
}

// ChunkID returns the id of the seq-th chunk of a document.
func ChunkID(docID string, seq int) string {
	return fmt.Sprintf("%s_%d", docID, seq)
}

// ConceptID derives a concept id from its normalized label.
func ConceptID(label string) string {
	return HashID(label)
}

// ContentHash fingerprints document content so unchanged re-ingestions can be skipped.
func ContentHash(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}
