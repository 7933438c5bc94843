package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/loader"
	loaderio "github.com/OFFIS-RIT/kgraph/pkg/loader/io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/singleflight"
)

// ObjectGetter is the part of *s3.Client the loader needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3TextFileLoader loads .txt objects addressed as s3://bucket/key. Object
// contents are cached, and concurrent loads of one object share a request.
type S3TextFileLoader struct {
	client   ObjectGetter
	maxBytes int64

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

var _ loader.FileLoader = (*S3TextFileLoader)(nil)

// NewS3TextFileLoader creates a loader. maxBytes <= 0 disables the size check.
func NewS3TextFileLoader(client ObjectGetter, maxBytes int64) *S3TextFileLoader {
	return &S3TextFileLoader{
		client:   client,
		maxBytes: maxBytes,
		cache:    make(map[string][]byte),
	}
}

// IsURI reports whether p addresses an S3 object.
func IsURI(p string) bool {
	return strings.HasPrefix(p, "s3://")
}

// ParseURI splits s3://bucket/key.
func ParseURI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "s3" {
		return "", "", fmt.Errorf("%w: %q is not an s3:// uri", common.ErrUnsupportedSource, uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q needs a bucket and a key", common.ErrInvalidInput, uri)
	}
	return u.Host, key, nil
}

// Load returns the base name of the key and the object's content.
func (l *S3TextFileLoader) Load(ctx context.Context, uri string) (string, []byte, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return "", nil, err
	}
	name := path.Base(key)
	if err := loaderio.CheckTextFile(name); err != nil {
		return "", nil, err
	}

	l.cacheMu.RLock()
	if cached, ok := l.cache[uri]; ok {
		l.cacheMu.RUnlock()
		return name, cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(uri, func() (any, error) {
		out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", uri, err)
		}
		defer out.Body.Close()

		var body io.Reader = out.Body
		if l.maxBytes > 0 {
			body = io.LimitReader(out.Body, l.maxBytes+1)
		}
		buf := new(bytes.Buffer)
		if _, err := io.Copy(buf, body); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", uri, err)
		}
		if l.maxBytes > 0 && int64(buf.Len()) > l.maxBytes {
			return nil, fmt.Errorf("%w: %s is larger than %d bytes", common.ErrInvalidInput, uri, l.maxBytes)
		}

		byts := buf.Bytes()
		l.cacheMu.Lock()
		l.cache[uri] = byts
		l.cacheMu.Unlock()
		return byts, nil
	})
	if err != nil {
		return "", nil, err
	}
	return name, result.([]byte), nil
}
