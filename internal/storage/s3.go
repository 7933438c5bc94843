package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectAPI is the subset of the S3 client the archive uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewS3Client builds a path-style client from the AWS_* environment. It
// returns nil when AWS_BUCKET is unset.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	if util.GetEnv("AWS_BUCKET") == "" {
		return nil, nil
	}
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(util.GetEnvString("AWS_REGION", "us-east-1")),
		config.WithBaseEndpoint(util.GetEnv("AWS_ENDPOINT")),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			util.GetEnv("AWS_ACCESS_KEY"),
			util.GetEnv("AWS_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

// DocumentArchive stores the raw bytes of every ingested source under
// <prefix>/<doc id>/<content hash>, so each revision is kept.
type DocumentArchive struct {
	client ObjectAPI
	bucket string
	prefix string
}

func NewDocumentArchive(client ObjectAPI, bucket, prefix string) *DocumentArchive {
	if prefix == "" {
		prefix = "documents"
	}
	return &DocumentArchive{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key of one document revision.
func (a *DocumentArchive) Key(doc common.Document) string {
	return path.Join(a.prefix, doc.ID, doc.ContentHash)
}

func (a *DocumentArchive) PutDocument(ctx context.Context, doc common.Document, content []byte) error {
	contentType := "text/plain; charset=utf-8"
	if doc.Type == common.DocumentTypeURL {
		contentType = "application/octet-stream"
	}

	meta := map[string]string{
		"doc-type": string(doc.Type),
		"doc-name": doc.Name,
	}
	if doc.URL != "" {
		meta["source-url"] = doc.URL
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(doc)),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
		Metadata:    meta,
	})
	if err != nil {
		return fmt.Errorf("failed to upload document to S3: %w", err)
	}
	return nil
}

func (a *DocumentArchive) GetDocument(ctx context.Context, doc common.Document) ([]byte, error) {
	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.Key(doc)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get document from S3: %w", err)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, result.Body); err != nil {
		return nil, fmt.Errorf("failed to read document contents: %w", err)
	}
	return buf.Bytes(), nil
}
