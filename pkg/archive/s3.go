package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Archive stores evidence blobs in an S3 bucket, keyed by content hash.
type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ Archive = (*S3Archive)(nil)

// NewS3Archive creates an S3-backed archive using the default credential
// chain. Custom endpoints (MinIO, LocalStack) come from AWS_ENDPOINT_URL.
func NewS3Archive(ctx context.Context, bucket, prefix string) (*S3Archive, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if prefix != "" && prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	return &S3Archive{
		client: s3.NewFromConfig(awsCfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (a *S3Archive) Store(ctx context.Context, blob []byte) (string, error) {
	key := contentKey(blob)
	objectKey := a.prefix + key + ".json"

	// Content addressing makes Store idempotent; skip the upload when the
	// object already exists.
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objectKey),
	})
	if err == nil {
		return key, nil
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(blob),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put failed: %w", err)
	}
	return key, nil
}
