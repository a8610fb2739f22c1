package backup

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Destination writes JSONL data to an S3-compatible bucket, one object per
// run under a common prefix.
type S3Destination struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, prefix, region, endpoint string) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Destination{
		client: s3.NewFromConfig(cfg, s3opts...),
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (d *S3Destination) Name() string {
	if d.prefix == "" {
		return "s3://" + d.bucket + "/"
	}
	return "s3://" + d.bucket + "/" + d.prefix + "/"
}

// Key returns the object key a run's snapshot is stored under.
func (d *S3Destination) Key(runID string) string {
	return path.Join(d.prefix, runID+".jsonl")
}

// Write uploads data as a new object named after runID.
func (d *S3Destination) Write(ctx context.Context, runID string, data []byte) (string, error) {
	key := d.Key(runID)
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object %s: %w", key, err)
	}
	return "s3://" + d.bucket + "/" + key, nil
}
