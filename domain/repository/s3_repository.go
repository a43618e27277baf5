package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/soclab/quell/domain/entity"
)

// S3Repository stores evidence bundles as JSON objects. Bundles are written
// once, before containment runs, and never overwritten.
type S3Repository struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Repository(ctx context.Context, bucket, prefix string) (*S3Repository, error) {
	if bucket == "" {
		return nil, fmt.Errorf("evidence bucket is not configured")
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}

	return &S3Repository{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (r *S3Repository) PutEvidenceBundle(ctx context.Context, bundle *entity.EvidenceBundle) (string, error) {
	body, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal evidence bundle: %w", err)
	}

	key := fmt.Sprintf("%s/%s/evidence/%s-%d.json",
		r.prefix, bundle.IncidentID, bundle.Asset, bundle.CapturedAt.Unix())

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload evidence bundle: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", r.bucket, key), nil
}
