package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"veritas/internal/audit/models"
)

// S3Store mirrors committed events into an object-lock bucket. Each object
// carries a COMPLIANCE-mode retention lock, so neither the service nor the
// bucket owner can modify or delete it before the retain-until date.
//
// The bucket must be created with object lock enabled; enabling it later is
// not possible on S3.
type S3Store struct {
	client    *s3.Client
	bucket    string
	retention time.Duration
	now       func() time.Time
}

// S3Config holds connection settings for the archive bucket.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for S3-compatible stores
	AccessKeyID     string
	SecretAccessKey string
	Retention       time.Duration
}

// NewS3 builds an archive store against the configured bucket.
func NewS3(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("archive credentials are required")
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}

	opts := s3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}

	return &S3Store{
		client:    s3.New(opts),
		bucket:    cfg.Bucket,
		retention: cfg.Retention,
		now:       time.Now,
	}, nil
}

// Archive writes the event as a retention-locked object. Idempotent: the
// conditional put makes a duplicate archive a no-op rather than an
// overwrite.
func (s *S3Store) Archive(ctx context.Context, event models.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal archive object: %w", err)
	}

	retainUntil := s.now().Add(s.retention)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:                    aws.String(s.bucket),
		Key:                       aws.String(ObjectKey(event)),
		Body:                      bytes.NewReader(body),
		ContentType:               aws.String("application/json"),
		IfNoneMatch:               aws.String("*"),
		ObjectLockMode:            types.ObjectLockModeCompliance,
		ObjectLockRetainUntilDate: aws.Time(retainUntil),
	})
	if isPreconditionFailed(err) {
		// The object already exists; the retention lock on the original copy
		// stands and this delivery attempt is settled.
		return nil
	}
	if err != nil {
		return fmt.Errorf("put archive object %s: %w", ObjectKey(event), err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}
