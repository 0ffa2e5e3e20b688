// Package avatars hands out presigned S3 URLs for profile images.
package avatars

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const DefaultExpiry = 15 * time.Minute

type Config struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
	Bucket    string
	Expiry    time.Duration
}

// Presigner is the part of *s3.PresignClient used here.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

type Store struct {
	presigner Presigner
	bucket    string
	expiry    time.Duration
	now       func() time.Time
}

func NewStore(p Presigner, bucket string, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{presigner: p, bucket: bucket, expiry: expiry, now: time.Now}
}

// NewS3Store builds a Store backed by a path-style S3 client, which is what
// MinIO expects.
func NewS3Store(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("error loading s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return NewStore(s3.NewPresignClient(client), cfg.Bucket, cfg.Expiry), nil
}

// ObjectKey returns a fresh key under the identity's prefix.
func (s *Store) ObjectKey(identityID string) string {
	d := s.now().UTC()
	return fmt.Sprintf("profile_images/%s/%d/%02d/%s", identityID, d.Year(), d.Month(), uuid.NewString())
}

// UploadURL returns a new object key and a presigned PUT URL for it.
func (s *Store) UploadURL(ctx context.Context, identityID string) (key string, url string, err error) {
	key = s.ObjectKey(identityID)

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", "", fmt.Errorf("error presigning upload: %w", err)
	}
	return key, req.URL, nil
}

// DownloadURL returns a presigned GET URL for key. An empty key yields an
// empty URL.
func (s *Store) DownloadURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("error presigning download: %w", err)
	}
	return req.URL, nil
}
