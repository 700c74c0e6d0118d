// Package media presigns S3 URLs so clients upload and fetch post images
// and avatars directly from the bucket.
package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Purpose groups uploaded objects by what they are for.
type Purpose string

const (
	PurposePost   Purpose = "posts"
	PurposeAvatar Purpose = "avatars"
	PurposeCover  Purpose = "covers"
)

const defaultExpiry = 5 * time.Minute

var (
	// ErrDisabled is returned when no bucket is configured.
	ErrDisabled = errors.New("media uploads are not configured")
	// ErrContentType is returned for uploads that are not images.
	ErrContentType = errors.New("only image uploads are allowed")

	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// Upload is a presigned PUT for one object.
type Upload struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Signer presigns object URLs for one bucket. A nil *Signer reports ErrDisabled.
type Signer struct {
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

// New loads AWS credentials from the default chain.
func New(ctx context.Context, bucket, region string, expiry time.Duration) (*Signer, error) {
	if bucket == "" {
		return nil, ErrDisabled
	}
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewFromConfig(cfg, bucket, expiry), nil
}

// NewFromConfig creates a Signer from an explicit AWS config.
func NewFromConfig(cfg aws.Config, bucket string, expiry time.Duration) *Signer {
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	return &Signer{
		presign: s3.NewPresignClient(s3.NewFromConfig(cfg)),
		bucket:  bucket,
		expiry:  expiry,
	}
}

// ObjectKey builds the key an upload is stored under.
func ObjectKey(purpose Purpose, userID, fileName string, now time.Time) string {
	name := unsafeChars.ReplaceAllString(path.Base(fileName), "_")
	if name == "" || name == "." || name == "_" {
		name = "file"
	}
	return fmt.Sprintf("%s/%s/%s-%s-%s", purpose, userID, now.UTC().Format("20060102150405"), uuid.NewString()[:8], name)
}

// UploadURL presigns a PUT for a new object owned by userID.
func (s *Signer) UploadURL(ctx context.Context, userID string, purpose Purpose, fileName, contentType string) (Upload, error) {
	if s == nil {
		return Upload{}, ErrDisabled
	}
	if !strings.HasPrefix(contentType, "image/") {
		return Upload{}, fmt.Errorf("%w: %q", ErrContentType, contentType)
	}
	switch purpose {
	case PurposePost, PurposeAvatar, PurposeCover:
	default:
		return Upload{}, fmt.Errorf("unknown upload purpose %q", purpose)
	}

	now := time.Now()
	key := ObjectKey(purpose, userID, fileName, now)
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return Upload{}, fmt.Errorf("presign put: %w", err)
	}
	return Upload{URL: req.URL, Key: key, ExpiresAt: now.Add(s.expiry)}, nil
}

// ReadURL presigns a GET for an existing object.
func (s *Signer) ReadURL(ctx context.Context, key string) (string, error) {
	if s == nil {
		return "", ErrDisabled
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}
