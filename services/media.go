package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const PresignExpiry = 15 * time.Minute

var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"video/mp4":  ".mp4",
	"audio/mpeg": ".mp3",
}

// Overridable in tests.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

type MediaConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

type PresignedUpload struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type MediaService struct {
	conf MediaConfig
}

func NewMediaService(conf MediaConfig) *MediaService {
	return &MediaService{conf: conf}
}

func (s *MediaService) Enabled() bool {
	return s != nil && s.conf.Bucket != "" && s.conf.Endpoint != ""
}

func (s *MediaService) presignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(s.conf.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.conf.AccessKey, s.conf.SecretKey, "",
		)))
	if err != nil {
		return nil, err
	}
	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.conf.Endpoint)
		o.UsePathStyle = true
	})
	return s3.NewPresignClient(client), nil
}

// MediaKey builds a storage key namespaced by user and upload date.
func MediaKey(userID int64, ext string, now time.Time) string {
	return fmt.Sprintf("media/%d/%04d/%02d/%02d/%s%s", userID, now.Year(), now.Month(), now.Day(), uuid.New(), ext)
}

// PresignUpload returns a presigned PUT URL for a new media object.
func (s *MediaService) PresignUpload(ctx context.Context, userID int64, contentType string) (*PresignedUpload, error) {
	if !s.Enabled() {
		return nil, ErrUnavailable
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: content type %q", ErrInvalidInput, contentType)
	}

	pc, err := s.presignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	now := time.Now().UTC()
	bucket := s.conf.Bucket
	key := MediaKey(userID, ext, now)
	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}
	return &PresignedUpload{Key: key, URL: req.URL, ExpiresAt: now.Add(PresignExpiry)}, nil
}

func (s *MediaService) PresignDownload(ctx context.Context, key string) (string, error) {
	if !s.Enabled() {
		return "", ErrUnavailable
	}
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: media key", ErrInvalidInput)
	}
	pc, err := s.presignClient(ctx)
	if err != nil {
		return "", fmt.Errorf("s3 client: %w", err)
	}
	bucket := s.conf.Bucket
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}
