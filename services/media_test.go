package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubPresign(t *testing.T) {
	t.Helper()
	origLoad, origPut, origGet := loadDefaultAWSConfig, presignPutObject, presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig, presignPutObject, presignGetObject = origLoad, origPut, origGet
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{Region: "us-east-1"}, nil
	}
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: "https://s3.test/" + *in.Bucket + "/" + *in.Key + "?put"}, nil
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: "https://s3.test/" + *in.Bucket + "/" + *in.Key + "?get"}, nil
	}
}

func TestMediaDisabled(t *testing.T) {
	svc := NewMediaService(MediaConfig{})
	_, err := svc.PresignUpload(context.Background(), 1, "image/png")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = svc.PresignDownload(context.Background(), "media/1/x.png")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPresignUpload(t *testing.T) {
	stubPresign(t)
	svc := NewMediaService(MediaConfig{Endpoint: "http://minio:9000", Region: "us-east-1", Bucket: "creaverse"})

	_, err := svc.PresignUpload(context.Background(), 5, "application/x-msdownload")
	assert.ErrorIs(t, err, ErrInvalidInput)

	upload, err := svc.PresignUpload(context.Background(), 5, "IMAGE/PNG")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(upload.Key, "media/5/"))
	assert.True(t, strings.HasSuffix(upload.Key, ".png"))
	assert.Contains(t, upload.URL, "creaverse/"+upload.Key)
	assert.WithinDuration(t, time.Now().Add(PresignExpiry), upload.ExpiresAt, time.Minute)

	url, err := svc.PresignDownload(context.Background(), upload.Key)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, "?get"))

	_, err = svc.PresignDownload(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMediaKey(t *testing.T) {
	key := MediaKey(3, ".jpg", time.Date(2025, 2, 7, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(key, "media/3/2025/02/07/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
}
