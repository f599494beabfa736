package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sc "contactbook/internal/server/config"
)

func testAvatarStore() *AvatarStore {
	return NewAvatarStore(&sc.Config{
		S3RootUser:     "minio",
		S3RootPassword: "minio123",
		S3Bucket:       "avatars",
		S3Region:       "us-east-1",
		S3BaseEndpoint: "http://localhost:9000/",
	})
}

func TestAvatarUpload_Success(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	origPut := putObject
	defer func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
		putObject = origPut
	}()

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return &s3.Client{}
	}

	var gotBucket, gotKey, gotContentType string
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		gotBucket = *in.Bucket
		gotKey = *in.Key
		gotContentType = *in.ContentType
		return &s3.PutObjectOutput{}, nil
	}

	url, err := testAvatarStore().Upload(context.Background(), "image/png", strings.NewReader("img"))
	require.NoError(t, err)

	assert.Equal(t, "avatars", gotBucket)
	assert.True(t, strings.HasPrefix(gotKey, "avatars/"))
	assert.Equal(t, "image/png", gotContentType)
	assert.Equal(t, "http://localhost:9000/avatars/"+gotKey, url)
}

func TestAvatarUpload_PutFails(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	origPut := putObject
	defer func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
		putObject = origPut
	}()

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return &s3.Client{}
	}
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, errors.New("store unavailable")
	}

	_, err := testAvatarStore().Upload(context.Background(), "image/png", strings.NewReader("img"))
	assert.Error(t, err)
}

func TestAvatarUpload_ConfigFails(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	defer func() { loadDefaultAWSConfig = origLoad }()

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("bad credentials")
	}

	_, err := testAvatarStore().Upload(context.Background(), "image/png", strings.NewReader("img"))
	assert.Error(t, err)
}
