package services

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	sc "contactbook/internal/server/config"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

// AvatarStore uploads avatar images to an S3-compatible object store and
// returns publicly addressable URLs for them.
type AvatarStore struct {
	config *sc.Config
}

func NewAvatarStore(config *sc.Config) *AvatarStore {
	return &AvatarStore{config: config}
}

func (s *AvatarStore) getClient() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,     // MINIO_ROOT_USER
			s.config.S3RootPassword, // MINIO_ROOT_PASSWORD
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return client, nil
}

// Upload stores the image under a fresh random key and returns its URL.
func (s *AvatarStore) Upload(ctx context.Context, contentType string, body io.Reader) (string, error) {
	client, err := s.getClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	key := fmt.Sprintf("avatars/%v", uuid.New())

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        body,
		ContentType: &contentType,
	})
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(s.config.S3BaseEndpoint, "/")
	return fmt.Sprintf("%s/%s/%s", base, bucket, key), nil
}

// GravatarURL returns the Gravatar image URL for an email address: the
// md5 hex of the trimmed, lowercased email.
func GravatarURL(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x", md5.Sum([]byte(normalized)))
}
