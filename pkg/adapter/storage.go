package adapter

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
)

// Storage is the interface for publicly readable share image storage
type Storage interface {
	// Put uploads data under key and returns its public URL
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

func publicURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}

// R2Config holds Cloudflare R2 settings. All fields are required.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicURL       string
}

// Validate checks that every field is set
func (c R2Config) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"account-id", c.AccountID},
		{"access-key-id", c.AccessKeyID},
		{"secret-access-key", c.SecretAccessKey},
		{"bucket", c.Bucket},
		{"public-url", c.PublicURL},
	}

	var missing []string
	for _, f := range fields {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return goerr.New("missing R2 configuration", goerr.V("missing", missing))
	}
	return nil
}

// r2Client implements Storage interface on the S3 compatible API of R2
type r2Client struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewR2 creates an R2 storage client
func NewR2(ctx context.Context, cfg R2Config) (Storage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	})

	return &r2Client{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: cfg.PublicURL,
	}, nil
}

func (r *r2Client) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to upload to R2",
			goerr.V("bucket", r.bucket),
			goerr.V("key", key))
	}

	return publicURL(r.publicURL, key), nil
}

// gcsClient implements Storage interface using Cloud Storage
type gcsClient struct {
	bucketName string
	publicURL  string
	client     *storage.Client
}

// NewGCS creates a Cloud Storage client. An empty publicURL falls back to
// https://storage.googleapis.com/<bucket>.
func NewGCS(ctx context.Context, bucketName, publicURL, credentialsFile string) (Storage, error) {
	if bucketName == "" {
		return nil, goerr.New("bucket name is required")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	if publicURL == "" {
		publicURL = "https://storage.googleapis.com/" + bucketName
	}

	return &gcsClient{
		bucketName: bucketName,
		publicURL:  publicURL,
		client:     client,
	}, nil
}

func (s *gcsClient) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	writer := s.client.Bucket(s.bucketName).Object(key).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return "", goerr.Wrap(err, "failed to write object", goerr.V("key", key))
	}
	if err := writer.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to close object writer", goerr.V("key", key))
	}

	return publicURL(s.publicURL, key), nil
}
