package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/your-org/modflow/pkg/awsclient"
)

// Config contains the information required to talk to an object store.
type Config struct {
	Provider  string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Client covers the staging lifecycle a moderation session needs: an
// ephemeral bucket that is created, filled, emptied, and removed within one
// session.
type Client interface {
	CreateBucket(ctx context.Context, bucket string) error
	Upload(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error
	EmptyBucket(ctx context.Context, bucket string) error
	RemoveBucket(ctx context.Context, bucket string) error
}

// New creates an object store client based on the given configuration.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Provider {
	case "minio":
		return newMinioClient(cfg)
	case "s3", "aws":
		return newS3Client(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported object store provider: %s", cfg.Provider)
	}
}

type minioClient struct {
	client *minio.Client
	region string
}

func newMinioClient(cfg Config) (Client, error) {
	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return &minioClient{client: cl, region: cfg.Region}, nil
}

func (m *minioClient) CreateBucket(ctx context.Context, bucket string) error {
	return m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: m.region})
}

func (m *minioClient) Upload(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (m *minioClient) EmptyBucket(ctx context.Context, bucket string) error {
	for obj := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("list objects in %s: %w", bucket, obj.Err)
		}
		if err := m.client.RemoveObject(ctx, bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove object %s/%s: %w", bucket, obj.Key, err)
		}
	}
	return nil
}

func (m *minioClient) RemoveBucket(ctx context.Context, bucket string) error {
	return m.client.RemoveBucket(ctx, bucket)
}

type s3Client struct {
	client *s3.Client
	region string
}

func newS3Client(ctx context.Context, cfg Config) (Client, error) {
	ac, err := awsclient.Load(ctx, awsclient.Config{
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Endpoint:  cfg.Endpoint,
	})
	if err != nil {
		return nil, err
	}
	var s3opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		// Path-style addressing for MinIO-compatible endpoints.
		s3opts = append(s3opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	return &s3Client{client: s3.NewFromConfig(ac, s3opts...), region: cfg.Region}, nil
}

func (c *s3Client) CreateBucket(ctx context.Context, bucket string) error {
	in := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if c.region != "us-east-1" {
		in.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(c.region),
		}
	}
	if _, err := c.client.CreateBucket(ctx, in); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

func (c *s3Client) Upload(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          reader,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (c *s3Client) EmptyBucket(ctx context.Context, bucket string) error {
	var token *string
	for {
		list, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("list objects in %s: %w", bucket, err)
		}
		if len(list.Contents) > 0 {
			ids := make([]s3types.ObjectIdentifier, 0, len(list.Contents))
			for _, obj := range list.Contents {
				ids = append(ids, s3types.ObjectIdentifier{Key: obj.Key})
			}
			if _, err := c.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(true)},
			}); err != nil {
				return fmt.Errorf("delete objects in %s: %w", bucket, err)
			}
		}
		if list.NextContinuationToken == nil {
			return nil
		}
		token = list.NextContinuationToken
	}
}

func (c *s3Client) RemoveBucket(ctx context.Context, bucket string) error {
	if _, err := c.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return fmt.Errorf("delete bucket %s: %w", bucket, err)
	}
	return nil
}
