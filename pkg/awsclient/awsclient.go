// Package awsclient builds the AWS SDK configuration shared by every AWS
// service client in the process. Credentials come in explicitly rather than
// through process-wide environment mutation.
package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Config carries the explicit AWS settings for one service instance.
type Config struct {
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint, if non-empty, overrides the SDK's endpoint resolution
	// (localstack and similar).
	Endpoint string
}

// Load resolves an aws.Config from the explicit settings, falling back to the
// SDK's default chain when no static credentials are given.
func Load(ctx context.Context, cfg Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	ac, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Endpoint != "" {
		ac.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return ac, nil
}
