package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/objectkey"
)

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
	PresignDuration int    // Duration in seconds for presigned URLs (default: 3600)
	PublicBaseURL   string // When set, URLs are PublicBaseURL/<key> instead of presigned

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm

	Keys objectkey.Generator // Key layout; sharded when nil
}

// Uploader is the subset of manager.Uploader the backend uses
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Presigner is the subset of s3.PresignClient the backend uses
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Backend is an S3-compatible implementation of simpleasset.StorageOperation
type Backend struct {
	uploader        Uploader
	presigner       Presigner
	bucket          string
	presignDuration time.Duration
	config          Config
	keys            objectkey.Generator
}

// permanentCodes are S3 error codes that no retry can fix
var permanentCodes = map[string]bool{
	"AccessDenied":          true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"NoSuchBucket":          true,
	"InvalidBucketName":     true,
	"AllAccessDisabled":     true,
}

// New creates a new S3-compatible storage backend
func New(config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	var (
		awsCfg aws.Config
		err    error
	)
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)
	return NewWithClients(config, manager.NewUploader(client), s3.NewPresignClient(client))
}

// NewWithClients creates a backend around existing clients
func NewWithClients(config Config, uploader Uploader, presigner Presigner) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if uploader == nil {
		return nil, errors.New("uploader is required")
	}
	if config.PublicBaseURL == "" && presigner == nil {
		return nil, errors.New("presigner is required without a public base url")
	}
	if config.PresignDuration == 0 {
		config.PresignDuration = 3600 // 1 hour default
	}
	keys := config.Keys
	if keys == nil {
		keys = objectkey.NewShardedGenerator()
	}

	return &Backend{
		uploader:        uploader,
		presigner:       presigner,
		bucket:          config.Bucket,
		presignDuration: time.Duration(config.PresignDuration) * time.Second,
		config:          config,
		keys:            keys,
	}, nil
}

// Upload puts the asset's content into the bucket and returns a retrieval URL
func (b *Backend) Upload(ctx context.Context, asset *simpleasset.Asset) (string, error) {
	key := b.keys.GenerateKey(asset.ID, asset.Filename)

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(asset.Content),
	}
	if asset.ContentType != "" {
		input.ContentType = aws.String(asset.ContentType)
	}

	if b.config.EnableSSE {
		switch b.config.SSEAlgorithm {
		case "AES256":
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		case "aws:kms":
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			if b.config.SSEKMSKeyID != "" {
				input.SSEKMSKeyId = aws.String(b.config.SSEKMSKeyID)
			}
		}
	}

	if _, err := b.uploader.Upload(ctx, input); err != nil {
		return "", classify(fmt.Errorf("failed to upload to S3: %w", err))
	}

	return b.objectURL(ctx, key)
}

func (b *Backend) objectURL(ctx context.Context, key string) (string, error) {
	if b.config.PublicBaseURL != "" {
		return strings.TrimRight(b.config.PublicBaseURL, "/") + "/" + key, nil
	}

	result, err := b.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = b.presignDuration
	})
	if err != nil {
		return "", classify(fmt.Errorf("failed to generate presigned download URL: %w", err))
	}
	return result.URL, nil
}

// classify marks configuration and credential errors permanent so the
// invoker stops retrying them
func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && permanentCodes[apiErr.ErrorCode()] {
		return simpleasset.Permanent(err)
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return simpleasset.Permanent(err)
	}
	return err
}
