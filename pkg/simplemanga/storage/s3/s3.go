package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/tendant/simple-manga/pkg/simplemanga"
	"github.com/tendant/simple-manga/pkg/simplemanga/objectkey"
)

// maxPutAttempts bounds retries after an ID collision
const maxPutAttempts = 3

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist

	// Keys lays out object keys, defaults to git-like sharding
	Keys objectkey.Generator
}

// Backend is an S3-compatible implementation of the simplemanga.BlobStore interface
type Backend struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
	keys       objectkey.Generator
	config     Config
}

// New creates a new S3-compatible storage backend
func New(config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}

	if config.Keys == nil {
		config.Keys = objectkey.NewRecommendedGenerator()
	}

	// Set up AWS config
	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Custom endpoint for S3-compatible services (MinIO, etc.)
	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	backend := &Backend{
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		bucket:     config.Bucket,
		keys:       config.Keys,
		config:     config,
	}

	if config.CreateBucketIfNotExist {
		if err := backend.createBucketIfNotExists(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return backend, nil
}

// createBucketIfNotExists creates the bucket if it doesn't exist
func (b *Backend) createBucketIfNotExists(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}

	// Handle multiple error types for MinIO compatibility
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) &&
		!strings.Contains(err.Error(), "BadRequest") &&
		!strings.Contains(err.Error(), "NoSuchBucket") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	}
	if b.config.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}

	_, err = b.client.CreateBucket(ctx, createInput)
	if err != nil {
		if apiErrorCode(err) == "BucketAlreadyExists" || apiErrorCode(err) == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Put uploads data under a fresh key. The write is conditional on the key
// being absent, so an existing object is never overwritten.
func (b *Backend) Put(ctx context.Context, data []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxPutAttempts; attempt++ {
		id := simplemanga.NewID()
		input := &s3.PutObjectInput{
			Bucket:      aws.String(b.bucket),
			Key:         aws.String(b.keys.Key(id)),
			Body:        bytes.NewReader(data),
			IfNoneMatch: aws.String("*"),
		}
		b.applySSE(input)

		_, err := b.uploader.Upload(ctx, input)
		if err == nil {
			return id, nil
		}
		if apiErrorCode(err) != "PreconditionFailed" {
			return "", b.storageError("put", id, err)
		}
		lastErr = err
	}
	return "", b.storageError("put", "", fmt.Errorf("no free key after %d attempts: %w", maxPutAttempts, lastErr))
}

func (b *Backend) applySSE(input *s3.PutObjectInput) {
	if !b.config.EnableSSE {
		return
	}
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

// Get downloads an object into memory
func (b *Backend) Get(ctx context.Context, id string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer([]byte{})
	_, err := b.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.keys.Key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, simplemanga.ErrImageNotFound
		}
		return nil, b.storageError("get", id, err)
	}
	return buf.Bytes(), nil
}

// Delete deletes an object. S3 deletes are idempotent.
func (b *Backend) Delete(ctx context.Context, id string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.keys.Key(id)),
	})
	if err != nil && !isNotFound(err) {
		return b.storageError("delete", id, err)
	}
	return nil
}

// List pages through the bucket and returns the IDs of every image object
func (b *Backend) List(ctx context.Context) ([]string, error) {
	var ids []string
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, b.storageError("list", "", err)
		}
		for _, obj := range page.Contents {
			if id, ok := b.keys.ID(aws.ToString(obj.Key)); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func (b *Backend) storageError(op, id string, err error) error {
	return &simplemanga.StorageError{Backend: "s3", Key: id, Op: op, Err: err}
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	code := apiErrorCode(err)
	return code == "NoSuchKey" || code == "NotFound"
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
