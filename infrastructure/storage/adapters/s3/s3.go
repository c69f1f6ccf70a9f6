package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"hospitalsync/application/ports"
	"hospitalsync/infrastructure/config"
)

// Client implements ports.Storage on S3 or an S3-compatible endpoint
type Client struct {
	s3Client *s3.Client
	bucket   string
	prefix   string
	region   string
	logger   ports.Logger
	metrics  ports.Metrics
}

// New creates a new S3 storage client and makes sure the default bucket exists
func New(ctx context.Context, cfg *config.StorageConfig, maxRetries int, logger ports.Logger, metrics ports.Metrics) (*Client, error) {
	awsCfg, err := buildAWSConfig(ctx, cfg, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			// LocalStack and MinIO releases differ in checksum support
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	})

	c := &Client{
		s3Client: s3Client,
		bucket:   cfg.BucketOrPath,
		prefix:   cfg.Prefix,
		region:   cfg.S3.Region,
		logger:   logger.WithFields(map[string]interface{}{"storage": "s3"}),
		metrics:  metrics.WithTags(map[string]string{"storage": "s3"}),
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := c.ensureBucketExists(checkCtx); err != nil {
		logger.Error("Failed to verify bucket existence", "error", err, "bucket", c.bucket)
		return nil, fmt.Errorf("failed to verify bucket existence: %w", err)
	}

	logger.Info("S3 client initialized successfully", "bucket", c.bucket, "region", c.region)
	return c, nil
}

// Put uploads an object. The stream is spooled to a temp file first so a
// read error never reaches S3, and PutObject gets a seekable body of known size.
func (c *Client) Put(ctx context.Context, bucket, key string, reader io.Reader, metadata ports.ObjectMetadata) error {
	start := time.Now()
	bucket = c.bucketOrDefault(bucket)
	key = c.objectKey(key)

	spool, err := os.CreateTemp("", "hospitalsync-s3-*")
	if err != nil {
		return fmt.Errorf("failed to create spool file: %w", err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	size, err := io.Copy(spool, reader)
	if err != nil {
		c.logger.Error("Failed to read content", "error", err, "bucket", bucket, "key", key)
		c.metrics.IncrementCounter("s3.put.errors", map[string]string{"error_type": "read_error"})
		return fmt.Errorf("failed to read content: %w", err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind spool file: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          spool,
		ContentLength: aws.Int64(size),
	}
	if metadata.ContentType != "" {
		input.ContentType = aws.String(metadata.ContentType)
	}
	if len(metadata.UserMetadata) > 0 {
		input.Metadata = metadata.UserMetadata
	}

	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		c.logger.Error("Failed to put object", "error", err, "bucket", bucket, "key", key)
		c.metrics.IncrementCounter("s3.put.errors", map[string]string{"error_type": "s3_error"})
		return fmt.Errorf("failed to put object: %w", err)
	}

	duration := time.Since(start)
	c.logger.Debug("Object stored",
		"bucket", bucket,
		"key", key,
		"size_bytes", size,
		"duration_ms", duration.Milliseconds())

	c.metrics.IncrementCounter("storage.put.success", nil)
	c.metrics.RecordHistogram("storage.put.bytes", float64(size), nil)
	c.metrics.RecordHistogram("storage.put.duration_seconds", duration.Seconds(), nil)

	return nil
}

// List returns the objects under prefix, keys relative to the configured prefix
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]ports.ObjectInfo, error) {
	bucket = c.bucketOrDefault(bucket)

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if full := c.objectKey(prefix); full != "" {
		input.Prefix = aws.String(full)
	}

	var objects []ports.ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, input)

	pageCount := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			c.logger.Error("Failed to list objects",
				"error", err,
				"bucket", bucket,
				"prefix", prefix,
				"pages_processed", pageCount)
			c.metrics.IncrementCounter("s3.list.errors", nil)
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			objects = append(objects, ports.ObjectInfo{
				Key:          c.relativeKey(aws.ToString(obj.Key)),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		pageCount++
	}

	return objects, nil
}

// ensureBucketExists checks the default bucket and creates it when missing
func (c *Client) ensureBucketExists(ctx context.Context) error {
	_, err := c.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err == nil {
		return nil
	}

	var nf *s3types.NotFound
	if !errors.As(err, &nf) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	c.logger.Info("Bucket does not exist, attempting to create", "bucket", c.bucket)

	input := &s3.CreateBucketInput{Bucket: aws.String(c.bucket)}
	if c.region != "" && c.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(c.region),
		}
	}

	if _, err := c.s3Client.CreateBucket(ctx, input); err != nil {
		var bae *s3types.BucketAlreadyExists
		var baoyb *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &bae) || errors.As(err, &baoyb) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

func (c *Client) bucketOrDefault(bucket string) string {
	if bucket == "" {
		return c.bucket
	}
	return bucket
}

func (c *Client) objectKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return path.Join(c.prefix, key)
}

func (c *Client) relativeKey(key string) string {
	if c.prefix == "" {
		return key
	}
	p := path.Clean(c.prefix) + "/"
	if len(key) >= len(p) && key[:len(p)] == p {
		return key[len(p):]
	}
	return key
}

// buildAWSConfig builds the AWS configuration from the storage config
func buildAWSConfig(ctx context.Context, storageConfig *config.StorageConfig, maxRetries int) (aws.Config, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	s3Config := storageConfig.S3

	if s3Config.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(s3Config.Region))
	}

	// Use static credentials if provided
	if s3Config.AccessKeyID != "" && s3Config.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				s3Config.AccessKeyID,
				s3Config.SecretAccessKey,
				"",
			),
		))
	}

	if maxRetries > 0 {
		optFns = append(optFns, awsconfig.WithRetryMaxAttempts(maxRetries))
	}

	optFns = append(optFns, awsconfig.WithHTTPClient(&http.Client{
		Timeout: storageConfig.Timeout,
	}))

	return awsconfig.LoadDefaultConfig(ctx, optFns...)
}
