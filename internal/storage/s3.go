package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tessloc/tessloc/internal/errors"
)

// S3Storage implements ObjectStorage for S3-compatible services.
type S3Storage struct {
	client     *s3.Client
	bucket     string
	maxRetries int
}

// S3Config holds the S3 connection settings.
type S3Config struct {
	// Region is the AWS region of the bucket.
	Region string
	// Endpoint is an optional custom endpoint for MinIO or LocalStack.
	Endpoint string
	// UsePathStyle enables path-style addressing, required by MinIO.
	UsePathStyle bool
}

// NewS3Storage creates an S3 storage client for bucket.
func NewS3Storage(ctx context.Context, bucket string, cfg S3Config) (*S3Storage, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeUploadFailed,
			"loading AWS configuration", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Storage{
		client:     s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:     bucket,
		maxRetries: 3,
	}, nil
}

// NewS3StorageWithClient creates an S3 storage over a pre-built client.
func NewS3StorageWithClient(client *s3.Client, bucket string) *S3Storage {
	return &S3Storage{client: client, bucket: bucket, maxRetries: 3}
}

// Upload uploads a local file to S3.
func (s *S3Storage) Upload(ctx context.Context, localPath, objectPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("opening %s", localPath), err)
	}
	defer file.Close()

	err = s.retryWithBackoff(ctx, func() error {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectPath),
			Body:   file,
		})
		return err
	})
	if err != nil {
		return errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("uploading %s", objectPath), err)
	}
	return nil
}

// Download downloads an object from S3 to localPath.
func (s *S3Storage) Download(ctx context.Context, objectPath, localPath string) error {
	var resp *s3.GetObjectOutput
	err := s.retryWithBackoff(ctx, func() error {
		var getErr error
		resp, getErr = s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectPath),
		})
		var noSuchKey *types.NoSuchKey
		if stderrors.As(getErr, &noSuchKey) {
			return errors.NewStorageError(errors.CodeObjectNotFound,
				fmt.Sprintf("object %s does not exist", objectPath), getErr)
		}
		return getErr
	})
	if err != nil {
		if errors.GetCode(err) == errors.CodeObjectNotFound {
			return err
		}
		return errors.NewStorageError(errors.CodeDownloadFailed,
			fmt.Sprintf("downloading %s", objectPath), err)
	}
	defer resp.Body.Close()

	file, err := os.Create(localPath)
	if err != nil {
		return errors.NewStorageError(errors.CodeDownloadFailed,
			fmt.Sprintf("creating %s", localPath), err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return errors.NewStorageError(errors.CodeDownloadFailed,
			fmt.Sprintf("writing %s", localPath), err)
	}
	return nil
}

// Exists reports whether an object is present in the bucket.
func (s *S3Storage) Exists(ctx context.Context, objectPath string) (bool, error) {
	var exists bool
	err := s.retryWithBackoff(ctx, func() error {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectPath),
		})
		if err != nil {
			var notFound *types.NotFound
			if stderrors.As(err, &notFound) {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// Delete removes an object. S3 deletes are idempotent.
func (s *S3Storage) Delete(ctx context.Context, objectPath string) error {
	err := s.retryWithBackoff(ctx, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectPath),
		})
		return err
	})
	if err != nil {
		return errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("deleting %s", objectPath), err)
	}
	return nil
}

// ListObjects returns every object path under prefix.
func (s *S3Storage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var objects []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.NewStorageError(errors.CodeDownloadFailed,
				fmt.Sprintf("listing objects under %s", prefix), err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, aws.ToString(obj.Key))
		}
	}
	return objects, nil
}

// retryWithBackoff runs operation with exponential backoff. Missing-object
// results are terminal and never retried.
func (s *S3Storage) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if errors.GetCode(lastErr) == errors.CodeObjectNotFound {
			return lastErr
		}

		if attempt < s.maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
