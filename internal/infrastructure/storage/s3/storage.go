// Package s3 stores capture images in an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kirillkom/docscan/internal/core/domain"
	"github.com/kirillkom/docscan/internal/infrastructure/resilience"
)

type objectAPI interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	KeyPrefix       string
}

type Storage struct {
	client   objectAPI
	bucket   string
	prefix   string
	executor *resilience.Executor
}

func New(ctx context.Context, cfg Config, executor *resilience.Executor) (*Storage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newWithClient(client, cfg.Bucket, cfg.KeyPrefix, executor), nil
}

func newWithClient(client objectAPI, bucket, prefix string, executor *resilience.Executor) *Storage {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Storage{client: client, bucket: bucket, prefix: prefix, executor: executor}
}

// Save buffers the object so a retried upload can replay the body.
func (s *Storage) Save(ctx context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read object body: %w", err)
	}
	return s.executor.Execute(ctx, "s3.put", func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(s.prefix + key),
			Body:        bytes.NewReader(raw),
			ContentType: aws.String(contentType(key)),
		})
		if err != nil {
			return fmt.Errorf("s3 put %s: %w", key, err)
		}
		return nil
	}, classifyS3Error)
}

func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := resilience.Call(ctx, s.executor, "s3.get", func(ctx context.Context) (*awss3.GetObjectOutput, error) {
		return s.client.GetObject(ctx, &awss3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.prefix + key),
		})
	}, classifyS3Error)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.WrapError(domain.ErrNotFound, "open object", fmt.Errorf("key %s", key))
		}
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	return out.Body, nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.executor.Execute(ctx, "s3.delete", func(ctx context.Context) error {
		_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.prefix + key),
		})
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("s3 delete %s: %w", key, err)
		}
		return nil
	}, classifyS3Error)
}

func classifyS3Error(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyContext(err); ok {
		return class
	}
	if isNotFound(err) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}

func contentType(key string) string {
	if strings.HasSuffix(strings.ToLower(key), ".jpg") {
		return "image/jpeg"
	}
	return "application/octet-stream"
}
