package export

import (
	"bytes"
	"context"
	"errors"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/smallbiznis/rfidtrack/internal/config"
)

// ObjectSink stores finished export files.
type ObjectSink interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Location(key string) string
}

// S3Sink writes exports to an S3 compatible bucket (AWS S3 or MinIO).
type S3Sink struct {
	client *s3.Client
	bucket string
}

// NewObjectSink returns nil when no bucket is configured.
func NewObjectSink(cfg config.Config) (ObjectSink, error) {
	if cfg.Export.Bucket == "" {
		return nil, nil
	}
	return NewS3Sink(context.Background(), cfg.Export)
}

func NewS3Sink(ctx context.Context, cfg config.ExportConfig, optFns ...func(*s3.Options)) (*S3Sink, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("export bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	opts := []func(*s3.Options){func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Older MinIO builds reject streaming checksum trailers.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
	}}
	opts = append(opts, optFns...)

	return &S3Sink{
		client: s3.NewFromConfig(awsCfg, opts...),
		bucket: cfg.Bucket,
	}, nil
}

func (s *S3Sink) Put(ctx context.Context, key string, body []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	_, err := s.client.PutObject(ctx, input)
	return err
}

func (s *S3Sink) Location(key string) string {
	return "s3://" + s.bucket + "/" + key
}
