package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pingcap/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.uber.org/zap"
)

// Config describes how to reach the backing bucket. It is deliberately a
// plain struct rather than a viper-bound one; cmd/chromactl owns flag
// wiring.
type Config struct {
	CreateBucketIfNotExists bool
	BucketName              string
	Region                  string
	Endpoint                string
	AccessKeyID             string
	SecretAccessKey         string
	ForcePathStyle          bool
	GCSInterop              bool
}

// recalculateV4Signature works around the AWS SDK v2 signing an
// Accept-Encoding header GCS's S3-interop endpoint doesn't expect.
// https://stackoverflow.com/questions/73717477/gcp-cloud-storage-golang-aws-sdk2-upload-file-with-s3-interoperability-creds
type recalculateV4Signature struct {
	next   http.RoundTripper
	signer *v4.Signer
	cfg    aws.Config
}

func (lt *recalculateV4Signature) RoundTrip(req *http.Request) (*http.Response, error) {
	val := req.Header.Get("Accept-Encoding")
	req.Header.Del("Accept-Encoding")

	timeString := req.Header.Get("X-Amz-Date")
	timeDate, _ := time.Parse("20060102T150405Z", timeString)

	creds, _ := lt.cfg.Credentials.Retrieve(req.Context())
	if err := lt.signer.SignHTTP(req.Context(), creds, req, v4.GetPayloadHash(req.Context()), "s3", lt.cfg.Region, timeDate); err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", val)

	return lt.next.RoundTrip(req)
}

// S3Store is the S3-backed Store implementation used in production.
type S3Store struct {
	S3         *s3.Client
	BucketName string
	Region     string
}

// NewS3Store constructs and connects an S3Store, optionally creating the
// bucket and always verifying access to it before returning.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	region := "us-east-1"
	if cfg.Region != "" {
		region = cfg.Region
	}

	var awsConfigParts []func(*config.LoadOptions) error
	awsConfigParts = append(awsConfigParts, config.WithRegion(region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		awsConfigParts = append(awsConfigParts, config.WithCredentialsProvider(creds))
	}

	if cfg.GCSInterop && cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...any) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				SigningRegion:     cfg.Region,
				Source:            aws.EndpointSourceCustom,
				HostnameImmutable: true,
			}, nil
		})
		awsConfigParts = append(awsConfigParts, config.WithEndpointResolverWithOptions(resolver))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, awsConfigParts...)
	if err != nil {
		return nil, err
	}

	if cfg.GCSInterop {
		awsConfig.HTTPClient = &http.Client{Transport: &recalculateV4Signature{http.DefaultTransport, v4.NewSigner(), awsConfig}}
	}

	otelaws.AppendMiddlewares(&awsConfig.APIOptions)
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
				endpoint = "http://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	if cfg.CreateBucketIfNotExists {
		_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(cfg.BucketName)})
		if err != nil {
			var owned *s3types.BucketAlreadyOwnedByYou
			var exists *s3types.BucketAlreadyExists
			if !errors.As(err, &owned) && !errors.As(err, &exists) {
				return nil, fmt.Errorf("unable to create bucket %s: %w", cfg.BucketName, err)
			}
			log.Info("bucket already exists, continuing", zap.String("bucket", cfg.BucketName))
		}
	}

	if _, err := client.ListObjects(ctx, &s3.ListObjectsInput{Bucket: aws.String(cfg.BucketName)}); err != nil {
		return nil, fmt.Errorf("unable to access bucket %s: %w", cfg.BucketName, err)
	}

	return &S3Store{S3: client, BucketName: cfg.BucketName, Region: cfg.Region}, nil
}

// NewS3StoreForTesting configures a client against a MinIO-style endpoint
// with static credentials, for integration tests.
func NewS3StoreForTesting(ctx context.Context, bucketName, region, endpoint, accessKey, secretKey string) (*S3Store, error) {
	creds := credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")

	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(creds),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, err
	}

	otelaws.AppendMiddlewares(&cfg.APIOptions)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &S3Store{S3: client, BucketName: bucketName, Region: region}, nil
}

func (s *S3Store) Put(ctx context.Context, path string, content []byte) error {
	log.Debug("object store put", zap.String("path", path), zap.Int("bytes", len(content)))
	_, err := s.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.BucketName),
		Key:    aws.String(path),
		Body:   bytes.NewReader(content),
	})
	return err
}

func (s *S3Store) Get(ctx context.Context, path string) ([]byte, error) {
	result, err := s.S3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.BucketName),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, err
	}
	defer result.Body.Close()
	return io.ReadAll(result.Body)
}

func (s *S3Store) Delete(ctx context.Context, path string) error {
	_, err := s.S3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.BucketName),
		Key:    aws.String(path),
	})
	return err
}

func (s *S3Store) HasPrefix(ctx context.Context, prefix string) (bool, error) {
	result, err := s.S3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.BucketName),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		log.Error("error listing objects with prefix", zap.String("prefix", prefix), zap.Error(err))
		return false, err
	}
	return len(result.Contents) > 0, nil
}
