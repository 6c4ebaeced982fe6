package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// R2Storage stores objects in a Cloudflare R2 bucket through the S3 API.
type R2Storage struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	publicURL string
	logger    *slog.Logger
}

// NewR2Storage creates an S3 client pointed at the account's R2 endpoint.
func NewR2Storage(cfg R2Config, logger *slog.Logger) (*R2Storage, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("r2 bucket name is required")
	}
	if cfg.Endpoint == "" && cfg.AccountID == "" {
		return nil, errors.New("r2 account id is required")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	client := s3.NewFromConfig(aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	logger.Info("initialized R2 storage", "bucket", cfg.BucketName, "endpoint", endpoint)

	return &R2Storage{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    cfg.BucketName,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		logger:    logger,
	}, nil
}

func (s *R2Storage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if err := validKey(key); err != nil {
		return opError("put", key, err)
	}

	if !opts.Overwrite {
		exists, err := s.Exists(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return opError("put", key, ErrKeyExists)
		}
	}

	// The S3 client needs a seekable body to sign, so the object is
	// buffered; documents are bounded by the tier size limit.
	body, err := io.ReadAll(limitReader(data, opts.MaxSize))
	if err != nil {
		return opError("put", key, err)
	}
	if opts.MaxSize > 0 && int64(len(body)) > opts.MaxSize {
		return opError("put", key, ErrTooLarge)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = DetectContentType(key, body)
	}

	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
		Metadata:      opts.Metadata,
	})
	if err != nil {
		return opError("put", key, mapS3Error(err))
	}

	s.logger.Debug("stored object in R2", "key", key, "size", len(body), "etag", aws.ToString(out.ETag))
	return nil
}

func (s *R2Storage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := validKey(key); err != nil {
		return nil, ObjectInfo{}, opError("get", key, err)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, ObjectInfo{}, opError("get", key, mapS3Error(err))
	}

	return out.Body, ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
		ETag:         aws.ToString(out.ETag),
	}, nil
}

func (s *R2Storage) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return opError("delete", key, err)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if mapped := mapS3Error(err); !errors.Is(mapped, ErrNotFound) {
			return opError("delete", key, mapped)
		}
	}
	return nil
}

// URL returns the public URL when a custom domain is configured and expires
// is zero, otherwise a presigned GET.
func (s *R2Storage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if err := validKey(key); err != nil {
		return "", opError("url", key, err)
	}
	if s.publicURL != "" && expires == 0 {
		return s.publicURL + "/" + key, nil
	}
	if expires == 0 {
		expires = 15 * time.Minute
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", opError("url", key, err)
	}
	return req.URL, nil
}

func (s *R2Storage) Exists(ctx context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, opError("exists", key, err)
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		mapped := mapS3Error(err)
		if errors.Is(mapped, ErrNotFound) {
			return false, nil
		}
		return false, opError("exists", key, mapped)
	}
	return true, nil
}

func limitReader(r io.Reader, max int64) io.Reader {
	if max <= 0 {
		return r
	}
	return io.LimitReader(r, max+1)
}

// mapS3Error converts SDK errors into the package sentinels.
func mapS3Error(err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return ErrNotFound
		case "AccessDenied", "Forbidden":
			return ErrAccessDenied
		}
	}

	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &status) {
		switch status.HTTPStatusCode() {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusForbidden:
			return ErrAccessDenied
		}
	}

	return fmt.Errorf("r2: %w", err)
}
