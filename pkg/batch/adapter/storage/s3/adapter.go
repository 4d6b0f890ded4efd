// Package s3 provides an Amazon S3 (and S3-compatible) implementation of the storage adapter interfaces.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	storageAdapter "github.com/tigerroll/deltaloader/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/deltaloader/pkg/batch/adapter/storage/config"
	coreConfig "github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/awsconfig"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

const (
	// ProviderType defines the type identifier for this S3 storage provider.
	ProviderType = "s3"
)

// s3Adapter implements storage.StorageConnection over the S3 API.
type s3Adapter struct {
	cfg    storageConfig.StorageConfig
	name   string
	client s3iface.S3API
}

// Verify that s3Adapter implements the storage.StorageConnection interface.
var _ storageAdapter.StorageConnection = (*s3Adapter)(nil)

// NewS3Adapter creates an adapter with its own AWS session.
func NewS3Adapter(cfg storageConfig.StorageConfig, name string) (storageAdapter.StorageConnection, error) {
	sess, err := awsconfig.NewSession(awsconfig.SessionOptions{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		SessionToken:    cfg.SessionToken,
		MaxRetries:      cfg.MaxRetries,
		ForcePathStyle:  cfg.ForcePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 storage adapter '%s': %w", name, err)
	}
	return &s3Adapter{cfg: cfg, name: name, client: awss3.New(sess)}, nil
}

// NewS3AdapterWithClient creates an adapter around an existing client. Used to substitute fakes.
func NewS3AdapterWithClient(cfg storageConfig.StorageConfig, name string, client s3iface.S3API) storageAdapter.StorageConnection {
	return &s3Adapter{cfg: cfg, name: name, client: client}
}

// NewS3Provider creates the provider for "s3" connections.
func NewS3Provider(cfg *coreConfig.Config) storageAdapter.StorageProvider {
	return storageAdapter.NewBaseProvider(ProviderType, cfg, NewS3Adapter)
}

// Close releases nothing; the SDK client holds no per-connection resources.
func (a *s3Adapter) Close() error {
	logger.Debugf("S3 storage adapter '%s' closed.", a.name)
	return nil
}

// Type returns "s3".
func (a *s3Adapter) Type() string {
	return ProviderType
}

// Name returns the name of this connection.
func (a *s3Adapter) Name() string {
	return a.name
}

func (a *s3Adapter) bucket(bucket string) string {
	if bucket == "" {
		return a.cfg.BucketName
	}
	return bucket
}

// Upload writes data to s3://bucket/objectName in a single PutObject call.
// Readers that cannot seek are buffered in memory first.
func (a *s3Adapter) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	body, ok := data.(io.ReadSeeker)
	if !ok {
		buf, err := io.ReadAll(data)
		if err != nil {
			return fmt.Errorf("buffering upload for s3://%s/%s: %w", a.bucket(bucket), objectName, err)
		}
		body = bytes.NewReader(buf)
	}

	input := &awss3.PutObjectInput{
		Bucket: aws.String(a.bucket(bucket)),
		Key:    aws.String(objectName),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := a.client.PutObjectWithContext(ctx, input); err != nil {
		return fmt.Errorf("putting S3 object s3://%s/%s: %w", a.bucket(bucket), objectName, err)
	}
	logger.Debugf("Uploaded s3://%s/%s (s3 adapter '%s').", a.bucket(bucket), objectName, a.name)
	return nil
}

// Download returns the body of s3://bucket/objectName. The caller must close it.
func (a *s3Adapter) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	out, err := a.client.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(a.bucket(bucket)),
		Key:    aws.String(objectName),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok {
			switch aerr.Code() {
			case awss3.ErrCodeNoSuchBucket, awss3.ErrCodeNoSuchKey:
				return nil, fmt.Errorf("S3 object s3://%s/%s does not exist: %w", a.bucket(bucket), objectName, err)
			}
		}
		return nil, fmt.Errorf("fetching S3 object s3://%s/%s: %w", a.bucket(bucket), objectName, err)
	}
	return out.Body, nil
}

// ListObjects pages through every object under prefix.
func (a *s3Adapter) ListObjects(ctx context.Context, bucket, prefix string, fn func(obj storageAdapter.ObjectInfo) error) error {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket(bucket)),
		Prefix: aws.String(prefix),
	}
	if a.cfg.PageSize > 0 {
		input.MaxKeys = aws.Int64(int64(a.cfg.PageSize))
	}

	var cbErr error
	pages := 0
	err := a.client.ListObjectsV2PagesWithContext(ctx, input, func(page *awss3.ListObjectsV2Output, lastPage bool) bool {
		pages++
		for _, obj := range page.Contents {
			info := storageAdapter.ObjectInfo{
				Key:          aws.StringValue(obj.Key),
				LastModified: aws.TimeValue(obj.LastModified),
				Size:         aws.Int64Value(obj.Size),
			}
			if cbErr = fn(info); cbErr != nil {
				return false
			}
		}
		return true
	})
	if cbErr != nil {
		return cbErr
	}
	if err != nil {
		return fmt.Errorf("listing s3://%s/%s: %w", a.bucket(bucket), prefix, err)
	}
	logger.Debugf("Listed s3://%s/%s in %d page(s) (s3 adapter '%s').", a.bucket(bucket), prefix, pages, a.name)
	return nil
}

// ListPrefixes pages through the common prefixes directly below prefix.
func (a *s3Adapter) ListPrefixes(ctx context.Context, bucket, prefix, delimiter string, fn func(prefix string) error) error {
	input := &awss3.ListObjectsV2Input{
		Bucket:    aws.String(a.bucket(bucket)),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String(delimiter),
	}
	if a.cfg.PageSize > 0 {
		input.MaxKeys = aws.Int64(int64(a.cfg.PageSize))
	}

	var cbErr error
	err := a.client.ListObjectsV2PagesWithContext(ctx, input, func(page *awss3.ListObjectsV2Output, lastPage bool) bool {
		for _, cp := range page.CommonPrefixes {
			if cbErr = fn(aws.StringValue(cp.Prefix)); cbErr != nil {
				return false
			}
		}
		return true
	})
	if cbErr != nil {
		return cbErr
	}
	if err != nil {
		return fmt.Errorf("listing prefixes of s3://%s/%s: %w", a.bucket(bucket), prefix, err)
	}
	return nil
}

// DeleteObject removes s3://bucket/objectName. S3 reports success for missing keys.
func (a *s3Adapter) DeleteObject(ctx context.Context, bucket, objectName string) error {
	_, err := a.client.DeleteObjectWithContext(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(a.bucket(bucket)),
		Key:    aws.String(objectName),
	})
	if err != nil {
		return fmt.Errorf("deleting S3 object s3://%s/%s: %w", a.bucket(bucket), objectName, err)
	}
	return nil
}
