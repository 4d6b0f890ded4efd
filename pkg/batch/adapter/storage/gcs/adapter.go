// Package gcs provides a Google Cloud Storage implementation of the storage adapter interfaces.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	storageAdapter "github.com/tigerroll/deltaloader/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/deltaloader/pkg/batch/adapter/storage/config"
	coreConfig "github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

const (
	// ProviderType defines the type identifier for this GCS storage provider.
	ProviderType = "gcs"
)

// objectStore is the subset of the GCS client the adapter needs.
type objectStore interface {
	newWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser
	newReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	objects(ctx context.Context, bucket string, q *storage.Query) objectIterator
	delete(ctx context.Context, bucket, object string) error
	close() error
}

// objectIterator matches *storage.ObjectIterator.
type objectIterator interface {
	Next() (*storage.ObjectAttrs, error)
}

// clientStore adapts *storage.Client to objectStore.
type clientStore struct {
	client *storage.Client
}

func (c *clientStore) newWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
	w := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

func (c *clientStore) newReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return c.client.Bucket(bucket).Object(object).NewReader(ctx)
}

func (c *clientStore) objects(ctx context.Context, bucket string, q *storage.Query) objectIterator {
	return c.client.Bucket(bucket).Objects(ctx, q)
}

func (c *clientStore) delete(ctx context.Context, bucket, object string) error {
	return c.client.Bucket(bucket).Object(object).Delete(ctx)
}

func (c *clientStore) close() error {
	return c.client.Close()
}

// gcsAdapter implements storage.StorageConnection over Cloud Storage.
type gcsAdapter struct {
	cfg   storageConfig.StorageConfig
	name  string
	store objectStore
}

// Verify that gcsAdapter implements the storage.StorageConnection interface.
var _ storageAdapter.StorageConnection = (*gcsAdapter)(nil)

// NewGCSAdapter opens a Cloud Storage client. Credentials come from the connection's
// credentials_file, then GOOGLE_APPLICATION_CREDENTIALS, then the default chain.
func NewGCSAdapter(cfg storageConfig.StorageConfig, name string) (storageAdapter.StorageConnection, error) {
	var opts []option.ClientOption
	credentialsFile := cfg.CredentialsFile
	if credentialsFile == "" {
		credentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs storage adapter '%s': failed to create client: %w", name, err)
	}
	return &gcsAdapter{cfg: cfg, name: name, store: &clientStore{client: client}}, nil
}

// NewGCSProvider creates the provider for "gcs" connections.
func NewGCSProvider(cfg *coreConfig.Config) storageAdapter.StorageProvider {
	return storageAdapter.NewBaseProvider(ProviderType, cfg, NewGCSAdapter)
}

// Close closes the underlying client.
func (a *gcsAdapter) Close() error {
	if err := a.store.close(); err != nil {
		return fmt.Errorf("gcs storage adapter '%s': %w", a.name, err)
	}
	logger.Debugf("GCS storage adapter '%s' closed.", a.name)
	return nil
}

// Type returns "gcs".
func (a *gcsAdapter) Type() string {
	return ProviderType
}

// Name returns the name of this connection.
func (a *gcsAdapter) Name() string {
	return a.name
}

func (a *gcsAdapter) bucket(bucket string) string {
	if bucket == "" {
		return a.cfg.BucketName
	}
	return bucket
}

// Upload writes data to gs://bucket/objectName. The object becomes visible when the writer closes.
func (a *gcsAdapter) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	w := a.store.newWriter(ctx, a.bucket(bucket), objectName, contentType)
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return fmt.Errorf("writing gs://%s/%s: %w", a.bucket(bucket), objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing gs://%s/%s: %w", a.bucket(bucket), objectName, err)
	}
	logger.Debugf("Uploaded gs://%s/%s (gcs adapter '%s').", a.bucket(bucket), objectName, a.name)
	return nil
}

// Download returns a reader for gs://bucket/objectName. The caller must close it.
func (a *gcsAdapter) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	r, err := a.store.newReader(ctx, a.bucket(bucket), objectName)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("GCS object gs://%s/%s does not exist: %w", a.bucket(bucket), objectName, err)
		}
		return nil, fmt.Errorf("reading gs://%s/%s: %w", a.bucket(bucket), objectName, err)
	}
	return r, nil
}

// ListObjects iterates every object under prefix.
func (a *gcsAdapter) ListObjects(ctx context.Context, bucket, prefix string, fn func(obj storageAdapter.ObjectInfo) error) error {
	it := a.store.objects(ctx, a.bucket(bucket), &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("listing gs://%s/%s: %w", a.bucket(bucket), prefix, err)
		}
		if attrs.Name == "" {
			continue
		}
		if err := fn(storageAdapter.ObjectInfo{Key: attrs.Name, LastModified: attrs.Updated, Size: attrs.Size}); err != nil {
			return err
		}
	}
}

// ListPrefixes iterates the synthetic directories directly below prefix.
func (a *gcsAdapter) ListPrefixes(ctx context.Context, bucket, prefix, delimiter string, fn func(prefix string) error) error {
	q := &storage.Query{Prefix: prefix, Delimiter: delimiter}
	it := a.store.objects(ctx, a.bucket(bucket), q)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("listing prefixes of gs://%s/%s: %w", a.bucket(bucket), prefix, err)
		}
		// With a delimiter set, prefix entries carry only Prefix.
		if attrs.Prefix == "" {
			continue
		}
		if err := fn(attrs.Prefix); err != nil {
			return err
		}
	}
}

// DeleteObject removes gs://bucket/objectName. A missing object is not an error.
func (a *gcsAdapter) DeleteObject(ctx context.Context, bucket, objectName string) error {
	if err := a.store.delete(ctx, a.bucket(bucket), objectName); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			logger.Warnf("Attempted to delete non-existent object gs://%s/%s (gcs adapter '%s').", a.bucket(bucket), objectName, a.name)
			return nil
		}
		return fmt.Errorf("deleting gs://%s/%s: %w", a.bucket(bucket), objectName, err)
	}
	return nil
}
