package duckdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageConfig "github.com/tigerroll/deltaloader/pkg/batch/adapter/storage/config"
	config "github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
)

func TestTableName(t *testing.T) {
	cases := []struct {
		loc  model.Location
		want string
	}{
		{model.Location{Bucket: "lake", Key: "tables/events"}, "lake_tables_events_387c3ad6"},
		{model.Location{Bucket: "lake", Key: "/tables/events/"}, "lake_tables_events_387c3ad6"},
		{model.Location{Bucket: "warehouse", Key: "orders"}, "warehouse_orders_b763bf89"},
		{model.Location{Bucket: "2024", Key: "raw/daily"}, "t_2024_raw_daily_4461c12d"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, TableName(c.loc), c.loc.String())
	}
}

func TestTableNameKeepsTablesApart(t *testing.T) {
	names := map[string]model.Location{}
	for _, loc := range []model.Location{
		{Bucket: "lake", Key: "warehouse1/orders"},
		{Bucket: "lake", Key: "warehouse2/orders"},
		{Bucket: "other", Key: "warehouse1/orders"},
		{Bucket: "lake", Key: "sales-orders"},
		{Bucket: "lake", Key: "sales_orders"},
		{Bucket: "lake", Key: "Orders"},
		{Bucket: "lake", Key: "orders"},
	} {
		name := TableName(loc)
		prev, clash := names[name]
		assert.False(t, clash, "%s and %s both map to %s", prev, loc, name)
		names[name] = loc
	}
}

func TestReaderExpr(t *testing.T) {
	expr, err := readerExpr(model.FormatCSV, "s3://b/in/2024-01-01/")
	require.NoError(t, err)
	assert.Equal(t, "read_csv_auto('s3://b/in/2024-01-01/*.csv', header = true)", expr)

	expr, err = readerExpr(model.FormatJSON, "/data/b/it's")
	require.NoError(t, err)
	assert.Equal(t, "read_json_auto('/data/b/it''s/*.json')", expr)

	_, err = readerExpr("avro", "s3://b/x")
	assert.Error(t, err)
}

func TestPathResolver(t *testing.T) {
	loc := model.Location{Bucket: "b", Key: "in/2024-01-01/"}
	assert.Equal(t, "s3://b/in/2024-01-01", NewPathResolver(storageConfig.StorageConfig{Type: "s3"})(loc))
	assert.Equal(t, "gs://b/in/2024-01-01", NewPathResolver(storageConfig.StorageConfig{Type: "gcs"})(loc))
	assert.Equal(t, filepath.Join("/srv", "b", "in", "2024-01-01"), NewPathResolver(storageConfig.StorageConfig{Type: "local", BaseDir: "/srv"})(loc))
}

func TestSecretSQL(t *testing.T) {
	assert.Equal(t,
		"CREATE OR REPLACE SECRET deltaloader_s3 (TYPE S3, KEY_ID 'AKID', SECRET 'se''cret', REGION 'eu-west-1', URL_STYLE 'vhost', USE_SSL true)",
		secretSQL(S3Secret{KeyID: "AKID", Secret: "se'cret", Region: "eu-west-1", URLStyle: "vhost", UseSSL: true}))
	assert.Equal(t,
		"CREATE OR REPLACE SECRET deltaloader_s3 (TYPE S3, PROVIDER credential_chain, ENDPOINT 'localhost:9000', USE_SSL false)",
		secretSQL(S3Secret{Endpoint: "localhost:9000"}))
}

func TestS3Secret(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")

	assert.Nil(t, s3Secret(config.TableS3Config{}, storageConfig.StorageConfig{Type: "local"}))

	secret := s3Secret(
		config.TableS3Config{URLStyle: "vhost", UseSSL: true},
		storageConfig.StorageConfig{Type: "local"},
		storageConfig.StorageConfig{Type: "s3", Region: "us-east-2", Endpoint: "http://minio:9000", ForcePathStyle: true, AccessKeyID: "id", SecretAccessKey: "key"},
	)
	require.NotNil(t, secret)
	assert.Equal(t, S3Secret{KeyID: "id", Secret: "key", Region: "us-east-2", Endpoint: "minio:9000", URLStyle: "path", UseSSL: true}, *secret)
}

func TestRelativeCatalogFile(t *testing.T) {
	assert.True(t, relativeCatalogFile("metadata.ducklake"))
	assert.True(t, relativeCatalogFile("sqlite:state/catalog.db"))
	assert.False(t, relativeCatalogFile(filepath.Join(string(filepath.Separator), "var", "lib", "catalog.ducklake")))
	assert.False(t, relativeCatalogFile("postgres:dbname=ducklake host=db"))
	assert.False(t, relativeCatalogFile("md:lake"))
	assert.False(t, relativeCatalogFile("s3://lake/catalog.ducklake"))
	assert.False(t, relativeCatalogFile(""))
}
