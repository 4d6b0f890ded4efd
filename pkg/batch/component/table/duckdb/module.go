package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/fx"

	"github.com/tigerroll/deltaloader/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/deltaloader/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/deltaloader/pkg/batch/component/table"
	config "github.com/tigerroll/deltaloader/pkg/batch/core/config"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/awsconfig"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

// EngineName is the value of loader.table.engine that selects this package.
const EngineName = "duckdb"

const configPhase = "config"

// EngineParams are the dependencies of NewConfiguredEngine.
type EngineParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
	Resolver  storage.StorageConnectionResolver
}

// NewConfiguredEngine opens an in-process DuckDB database and wires it to the staging and
// table storage connections. The database is closed when the application stops.
func NewConfiguredEngine(p EngineParams) (table.Engine, error) {
	tc := p.Config.Loader.Table
	if tc.Engine != "" && tc.Engine != EngineName {
		return nil, exception.NewConfigurationErrorf(configPhase, "unsupported table engine %q", tc.Engine)
	}

	stagingCfg, err := storageConfig.Lookup(p.Config, p.Config.Loader.Storage.StagingRef)
	if err != nil {
		return nil, exception.NewConfigurationError(configPhase, "invalid staging storage", err)
	}
	tableCfg, err := storageConfig.Lookup(p.Config, p.Config.Loader.Storage.TableRef)
	if err != nil {
		return nil, exception.NewConfigurationError(configPhase, "invalid table storage", err)
	}
	manifests, err := p.Resolver.ResolveStorageConnection(context.Background(), p.Config.Loader.Storage.TableRef)
	if err != nil {
		return nil, exception.NewConfigurationError(configPhase, fmt.Sprintf("cannot resolve table storage '%s'", p.Config.Loader.Storage.TableRef), err)
	}

	if (tableCfg.Type == "s3" || tableCfg.Type == "gcs") && relativeCatalogFile(tc.CatalogPath) {
		logger.Warnf("DuckLake catalog '%s' is a relative local file but tables live on %s. "+
			"If the file is lost, every table is created again and earlier data files drop out of the manifest.",
			tc.CatalogPath, tableCfg.Type)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, exception.NewConfigurationError(configPhase, "failed to open DuckDB", err)
	}
	// ATTACH and secrets are per database; one connection keeps statement order simple.
	db.SetMaxOpenConns(1)

	opts := Options{
		Catalog:     tc.Catalog,
		Schema:      tc.Schema,
		CatalogPath: tc.CatalogPath,
		ManifestDir: tc.ManifestDir,
		S3:          s3Secret(tc.S3, stagingCfg, tableCfg),
	}
	engine := NewEngine(db, opts, NewPathResolver(stagingCfg), NewPathResolver(tableCfg), manifests)
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Debugf("Closing DuckDB.")
			return engine.Close()
		},
	})
	return engine, nil
}

// s3Secret merges the engine's S3 settings with the first S3 storage connection. It returns
// nil when no side is on S3.
func s3Secret(tc config.TableS3Config, sides ...storageConfig.StorageConfig) *S3Secret {
	for _, sc := range sides {
		if sc.Type != "s3" {
			continue
		}
		secret := &S3Secret{
			Region:   firstNonEmpty(tc.Region, sc.Region),
			Endpoint: stripScheme(firstNonEmpty(tc.Endpoint, sc.Endpoint)),
			URLStyle: tc.URLStyle,
			UseSSL:   tc.UseSSL,
		}
		if sc.ForcePathStyle {
			secret.URLStyle = "path"
		}
		opts := awsconfig.SessionOptions{
			AccessKeyID:     sc.AccessKeyID,
			SecretAccessKey: sc.SecretAccessKey,
			SessionToken:    sc.SessionToken,
		}
		if id, key, token, ok := opts.StaticCredentials(); ok {
			secret.KeyID, secret.Secret, secret.SessionToken = id, key, token
		}
		return secret
	}
	return nil
}

// relativeCatalogFile reports whether a DuckLake catalog path names a DuckDB or SQLite file
// relative to the working directory.
func relativeCatalogFile(catalogPath string) bool {
	p := strings.TrimPrefix(strings.TrimPrefix(catalogPath, "duckdb:"), "sqlite:")
	for _, remote := range []string{"postgres:", "mysql:", "md:", "motherduck:"} {
		if strings.HasPrefix(p, remote) {
			return false
		}
	}
	return p != "" && !strings.Contains(p, "://") && !filepath.IsAbs(p)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func stripScheme(endpoint string) string {
	if i := strings.Index(endpoint, "://"); i >= 0 {
		return endpoint[i+3:]
	}
	return endpoint
}

// Module provides the DuckDB table engine.
var Module = fx.Options(
	fx.Provide(NewConfiguredEngine),
)
