// Package duckdb implements the table engine on DuckDB with the DuckLake extension.
// Staged folders are scanned with DuckDB's file readers and written to a DuckLake catalog whose
// data files live at the table location.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tigerroll/deltaloader/pkg/batch/adapter/storage"
	"github.com/tigerroll/deltaloader/pkg/batch/component/table"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

const secretName = "deltaloader_s3"

// S3Secret holds the object store settings DuckDB's httpfs extension uses.
// An empty KeyID makes DuckDB resolve credentials through the AWS credential chain.
type S3Secret struct {
	KeyID        string
	Secret       string
	SessionToken string
	Region       string
	Endpoint     string
	URLStyle     string
	UseSSL       bool
}

// Options configures an Engine.
type Options struct {
	// Catalog is the alias of the attached DuckLake catalog.
	Catalog string
	// Schema receives the tables.
	Schema string
	// CatalogPath is the DuckLake metadata location, without the "ducklake:" prefix.
	CatalogPath string
	// ManifestDir is the directory below the table path that holds the manifest.
	ManifestDir string
	// S3 is nil when neither side lives on S3.
	S3 *S3Secret
}

// Engine implements table.Engine.
type Engine struct {
	db        *sql.DB
	opts      Options
	staging   PathResolver
	tables    PathResolver
	manifests storage.StorageExecutor

	mu          sync.Mutex
	initialized bool
	dataPath    string // DATA_PATH of the attached catalog, "" when detached
}

// NewEngine creates an Engine on db. staging and tables render locations for DuckDB; manifests
// receives the manifest file and must address the table bucket.
func NewEngine(db *sql.DB, opts Options, staging, tables PathResolver, manifests storage.StorageExecutor) *Engine {
	return &Engine{db: db, opts: opts, staging: staging, tables: tables, manifests: manifests}
}

// Close closes the DuckDB handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

// setup loads the extensions and the S3 secret once per database.
func (e *Engine) setup(ctx context.Context) error {
	if e.initialized {
		return nil
	}
	logger.Debugf("Initializing DuckDB extensions.")
	for _, ext := range []string{"ducklake", "httpfs"} {
		if _, err := e.db.ExecContext(ctx, "INSTALL "+ext); err != nil {
			return fmt.Errorf("failed to install %s extension: %w", ext, err)
		}
		if _, err := e.db.ExecContext(ctx, "LOAD "+ext); err != nil {
			return fmt.Errorf("failed to load %s extension: %w", ext, err)
		}
	}
	if e.opts.S3 != nil {
		if _, err := e.db.ExecContext(ctx, secretSQL(*e.opts.S3)); err != nil {
			return fmt.Errorf("failed to configure S3 credentials: %w", err)
		}
	}
	e.initialized = true
	return nil
}

func secretSQL(s S3Secret) string {
	parts := []string{"TYPE S3"}
	if s.KeyID != "" {
		parts = append(parts, "KEY_ID "+quoteLiteral(s.KeyID), "SECRET "+quoteLiteral(s.Secret))
		if s.SessionToken != "" {
			parts = append(parts, "SESSION_TOKEN "+quoteLiteral(s.SessionToken))
		}
	} else {
		parts = append(parts, "PROVIDER credential_chain")
	}
	if s.Region != "" {
		parts = append(parts, "REGION "+quoteLiteral(s.Region))
	}
	if s.Endpoint != "" {
		parts = append(parts, "ENDPOINT "+quoteLiteral(s.Endpoint))
	}
	if s.URLStyle != "" {
		parts = append(parts, "URL_STYLE "+quoteLiteral(s.URLStyle))
	}
	parts = append(parts, fmt.Sprintf("USE_SSL %t", s.UseSSL))
	return fmt.Sprintf("CREATE OR REPLACE SECRET %s (%s)", secretName, strings.Join(parts, ", "))
}

// attach makes sure the catalog is attached with the table location as DATA_PATH and
// returns the fully qualified table name.
func (e *Engine) attach(ctx context.Context, tbl model.Location) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.setup(ctx); err != nil {
		return "", err
	}
	dataPath := strings.TrimRight(e.tables(tbl), "/") + "/"
	catalog := quoteIdent(e.opts.Catalog)
	if e.dataPath != dataPath {
		if e.dataPath != "" {
			if _, err := e.db.ExecContext(ctx, "DETACH "+catalog); err != nil {
				return "", fmt.Errorf("failed to detach catalog %s: %w", e.opts.Catalog, err)
			}
			e.dataPath = ""
		}
		logger.Infof("Attaching DuckLake catalog %s (data path %s).", e.opts.Catalog, dataPath)
		attachSQL := fmt.Sprintf("ATTACH %s AS %s (DATA_PATH %s)",
			quoteLiteral("ducklake:"+e.opts.CatalogPath), catalog, quoteLiteral(dataPath))
		if _, err := e.db.ExecContext(ctx, attachSQL); err != nil {
			return "", fmt.Errorf("failed to attach DuckLake catalog: %w", err)
		}
		schemaSQL := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s.%s", catalog, quoteIdent(e.opts.Schema))
		if _, err := e.db.ExecContext(ctx, schemaSQL); err != nil {
			return "", fmt.Errorf("failed to create schema %s: %w", e.opts.Schema, err)
		}
		e.dataPath = dataPath
	}
	return fmt.Sprintf("%s.%s.%s", catalog, quoteIdent(e.opts.Schema), quoteIdent(TableName(tbl))), nil
}

// TableExists implements table.Engine.
func (e *Engine) TableExists(ctx context.Context, tbl model.Location) (bool, error) {
	if _, err := e.attach(ctx, tbl); err != nil {
		return false, err
	}
	var count int
	err := e.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_catalog = ? AND table_schema = ? AND table_name = ?`,
		e.opts.Catalog, e.opts.Schema, TableName(tbl),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", tbl, err)
	}
	return count > 0, nil
}

func (e *Engine) prepare(ctx context.Context, req table.ApplyRequest) (target, reader string, err error) {
	target, err = e.attach(ctx, req.Table)
	if err != nil {
		return "", "", err
	}
	reader, err = readerExpr(req.Format, e.staging(req.Staging))
	if err != nil {
		return "", "", err
	}
	return target, reader, nil
}

// Create implements table.Engine.
func (e *Engine) Create(ctx context.Context, req table.ApplyRequest) error {
	target, reader, err := e.prepare(ctx, req)
	if err != nil {
		return err
	}
	_, err = e.db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", target, reader))
	return err
}

// Append implements table.Engine.
func (e *Engine) Append(ctx context.Context, req table.ApplyRequest) error {
	target, reader, err := e.prepare(ctx, req)
	if err != nil {
		return err
	}
	_, err = e.db.ExecContext(ctx, insertSQL(target, reader))
	return err
}

// Overwrite implements table.Engine. The delete and insert commit as one snapshot.
func (e *Engine) Overwrite(ctx context.Context, req table.ApplyRequest) error {
	target, reader, err := e.prepare(ctx, req)
	if err != nil {
		return err
	}
	return e.inTx(ctx, func(tx *sql.Tx) error {
		return execAll(ctx, tx, "DELETE FROM "+target, insertSQL(target, reader))
	})
}

// Merge implements table.Engine. Rows whose key appears in the batch are replaced; the others
// are kept. A batch carrying the same key more than once is rejected and nothing is written.
func (e *Engine) Merge(ctx context.Context, req table.ApplyRequest) error {
	target, reader, err := e.prepare(ctx, req)
	if err != nil {
		return err
	}
	key := quoteIdent(req.PrimaryKey)
	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s IN (SELECT %s FROM %s)", target, key, key, reader)
	return e.inTx(ctx, func(tx *sql.Tx) error {
		var dup interface{}
		err := tx.QueryRowContext(ctx, duplicateKeySQL(key, reader)).Scan(&dup)
		switch {
		case err == nil:
			return fmt.Errorf("staged folder %s has more than one row with %s = %v; merge needs unique keys", req.Staging, req.PrimaryKey, dup)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to check merge keys of %s: %w", req.Staging, err)
		}
		return execAll(ctx, tx, deleteSQL, insertSQL(target, reader))
	})
}

func insertSQL(target, reader string) string {
	return fmt.Sprintf("INSERT INTO %s BY NAME SELECT * FROM %s", target, reader)
}

func duplicateKeySQL(key, reader string) string {
	return fmt.Sprintf("SELECT %s FROM %s GROUP BY %s HAVING COUNT(*) > 1 LIMIT 1", key, reader, key)
}

func execAll(ctx context.Context, tx *sql.Tx, statements ...string) error {
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (e *Engine) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Errorf("Rollback failed: %v", rbErr)
		}
		return err
	}
	return tx.Commit()
}

// GenerateManifest implements table.Engine. It writes the current data files of the table,
// one per line, to <table>/<manifest_dir>/manifest.
func (e *Engine) GenerateManifest(ctx context.Context, tbl model.Location) error {
	if _, err := e.attach(ctx, tbl); err != nil {
		return err
	}
	query := fmt.Sprintf("SELECT data_file FROM ducklake_list_files(%s, %s, schema => %s)",
		quoteLiteral(e.opts.Catalog), quoteLiteral(TableName(tbl)), quoteLiteral(e.opts.Schema))
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to list data files: %w", err)
	}
	defer rows.Close()

	var sb strings.Builder
	count := 0
	for rows.Next() {
		var file string
		if err := rows.Scan(&file); err != nil {
			return fmt.Errorf("failed to read data file row: %w", err)
		}
		sb.WriteString(file)
		sb.WriteByte('\n')
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to list data files: %w", err)
	}

	dest := tbl.Join(e.opts.ManifestDir, "manifest")
	if err := e.manifests.Upload(ctx, dest.Bucket, dest.Key, strings.NewReader(sb.String()), "text/plain"); err != nil {
		return fmt.Errorf("failed to upload manifest %s: %w", dest, err)
	}
	logger.Debugf("Wrote manifest %s with %d data files.", dest, count)
	return nil
}

var _ table.Engine = (*Engine)(nil)
