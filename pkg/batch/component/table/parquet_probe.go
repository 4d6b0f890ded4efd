package table

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"

	"github.com/tigerroll/deltaloader/pkg/batch/adapter/storage"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

// ParquetKeyProbe reads the footer of one staged parquet file and looks for a top-level column.
// Formats other than parquet carry no schema to inspect and always pass.
type ParquetKeyProbe struct {
	storage storage.StorageExecutor
}

// NewParquetKeyProbe creates a probe that downloads staged files through executor.
func NewParquetKeyProbe(executor storage.StorageExecutor) *ParquetKeyProbe {
	return &ParquetKeyProbe{storage: executor}
}

// HasColumn implements KeyProbe. The smallest parquet file of the folder is inspected.
// A folder without parquet files reports true; the engine read fails on its own in that case.
func (p *ParquetKeyProbe) HasColumn(ctx context.Context, staging model.Location, format model.StagingFormat, column string) (bool, error) {
	if format != model.FormatParquet {
		return true, nil
	}

	var smallest *storage.ObjectInfo
	err := p.storage.ListObjects(ctx, staging.Bucket, staging.Key, func(obj storage.ObjectInfo) error {
		if !strings.HasSuffix(obj.Key, format.Extension()) {
			return nil
		}
		if smallest == nil || obj.Size < smallest.Size {
			o := obj
			smallest = &o
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("listing %s: %w", staging, err)
	}
	if smallest == nil {
		logger.Warnf("No parquet file found under %s; skipping merge key check.", staging)
		return true, nil
	}

	rc, err := p.storage.Download(ctx, staging.Bucket, smallest.Key)
	if err != nil {
		return false, fmt.Errorf("downloading %s: %w", smallest.Key, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", smallest.Key, err)
	}

	columns, err := ParquetColumns(data)
	if err != nil {
		return false, fmt.Errorf("reading footer of %s: %w", smallest.Key, err)
	}
	logger.Debugf("Staged file %s has columns %v.", smallest.Key, columns)
	for _, c := range columns {
		if strings.EqualFold(c, column) {
			return true, nil
		}
	}
	return false, nil
}

// ParquetColumns returns the top-level column names of a parquet file held in memory.
func ParquetColumns(data []byte) (columns []string, err error) {
	// parquet-go panics on malformed footers.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed parquet file: %v", r)
		}
	}()

	pr, err := reader.NewParquetReader(newBytesFile(data), nil, 1)
	if err != nil {
		return nil, err
	}
	defer pr.ReadStop()

	elements := pr.SchemaHandler.SchemaElements
	infos := pr.SchemaHandler.Infos
	if len(elements) == 0 {
		return nil, fmt.Errorf("empty schema")
	}
	// elements[0] is the root; children follow depth first.
	for i := 1; i < len(elements); {
		columns = append(columns, infos[i].ExName)
		i = skipSubtree(elements, i)
	}
	return columns, nil
}

// skipSubtree returns the index just past the element at i and all its descendants.
func skipSubtree(elements []*parquet.SchemaElement, i int) int {
	n := int(elements[i].GetNumChildren())
	i++
	for c := 0; c < n; c++ {
		i = skipSubtree(elements, i)
	}
	return i
}

// bytesFile is a read-only source.ParquetFile over an in-memory buffer.
type bytesFile struct {
	data []byte
	*bytes.Reader
}

func newBytesFile(data []byte) *bytesFile {
	return &bytesFile{data: data, Reader: bytes.NewReader(data)}
}

func (f *bytesFile) Open(string) (source.ParquetFile, error) {
	return newBytesFile(f.data), nil
}

func (f *bytesFile) Create(string) (source.ParquetFile, error) {
	return nil, fmt.Errorf("bytesFile is read-only")
}

func (f *bytesFile) Write([]byte) (int, error) {
	return 0, fmt.Errorf("bytesFile is read-only")
}

func (f *bytesFile) Close() error { return nil }

var _ source.ParquetFile = (*bytesFile)(nil)
