package duckdb

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
)

var nonIdentifierChars = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// quoteIdent quotes a SQL identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// quoteLiteral quotes a SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// TableName derives the catalog table name from the whole table location, so two tables whose
// paths share a last segment never resolve to the same catalog entry. The readable part is the
// bucket and key with every non-identifier run replaced by "_"; the suffix is the first eight hex
// digits of md5("bucket/key"). Leading and trailing slashes of the key are ignored.
//
// {lake, warehouse/sales-orders} becomes "lake_warehouse_sales_orders_<hash>".
func TableName(loc model.Location) string {
	key := strings.Trim(loc.Key, "/")
	sum := md5.Sum([]byte(loc.Bucket + "/" + key))
	base := strings.Trim(nonIdentifierChars.ReplaceAllString(loc.Bucket+"_"+key, "_"), "_")
	if base == "" {
		base = "data"
	}
	if base[0] >= '0' && base[0] <= '9' {
		base = "t_" + base
	}
	return strings.ToLower(base) + "_" + hex.EncodeToString(sum[:4])
}

// readerExpr returns the table function that scans every staged file of a folder.
func readerExpr(format model.StagingFormat, folderPath string) (string, error) {
	glob := quoteLiteral(strings.TrimRight(folderPath, "/") + "/*" + format.Extension())
	switch format {
	case model.FormatParquet:
		return fmt.Sprintf("read_parquet(%s)", glob), nil
	case model.FormatCSV:
		return fmt.Sprintf("read_csv_auto(%s, header = true)", glob), nil
	case model.FormatJSON:
		return fmt.Sprintf("read_json_auto(%s)", glob), nil
	default:
		return "", fmt.Errorf("unsupported staging format %q", format)
	}
}
