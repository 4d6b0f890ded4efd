// Package model holds the value types shared by every layer of the loader: job identity,
// invocation parameters, write policies, object locations and run reports.
package model

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
)

// DefaultJobType is the partition value every watermark record is stored under.
const DefaultJobType = "delta-loader"

const validatePhase = "validate"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// JobID derives the stable job identity for a (staging path, table path) pair.
// It is the lowercase hex MD5 of "stagingPath|tablePath", so records written by earlier
// deployments keep resolving to the same key.
func JobID(stagingPath, tablePath string) string {
	sum := md5.Sum([]byte(stagingPath + "|" + tablePath))
	return hex.EncodeToString(sum[:])
}

// JobParameters are the inputs of a single ingestion invocation.
type JobParameters struct {
	StagingBucket       string
	StagingPath         string
	TableBucket         string
	TablePath           string
	StagingFormat       StagingFormat
	WritePolicy         WritePolicy
	PrimaryKey          string
	OverwriteLatestOnly bool
}

// JobID returns the job identity of these parameters.
func (p JobParameters) JobID() string {
	return JobID(p.StagingPath, p.TablePath)
}

// Staging returns the location of the staging prefix.
func (p JobParameters) Staging() Location {
	return Location{Bucket: p.StagingBucket, Key: p.StagingPath}
}

// Table returns the location of the destination table.
func (p JobParameters) Table() Location {
	return Location{Bucket: p.TableBucket, Key: p.TablePath}
}

// Validate checks the parameters without performing any I/O.
// Every failure is a ConfigurationError.
func (p JobParameters) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"staging_bucket", p.StagingBucket},
		{"staging_path", p.StagingPath},
		{"table_bucket", p.TableBucket},
		{"table_path", p.TablePath},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return exception.NewConfigurationErrorf(validatePhase, "%s must not be empty", r.name)
		}
	}

	if !p.StagingFormat.Valid() {
		return exception.NewConfigurationErrorf(validatePhase, "unsupported staging_format %q (want one of %s)", string(p.StagingFormat), joinFormats())
	}
	if err := p.WritePolicy.Validate(); err != nil {
		return err
	}
	if p.WritePolicy == PolicyMerge && p.PrimaryKey == "" {
		return exception.NewConfigurationError(validatePhase, "primary_key is required when write_type is merge", nil)
	}
	if p.PrimaryKey != "" && !IsIdentifier(p.PrimaryKey) {
		return exception.NewConfigurationErrorf(validatePhase, "primary_key %q is not a plain column identifier", p.PrimaryKey)
	}
	return nil
}

// IsIdentifier reports whether s can be used unquoted as a column or table name.
func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}
