package model

import (
	"strings"

	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
)

// WritePolicy selects how a staged batch is applied to an existing table.
type WritePolicy string

const (
	PolicyAppend    WritePolicy = "append"
	PolicyOverwrite WritePolicy = "overwrite"
	PolicyMerge     WritePolicy = "merge"
)

// String returns the string representation of the WritePolicy.
func (p WritePolicy) String() string {
	return string(p)
}

// Validate returns a ConfigurationError for anything other than append, overwrite or merge.
func (p WritePolicy) Validate() error {
	switch p {
	case PolicyAppend, PolicyOverwrite, PolicyMerge:
		return nil
	default:
		return exception.NewConfigurationErrorf(validatePhase, "unsupported write_type %q (want append, overwrite or merge)", string(p))
	}
}

// ParseWritePolicy parses a policy name case-insensitively.
func ParseWritePolicy(s string) (WritePolicy, error) {
	p := WritePolicy(strings.ToLower(strings.TrimSpace(s)))
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

// StagingFormat is the file format of staged data.
type StagingFormat string

const (
	FormatParquet StagingFormat = "parquet"
	FormatCSV     StagingFormat = "csv"
	FormatJSON    StagingFormat = "json"
)

var stagingFormats = []StagingFormat{FormatParquet, FormatCSV, FormatJSON}

// String returns the string representation of the StagingFormat.
func (f StagingFormat) String() string {
	return string(f)
}

// Valid reports whether f is a supported format.
func (f StagingFormat) Valid() bool {
	for _, known := range stagingFormats {
		if f == known {
			return true
		}
	}
	return false
}

// Extension is the file suffix staged files of this format carry.
func (f StagingFormat) Extension() string {
	return "." + string(f)
}

// ParseStagingFormat parses a format name case-insensitively.
func ParseStagingFormat(s string) (StagingFormat, error) {
	f := StagingFormat(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", exception.NewConfigurationErrorf(validatePhase, "unsupported staging_format %q (want one of %s)", s, joinFormats())
	}
	return f, nil
}

func joinFormats() string {
	names := make([]string, len(stagingFormats))
	for i, f := range stagingFormats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
