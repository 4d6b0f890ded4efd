// Package exception provides the error kinds used by the loader.
// Every failure surfaced by a run is a LoaderError of one of four kinds, so that callers
// (the CLI in particular) can decide how to report it and which exit status to use.
package exception

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Kind classifies a LoaderError.
type Kind int

const (
	// KindConfiguration is an invalid write policy, a merge without a primary key, or any other
	// problem detected before I/O.
	KindConfiguration Kind = iota + 1
	// KindStoreAccess is a watermark read or write failure.
	KindStoreAccess
	// KindListing is a failure enumerating staging folders or objects.
	KindListing
	// KindWrite is a failure applying a folder to the destination table, including manifest
	// regeneration.
	KindWrite
)

// String returns the name of the error kind as it appears in messages.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindStoreAccess:
		return "StoreAccessError"
	case KindListing:
		return "ListingError"
	case KindWrite:
		return "WriteError"
	default:
		return "UnknownError"
	}
}

// Sentinel errors, one per kind. errors.Is(err, ErrWrite) reports whether err is (or wraps)
// a LoaderError of KindWrite.
var (
	ErrConfiguration = errors.New(KindConfiguration.String())
	ErrStoreAccess   = errors.New(KindStoreAccess.String())
	ErrListing       = errors.New(KindListing.String())
	ErrWrite         = errors.New(KindWrite.String())
)

// LoaderError is the error type returned by every loader component.
// It records where the failure happened (Phase), the job and folder being processed when
// they are known, and the wrapped original error.
type LoaderError struct {
	// Kind is the error classification.
	Kind Kind
	// Phase names the step that failed (e.g., "validate", "get_watermark", "list", "write", "manifest").
	Phase string
	// JobID is the job identity, if known at the point of failure.
	JobID string
	// Folder is the staging folder being processed, if any.
	Folder string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// newLoaderError builds a LoaderError and captures the current stack.
func newLoaderError(kind Kind, phase, message string, originalErr error) *LoaderError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return &LoaderError{
		Kind:        kind,
		Phase:       phase,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  string(buf[:n]),
	}
}

// NewConfigurationError creates a LoaderError of KindConfiguration.
func NewConfigurationError(phase, message string, originalErr error) *LoaderError {
	return newLoaderError(KindConfiguration, phase, message, originalErr)
}

// NewConfigurationErrorf creates a LoaderError of KindConfiguration with a formatted message.
func NewConfigurationErrorf(phase, format string, a ...interface{}) *LoaderError {
	return newLoaderError(KindConfiguration, phase, fmt.Sprintf(format, a...), nil)
}

// NewStoreAccessError creates a LoaderError of KindStoreAccess.
func NewStoreAccessError(phase, message string, originalErr error) *LoaderError {
	return newLoaderError(KindStoreAccess, phase, message, originalErr)
}

// NewListingError creates a LoaderError of KindListing.
func NewListingError(phase, message string, originalErr error) *LoaderError {
	return newLoaderError(KindListing, phase, message, originalErr)
}

// NewWriteError creates a LoaderError of KindWrite.
func NewWriteError(phase, message string, originalErr error) *LoaderError {
	return newLoaderError(KindWrite, phase, message, originalErr)
}

// Error implements the error interface.
func (e *LoaderError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s/%s] %s", e.Kind, e.Phase, e.Message)

	var ctx []string
	if e.JobID != "" {
		ctx = append(ctx, "job="+e.JobID)
	}
	if e.Folder != "" {
		ctx = append(ctx, "folder="+e.Folder)
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&sb, " (%s)", strings.Join(ctx, ", "))
	}
	if e.OriginalErr != nil {
		fmt.Fprintf(&sb, ": %v", e.OriginalErr)
	}
	return sb.String()
}

// Unwrap returns the original error for errors.Unwrap.
func (e *LoaderError) Unwrap() error {
	return e.OriginalErr
}

// Is matches the sentinel error of the same kind.
func (e *LoaderError) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrStoreAccess:
		return e.Kind == KindStoreAccess
	case ErrListing:
		return e.Kind == KindListing
	case ErrWrite:
		return e.Kind == KindWrite
	}
	return false
}

// WithJob returns a copy of the error annotated with the job id.
// An id already present is kept.
func (e *LoaderError) WithJob(jobID string) *LoaderError {
	c := *e
	if c.JobID == "" {
		c.JobID = jobID
	}
	return &c
}

// WithFolder returns a copy of the error annotated with the staging folder.
// A folder already present is kept.
func (e *LoaderError) WithFolder(folder string) *LoaderError {
	c := *e
	if c.Folder == "" {
		c.Folder = folder
	}
	return &c
}

// AsLoaderError extracts the first LoaderError in err's chain.
func AsLoaderError(err error) (*LoaderError, bool) {
	var le *LoaderError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// KindOf returns the kind of the first LoaderError in err's chain, or 0 if there is none.
func KindOf(err error) Kind {
	if le, ok := AsLoaderError(err); ok {
		return le.Kind
	}
	return 0
}

// Annotate attaches job and folder context to err.
// LoaderErrors are copied and enriched; any other error is wrapped as the given fallback kind.
func Annotate(err error, fallback Kind, phase, jobID, folder string) error {
	if err == nil {
		return nil
	}
	le, ok := AsLoaderError(err)
	if !ok {
		le = newLoaderError(fallback, phase, "unexpected failure", err)
	}
	le = le.WithJob(jobID)
	if folder != "" {
		le = le.WithFolder(folder)
	}
	return le
}

// ExtractErrorMessage extracts the error message string from an error.
// For LoaderError, it returns the cleaner Message field.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if le, ok := err.(*LoaderError); ok {
		return le.Message
	}
	return err.Error()
}
