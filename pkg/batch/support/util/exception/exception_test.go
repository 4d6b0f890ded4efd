package exception_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
)

func TestLoaderError_ErrorFormat(t *testing.T) {
	cause := errors.New("throttled")
	le := exception.NewStoreAccessError("put_watermark", "failed to store watermark", cause).
		WithJob("abc123").
		WithFolder("staging/2024-01-02/")

	assert.Equal(t, exception.KindStoreAccess, le.Kind)
	assert.Equal(t,
		"[StoreAccessError/put_watermark] failed to store watermark (job=abc123, folder=staging/2024-01-02/): throttled",
		le.Error())
	assert.Equal(t, cause, le.Unwrap())
	assert.NotEmpty(t, le.StackTrace)
}

func TestLoaderError_ErrorFormatWithoutContext(t *testing.T) {
	le := exception.NewConfigurationErrorf("validate", "unknown write_type %q", "upsert")
	assert.Equal(t, `[ConfigurationError/validate] unknown write_type "upsert"`, le.Error())
	assert.Nil(t, le.Unwrap())
}

func TestLoaderError_IsMatchesKindSentinel(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"configuration", exception.NewConfigurationError("validate", "bad", nil), exception.ErrConfiguration},
		{"store", exception.NewStoreAccessError("get_watermark", "bad", nil), exception.ErrStoreAccess},
		{"listing", exception.NewListingError("list", "bad", nil), exception.ErrListing},
		{"write", exception.NewWriteError("write", "bad", nil), exception.ErrWrite},
	}
	all := []error{exception.ErrConfiguration, exception.ErrStoreAccess, exception.ErrListing, exception.ErrWrite}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tc.err)
			for _, s := range all {
				assert.Equal(t, s == tc.sentinel, errors.Is(wrapped, s), "sentinel %v", s)
			}
		})
	}
}

func TestWithJobKeepsExistingValues(t *testing.T) {
	le := exception.NewWriteError("write", "failed", nil).WithJob("first").WithFolder("a/")
	again := le.WithJob("second").WithFolder("b/")

	assert.Equal(t, "first", again.JobID)
	assert.Equal(t, "a/", again.Folder)
}

func TestAnnotate(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, exception.Annotate(nil, exception.KindWrite, "write", "job", "f/"))
	})

	t.Run("plain error is wrapped as fallback kind", func(t *testing.T) {
		cause := errors.New("boom")
		err := exception.Annotate(cause, exception.KindWrite, "write", "job", "f/")
		require.Error(t, err)
		assert.ErrorIs(t, err, exception.ErrWrite)
		assert.ErrorIs(t, err, cause)

		le, ok := exception.AsLoaderError(err)
		require.True(t, ok)
		assert.Equal(t, "job", le.JobID)
		assert.Equal(t, "f/", le.Folder)
	})

	t.Run("loader error keeps its kind", func(t *testing.T) {
		err := exception.Annotate(exception.NewListingError("list", "denied", nil), exception.KindWrite, "write", "job", "")
		assert.Equal(t, exception.KindListing, exception.KindOf(err))
		le, _ := exception.AsLoaderError(err)
		assert.Empty(t, le.Folder)
	})
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, exception.Kind(0), exception.KindOf(errors.New("plain")))
	assert.Equal(t, exception.KindWrite, exception.KindOf(fmt.Errorf("x: %w", exception.NewWriteError("manifest", "m", nil))))
}

func TestExtractErrorMessage(t *testing.T) {
	assert.Equal(t, "", exception.ExtractErrorMessage(nil))
	assert.Equal(t, "denied", exception.ExtractErrorMessage(exception.NewListingError("list", "denied", errors.New("403"))))
	assert.Equal(t, "plain", exception.ExtractErrorMessage(errors.New("plain")))
}
