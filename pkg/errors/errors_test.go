package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	wrapped := WrapAs(ErrStoreUnavailable, fmt.Errorf("dial tcp: refused"), "fetch groups")
	require.True(t, stdErrors.Is(wrapped, ErrStoreUnavailable))
	require.False(t, stdErrors.Is(wrapped, ErrStoreMalformed))

	outer := fmt.Errorf("load: %w", wrapped)
	assert.True(t, stdErrors.Is(outer, ErrStoreUnavailable))
	assert.Equal(t, "fetch groups: dial tcp: refused", wrapped.Error())
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Nil(t, FromError(nil))

	clone := Clone(ErrTimeout, "load timed out")
	assert.Equal(t, "load timed out", clone.Message)
	assert.Equal(t, "operation timed out", ErrTimeout.Message)
	assert.True(t, stdErrors.Is(clone, ErrTimeout))
}
