package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoDataMessage(t *testing.T) {
	err := NewNoData()
	assert.Equal(t, "NO_DATA: no data to analyze", err.Error())
	assert.Equal(t, 409, err.Status)
}

func TestIsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("trigger: %w", NewNoData())
	assert.True(t, Is(wrapped, ErrNoData))
	assert.False(t, Is(wrapped, ErrInternal))
	assert.False(t, Is(stderrors.New("plain"), ErrNoData))
}

func TestGenerateFailedUnwraps(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewGenerateFailed(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 502, StatusOf(err))
	assert.Equal(t, 500, StatusOf(cause))
}
