package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndRetryability(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		retryable bool
	}{
		{CodeInvalidQueryEmbedding, CategoryValidation, false},
		{CodeSeedNotFound, CategoryNotFound, false},
		{CodeProviderTimeout, CategoryProvider, true},
		{CodeProviderError, CategoryProvider, false},
		{CodeStorage, CategoryStorage, true},
		{CodeInternal, CategoryInternal, false},
		{"unknown_code", CategoryInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			e := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, e.Category)
			assert.Equal(t, tt.retryable, e.Retryable)
		})
	}
}

func TestError_Message(t *testing.T) {
	e := New(CodeSeedNotFound, "symbol abc does not exist", nil)
	assert.Equal(t, "[seed_not_found] symbol abc does not exist", e.Error())
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	e := Wrap(CodeStorage, cause)
	require.NotNil(t, e)
	assert.ErrorIs(t, e, cause)
	assert.Equal(t, "connection refused", e.Message)

	assert.Nil(t, Wrap(CodeStorage, nil))
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(CodeSeedNotFound, "first", nil)
	b := New(CodeSeedNotFound, "second", nil)
	c := New(CodeInternal, "other", nil)

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeSeedNotFound, GetCode(New(CodeSeedNotFound, "x", nil)))
	assert.Equal(t, CodeInternal, GetCode(fmt.Errorf("plain")))
	assert.Empty(t, GetCode(nil))
}
