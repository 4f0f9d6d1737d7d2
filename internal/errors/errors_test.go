package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		severity Severity
	}{
		{ErrCodeConfigMissing, CategoryConfig, SeverityFatal},
		{ErrCodeImportFailed, CategoryIngest, SeverityFatal},
		{ErrCodeExtractionFailed, CategoryIngest, SeverityWarning},
		{ErrCodeRecordNotFound, CategoryLookup, SeverityError},
		{ErrCodeSemanticUnavailable, CategoryLookup, SeverityError},
		{ErrCodeUnknownStyle, CategoryValidation, SeverityError},
		{ErrCodeInvalidQuery, CategoryValidation, SeverityError},
		{ErrCodeInternal, CategoryInternal, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeExtractionFailed, "pdf missing", nil)))
	assert.True(t, IsRetryable(New(ErrCodeEmbeddingFailed, "ollama down", nil)))
	assert.False(t, IsRetryable(New(ErrCodeImportFailed, "bad xml", nil)))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestFatal(t *testing.T) {
	assert.True(t, IsFatal(ImportFailed("xml truncated", nil)))
	assert.False(t, IsFatal(RecordNotFound(42)))
}

func TestWrap_PreservesChain(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := Wrap(ErrCodeStoreFailed, cause)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrCodeStoreFailed, GetCode(err))
}

func TestWrap_NilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeStoreFailed, nil))
}

func TestIs_MatchesByCode(t *testing.T) {
	err := RecordNotFound(7)
	assert.True(t, stderrors.Is(err, New(ErrCodeRecordNotFound, "", nil)))
	assert.False(t, stderrors.Is(err, New(ErrCodeUnknownStyle, "", nil)))
}

func TestConstructors(t *testing.T) {
	assert.Contains(t, RecordNotFound(99).Error(), "#99")
	assert.Contains(t, UnknownStyle("mla").Error(), "mla")
	assert.Contains(t, PageOutOfRange(20, 10).Error(), "20")
	assert.NotEmpty(t, SemanticUnavailable().Suggestion)
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeExtractionFailed, "boom", nil).
		WithDetail("path", "paper.pdf").
		WithDetail("rec_number", "12")
	assert.Equal(t, "paper.pdf", err.Details["path"])
	assert.Equal(t, "12", err.Details["rec_number"])
}
