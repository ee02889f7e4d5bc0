package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "message only",
			err:  New(ErrCodeAlertNotFound, "alert 42 not found"),
			want: "[ALERT_001] alert 42 not found",
		},
		{
			name: "message and detail",
			err:  New(ErrCodeOCRTimeout, "extraction timed out").WithDetail("image=2"),
			want: "[OCR_002] extraction timed out: image=2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrap_NilPassthrough(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeDatabaseError, "query failed"))
}

func TestWrap_PreservesOriginalCode(t *testing.T) {
	inner := New(ErrCodeOCRTimeout, "deadline exceeded")
	wrapped := Wrap(inner, ErrCodeInternal, "extraction step failed")

	assert.Equal(t, ErrCodeOCRTimeout, wrapped.Code)
	assert.True(t, stderrors.Is(wrapped, wrapped))
	assert.ErrorContains(t, wrapped, "extraction step failed")
}

func TestWrap_ExplicitCodeWins(t *testing.T) {
	inner := New(ErrCodeOCRTimeout, "deadline exceeded")
	wrapped := Wrap(inner, ErrCodeVerificationDegraded, "signal dropped")
	assert.Equal(t, ErrCodeVerificationDegraded, wrapped.Code)
}

func TestIsCode_TraversesChain(t *testing.T) {
	inner := New(ErrCodeSourceRateLimited, "429 from upstream")
	mid := fmt.Errorf("fetching detail page: %w", inner)
	outer := Wrap(mid, ErrCodeSourceUnavailable, "detail analysis skipped")

	assert.True(t, IsCode(outer, ErrCodeSourceRateLimited))
	assert.True(t, IsCode(outer, ErrCodeSourceUnavailable))
	assert.False(t, IsCode(outer, ErrCodeDatabaseError))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrorCode("OK"), GetCode(nil))
	assert.Equal(t, ErrCodeInternal, GetCode(stderrors.New("plain")))
	assert.Equal(t, ErrCodeCacheError, GetCode(New(ErrCodeCacheError, "boom")))
}

func TestIsRetryable(t *testing.T) {
	retryable := []ErrorCode{
		ErrCodeServiceUnavailable, ErrCodeTimeout, ErrCodeOCRUnavailable,
		ErrCodeOCRTimeout, ErrCodeSourceUnavailable, ErrCodeSourceRateLimited,
		ErrCodeAnalysisProvider,
	}
	for _, code := range retryable {
		assert.True(t, IsRetryable(New(code, "x")), "code %s should be retryable", code)
	}
	assert.False(t, IsRetryable(New(ErrCodeVerificationInputInvalid, "x")))
	assert.False(t, IsRetryable(nil))
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(InvalidInput("product name is required")))
	assert.True(t, IsValidation(InvalidParam("bad page size")))
	assert.False(t, IsValidation(NotFound("nothing here")))
}

func TestWithDetail_NilSafe(t *testing.T) {
	var e *AppError
	assert.Nil(t, e.WithDetail("ignored"))
}

func TestWithDetail_DoesNotMutateOriginal(t *testing.T) {
	orig := New(ErrCodeBadRequest, "bad input")
	detailed := orig.WithDetail("field=batch")
	require.NotSame(t, orig, detailed)
	assert.Empty(t, orig.Detail)
	assert.Equal(t, "field=batch", detailed.Detail)
}

func TestHTTPStatusForCode(t *testing.T) {
	assert.Equal(t, 400, HTTPStatusForCode(ErrCodeVerificationInputInvalid))
	assert.Equal(t, 404, HTTPStatusForCode(ErrCodeAlertNotFound))
	assert.Equal(t, 500, HTTPStatusForCode(ErrorCode("BOGUS_999")))
}

func TestModuleForCode(t *testing.T) {
	assert.Equal(t, "VER", ModuleForCode(ErrCodeRankingFailed))
	assert.Equal(t, "OCR", ModuleForCode(ErrCodeOCRFailed))
	assert.Equal(t, "COMMON", ModuleForCode(ErrCodeInternal))
}
