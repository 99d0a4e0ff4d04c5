package common

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeWhitespace("  a \t b \n\n c  "))
	assert.Equal(t, "", NormalizeWhitespace("   "))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab…", Truncate("abcdef", 2))

	// 以 rune 截斷，多位元組字元不被切半
	got := Truncate(strings.Repeat("食", 100), 10)
	assert.Equal(t, strings.Repeat("食", 10)+"…", got)
}

func TestCustomErrorCodes(t *testing.T) {
	err := NewError(ErrCodeUnsafeSource, "這個來源無法使用", http.StatusOK, nil)
	assert.True(t, IsCode(err, ErrCodeUnsafeSource))
	assert.False(t, IsCode(err, ErrCodeExtractionEmpty))

	// 非 CustomError 視為內部錯誤
	assert.Equal(t, ErrCodeInternalError, CodeOf(assert.AnError))
}

func TestWithReasonKeepsCode(t *testing.T) {
	err := ErrUnsafeSource.WithReason("這個來源無法使用：不允許存取內部網段")
	assert.True(t, IsCode(err, ErrCodeUnsafeSource))
	assert.Contains(t, err.Message, "內部網段")

	// 原始錯誤值不受影響
	assert.Equal(t, "這個來源無法使用", ErrUnsafeSource.Message)
}

func TestStringSliceToString(t *testing.T) {
	assert.Equal(t, "a、b", StringSliceToString([]string{"a", "b"}))
	assert.Equal(t, "", StringSliceToString(nil))
}
