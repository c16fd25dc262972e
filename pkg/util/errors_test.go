package util

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	err := NewError(KindParse, "src/a.ts", errors.New("syntax error at 3:4"))

	assert.True(t, errors.Is(err, ErrParse))
	assert.False(t, errors.Is(err, ErrIO))
	assert.Equal(t, "parse failure: src/a.ts: syntax error at 3:4", err.Error())
}

func TestError_WrappedKeepsKind(t *testing.T) {
	inner := NewError(KindIO, "src", os.ErrPermission)
	err := fmt.Errorf("enumerate: %w", inner)

	assert.True(t, errors.Is(err, ErrIO))
	assert.True(t, errors.Is(err, os.ErrPermission))
	assert.Equal(t, KindIO, KindOf(err))
}

func TestError_NoPath(t *testing.T) {
	err := Errorf(KindConfig, "", "unsupported format %q", ".yaml")
	assert.Equal(t, `configuration failure: unsupported format ".yaml"`, err.Error())
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("boom")))
	assert.Equal(t, "unknown", ErrorKind(0).String())
	assert.Equal(t, "serialization", KindSerialization.String())
}
