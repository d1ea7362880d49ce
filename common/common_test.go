package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "<not set>", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("short1"))
	assert.Equal(t, "sk-a...z789", MaskSecret("sk-abcdefghijklmnoz789"))
}

func TestPtrAndPtrValue(t *testing.T) {
	p := Ptr(42)
	assert.Equal(t, 42, *p)
	assert.Equal(t, 42, PtrValue(p))
	assert.Equal(t, 0, PtrValue[int](nil))
}

func TestMust_PanicsOnError(t *testing.T) {
	assert.Panics(t, func() {
		Must(0, errors.New("boom"))
	})
	assert.NotPanics(t, func() {
		v := Must(5, nil)
		assert.Equal(t, 5, v)
	})
}

func TestMustNoError_PanicsOnError(t *testing.T) {
	assert.Panics(t, func() { MustNoError(errors.New("boom")) })
	assert.NotPanics(t, func() { MustNoError(nil) })
}
