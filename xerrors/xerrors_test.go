package xerrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	t.Run("包装 nil 返回 nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, "context"))
		assert.Nil(t, Wrapf(nil, "context %d", 1))
	})

	t.Run("包装后保留错误链", func(t *testing.T) {
		sentinel := New("something failed")
		wrapped := Wrap(sentinel, "while doing work")

		require.Error(t, wrapped)
		assert.True(t, Is(wrapped, sentinel))
		assert.Contains(t, wrapped.Error(), "while doing work")
	})
}

func TestWithCode(t *testing.T) {
	t.Run("提取错误码", func(t *testing.T) {
		err := WithCode(New("boom"), "ERR_BOOM")
		assert.Equal(t, "ERR_BOOM", GetCode(err))
		assert.Contains(t, err.Error(), "[ERR_BOOM]")
	})

	t.Run("多层包装后仍可提取", func(t *testing.T) {
		err := Wrap(WithCode(New("boom"), "ERR_BOOM"), "outer")
		assert.Equal(t, "ERR_BOOM", GetCode(err))
	})

	t.Run("无错误码返回空字符串", func(t *testing.T) {
		assert.Equal(t, "", GetCode(New("plain")))
		assert.Equal(t, "", GetCode(nil))
	})
}

func TestCombine(t *testing.T) {
	e1 := New("first")
	e2 := New("second")

	t.Run("全部为 nil 返回 nil", func(t *testing.T) {
		assert.Nil(t, Combine(nil, nil))
	})

	t.Run("单个错误直接返回", func(t *testing.T) {
		assert.Equal(t, e1, Combine(nil, e1, nil))
	})

	t.Run("多个错误均可通过 Is 命中", func(t *testing.T) {
		combined := Combine(e1, e2)
		assert.True(t, Is(combined, e1))
		assert.True(t, Is(combined, e2))
	})
}
