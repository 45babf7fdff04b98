package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultsToConsole(t *testing.T) {
	l := New(Options{Level: "debug"})
	assert.NotNil(t, l)
	l.Debug("调试输出", "key", "value")
	l.Err(assert.AnError, "错误输出")
}

func TestNewWithUnknownLevel(t *testing.T) {
	l := New(Options{Level: "nonsense"})
	assert.NotNil(t, l)
	l.Info("回退到 info 级别")
}

func TestNopDiscardsOddPairs(t *testing.T) {
	l := NewNop()
	// 键值不成对与非字符串键都不应 panic
	l.Info("msg", "dangling")
	l.Warn("msg", 42, "value")
}
