package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHexEscapePrintable(t *testing.T) {
	assert.Equal(t, "hello", HexEscape([]byte("hello")))
}

func TestHexEscapeControlChars(t *testing.T) {
	assert.Equal(t, `foo\x0d\x0abar`, HexEscape([]byte("foo\r\nbar")))
}

func TestHexEscapeBinary(t *testing.T) {
	assert.Equal(t, `\x00\xff`, HexEscape([]byte{0x00, 0xff}))
}

func TestNewDefaultsToStdout(t *testing.T) {
	logger := New(Options{})
	assert.NotNil(t, logger)
	logger.Info("test message")
}

func TestNewWithRotatingFile(t *testing.T) {
	dir := t.TempDir()
	logger := New(Options{Filename: dir + "/test.log", Level: "debug"})
	assert.NotNil(t, logger)
	logger.Debug("debug message")
}
