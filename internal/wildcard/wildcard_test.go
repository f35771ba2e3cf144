package wildcard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExactShortcut(t *testing.T) {
	m := Compile("foo")
	assert.False(t, m.IsWild())
	assert.True(t, m.IsMatch("foo"))
	assert.False(t, m.IsMatch("foobar"))
}

func TestStar(t *testing.T) {
	m := Compile("fo*")
	assert.True(t, m.IsWild())
	assert.True(t, m.IsMatch("foo"))
	assert.True(t, m.IsMatch("fob"))
	assert.True(t, m.IsMatch("fo"))
	assert.False(t, m.IsMatch("bar"))
}

func TestQuestionMark(t *testing.T) {
	m := Compile("f?o")
	assert.True(t, m.IsMatch("foo"))
	assert.True(t, m.IsMatch("fxo"))
	assert.False(t, m.IsMatch("fo"))
}

func TestAlternation(t *testing.T) {
	m := Compile("foo;bar")
	assert.True(t, m.IsMatch("foo"))
	assert.True(t, m.IsMatch("bar"))
	assert.False(t, m.IsMatch("baz"))
}

func TestLiteralDot(t *testing.T) {
	m := Compile("a.b")
	assert.True(t, m.IsMatch("a.b"))
	assert.False(t, m.IsMatch("axb"))
}

func TestRegexMetaLiteral(t *testing.T) {
	m := Compile("a+b")
	assert.True(t, m.IsMatch("a+b"))
	assert.False(t, m.IsMatch("aab"))
}

func TestAnchored(t *testing.T) {
	m := Compile("foo")
	assert.False(t, m.IsMatch("xfooy"))
}
