package resp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteArray(t *testing.T) {
	w := &Writer{}
	w.WriteArray(3)
	assert.Equal(t, []byte("*3\r\n"), w.b)
}

func TestWriteBulk(t *testing.T) {
	w := &Writer{}
	w.WriteBulk([]byte("hello"))
	assert.Equal(t, []byte("$5\r\nhello\r\n"), w.b)
}

func TestWriteMultipleBulk(t *testing.T) {
	w := &Writer{}
	w.WriteArray(2)
	w.WriteBulk([]byte("key"))
	w.WriteBulk([]byte("value"))
	assert.Equal(t, []byte("*2\r\n$3\r\nkey\r\n$5\r\nvalue\r\n"), w.b)
}

func TestWriteBulkEmpty(t *testing.T) {
	w := &Writer{}
	w.WriteBulk([]byte{})
	assert.Equal(t, []byte("$0\r\n\r\n"), w.b)
}

func TestWriteBulkSpecialChars(t *testing.T) {
	w := &Writer{}
	w.WriteBulk([]byte("hello\r\nworld"))
	assert.Equal(t, []byte("$12\r\nhello\r\nworld\r\n"), w.b)
}

func TestReadCommandsPipelined(t *testing.T) {
	buf := []byte("*1\r\n$4\r\nPING\r\n*1\r\n$4\r\nPING\r\n")
	cmds, leftover, err := ReadCommands(buf)
	require.NoError(t, err)
	assert.Empty(t, leftover)
	require.Len(t, cmds, 2)
	assert.Equal(t, "PING", string(cmds[0].Args[0]))
	assert.Equal(t, "PING", string(cmds[1].Args[0]))
}

func TestReadCommandsPartialChunk(t *testing.T) {
	// Split an arbitrary valid command across many tiny chunks and confirm
	// the same command sequence is emitted as when fed whole.
	whole := []byte("*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n")
	var acc []byte
	var got []Command
	for i := range whole {
		acc = append(acc, whole[i])
		cmds, leftover, err := ReadCommands(acc)
		require.NoError(t, err)
		got = append(got, cmds...)
		acc = leftover
	}
	require.Len(t, got, 1)
	assert.Equal(t, [][]byte{[]byte("SET"), []byte("foo"), []byte("bar")}, got[0].Args)
}

func TestReadCommandsTooManyArgs(t *testing.T) {
	_, _, err := ReadCommands([]byte("*100000\r\n"))
	assert.Error(t, err)
}

func TestReadCommandsZeroArgs(t *testing.T) {
	_, _, err := ReadCommands([]byte("*0\r\n"))
	assert.Error(t, err)
}

func TestReadCommandsInlineTab(t *testing.T) {
	cmds, _, err := ReadCommands([]byte("GET\tfoo\r\n"))
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, [][]byte{[]byte("GET"), []byte("foo")}, cmds[0].Args)
}
