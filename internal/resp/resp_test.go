package resp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendInt(t *testing.T) {
	tests := []struct {
		name     string
		input    int64
		expected []byte
	}{
		{"zero", 0, []byte(":0\r\n")},
		{"positive", 123, []byte(":123\r\n")},
		{"negative", -456, []byte(":-456\r\n")},
		{"min", -9223372036854775808, []byte(":-9223372036854775808\r\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AppendInt(nil, tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestAppendArray(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected []byte
	}{
		{"zero", 0, []byte("*0\r\n")},
		{"small", 1, []byte("*1\r\n")},
		{"large", 1000, []byte("*1000\r\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AppendArray(nil, tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestAppendBulk(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected []byte
	}{
		{"empty", []byte{}, []byte("$0\r\n\r\n")},
		{"simple", []byte("hello"), []byte("$5\r\nhello\r\n")},
		{"binary", []byte{0x00, 0x01, 0x02}, []byte("$3\r\n\x00\x01\x02\r\n")},
		{"with newline", []byte("hello\nworld"), []byte("$11\r\nhello\nworld\r\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AppendBulk(nil, tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestAppendBulkString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []byte
	}{
		{"empty", "", []byte("$0\r\n\r\n")},
		{"simple", "hello", []byte("$5\r\nhello\r\n")},
		{"unicode", "你好", []byte("$6\r\n你好\r\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AppendBulkString(nil, tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestAppendString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []byte
	}{
		{"ok", "OK", []byte("+OK\r\n")},
		{"pong", "PONG", []byte("+PONG\r\n")},
		{"message", "hello world", []byte("+hello world\r\n")},
		{"strips newlines", "a\r\nb", []byte("+a b\r\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AppendString(nil, tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestAppendError(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []byte
	}{
		{"simple", "some error", []byte("-some error\r\n")},
		{"protocol error", "Protocol error: invalid", []byte("-Protocol error: invalid\r\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AppendError(nil, tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestAppendOK(t *testing.T) {
	result := AppendOK(nil)
	assert.Equal(t, []byte("+OK\r\n"), result)
}

func TestAppendNull(t *testing.T) {
	result := AppendNull(nil)
	assert.Equal(t, []byte("$-1\r\n"), result)
}

func TestAppendWrongType(t *testing.T) {
	result := AppendWrongType(nil)
	assert.Equal(t, []byte("-WRONGTYPE Operation against a key holding the wrong kind of value\r\n"), result)
}

func TestAppendNotInteger(t *testing.T) {
	result := AppendNotInteger(nil)
	assert.Equal(t, []byte("-ERR value is not an integer or out of range\r\n"), result)
}

func TestAppendWrongArgs(t *testing.T) {
	result := AppendWrongArgs(nil, "GET")
	assert.Equal(t, []byte("-ERR wrong number of arguments for 'GET' command\r\n"), result)
}

func TestReadNextRESP_Integer(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected RESP
		consumed int
	}{
		{"zero", []byte(":0\r\n"), RESP{Type: Integer, Data: []byte("0"), Raw: []byte(":0\r\n")}, 4},
		{"positive", []byte(":123\r\n"), RESP{Type: Integer, Data: []byte("123"), Raw: []byte(":123\r\n")}, 6},
		{"negative", []byte(":-456\r\n"), RESP{Type: Integer, Data: []byte("-456"), Raw: []byte(":-456\r\n")}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, resp := ReadNextRESP(tt.input)
			assert.Equal(t, tt.consumed, n)
			assert.Equal(t, tt.expected.Type, resp.Type)
			assert.Equal(t, tt.expected.Data, resp.Data)
		})
	}
}

func TestReadNextRESP_String(t *testing.T) {
	input := []byte("+OK\r\n")
	n, resp := ReadNextRESP(input)
	assert.Equal(t, 5, n)
	assert.Equal(t, Type('+'), resp.Type)
	assert.Equal(t, []byte("OK"), resp.Data)
}

func TestReadNextRESP_Bulk(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected RESP
		consumed int
	}{
		{"simple", []byte("$5\r\nhello\r\n"), RESP{Type: Bulk, Data: []byte("hello"), Raw: []byte("$5\r\nhello\r\n")}, 11},
		{"null", []byte("$-1\r\n"), RESP{Type: Bulk, Data: nil, Raw: []byte("$-1\r\n")}, 5},
		{"empty", []byte("$0\r\n\r\n"), RESP{Type: Bulk, Data: []byte{}, Raw: []byte("$0\r\n\r\n")}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, resp := ReadNextRESP(tt.input)
			assert.Equal(t, tt.consumed, n)
			assert.Equal(t, tt.expected.Type, resp.Type)
			assert.Equal(t, tt.expected.Data, resp.Data)
		})
	}
}

func TestReadNextRESP_Array(t *testing.T) {
	input := []byte("*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n")
	n, resp := ReadNextRESP(input)
	assert.Equal(t, len(input), n)
	assert.Equal(t, Type('*'), resp.Type)
	assert.Equal(t, 2, resp.Count)
}

func TestReadNextRESP_Error(t *testing.T) {
	input := []byte("-Error message\r\n")
	n, resp := ReadNextRESP(input)
	assert.Equal(t, 16, n)
	assert.Equal(t, Type('-'), resp.Type)
	assert.Equal(t, []byte("Error message"), resp.Data)
}

func TestReadNextRESP_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", []byte{}},
		{"unknown type", []byte("?test\r\n")},
		{"missing cr", []byte("+test\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, resp := ReadNextRESP(tt.input)
			assert.Equal(t, 0, n)
			assert.Equal(t, RESP{}, resp)
		})
	}
}

func TestForEach(t *testing.T) {
	input := []byte("*3\r\n$3\r\nfoo\r\n$3\r\nbar\r\n$3\r\nbaz\r\n")
	_, resp := ReadNextRESP(input)

	var results []string
	resp.ForEach(func(r RESP) bool {
		results = append(results, string(r.Data))
		return true
	})

	assert.Equal(t, []string{"foo", "bar", "baz"}, results)
}

func TestForEachBreak(t *testing.T) {
	input := []byte("*3\r\n$3\r\nfoo\r\n$3\r\nbar\r\n$3\r\nbaz\r\n")
	_, resp := ReadNextRESP(input)

	count := 0
	resp.ForEach(func(r RESP) bool {
		count++
		return count < 2
	})

	assert.Equal(t, 2, count)
}
