// Package resp implements the Redis Serialization Protocol (RESP) as defined in the
// Redis protocol specification (https://redis.io/docs/reference/protocol-spec/).
//
// RESP supports five data types:
//
//   - Simple Strings: "+OK\r\n" - Simple strings are used to transmit non-binary strings
//   - Errors: "-Error message\r\n" - Errors are used to report errors to the client
//   - Integers: ":1000\r\n" - Integers are used to represent 64-bit signed integers
//   - Bulk Strings: "$6\r\nfoobar\r\n" - Bulk strings are used to transmit binary-safe strings
//   - Arrays: "*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n" - Arrays are used to hold collections of RESP types
//
// This package provides functions for both parsing RESP messages (reading) and
// serializing Go types to RESP format (writing/appending).
//
// # Reading RESP Messages
//
// Use ReadNextRESP to parse a single RESP value from a byte slice:
//
//	b := []byte("*2\r\n$3\r\nGET\r\n$3\r\nkey\r\n")
//	n, resp := resp.ReadNextRESP(b)
//	// resp.Type == resp.Array
//	// resp.Count == 2
//
// Use ReadCommands (comparse.go) to split a buffer into whole commands,
// including the plain-text/inline fallback this store also accepts.
//
// # Writing RESP Messages
//
// Use the Append* functions to serialize Go types to RESP format:
//
//	var out []byte
//
//	// Simple string
//	out = resp.AppendString(out, "OK") // +OK\r\n
//
//	// Bulk string
//	out = resp.AppendBulkString(out, "hello") // $5\r\nhello\r\n
//
//	// Integer
//	out = resp.AppendInt(out, 42) // :42\r\n
//
//	// Array
//	out = resp.AppendArray(out, 3)
//	out = resp.AppendBulkString(out, "item1")
//	out = resp.AppendBulkString(out, "item2")
//	out = resp.AppendBulkString(out, "item3")
//
//	// Null value
//	out = resp.AppendNull(out) // $-1\r\n
package resp

import (
	"strconv"
	"strings"
)

// Type represents the RESP data type identifier.
// Each RESP type has a corresponding type marker character.
type Type byte

// RESP type identifier constants. These are the first byte of any RESP message.
const (
	// Integer represents RESP integer type: ":1000\r\n"
	// Used to transmit 64-bit signed integers.
	Integer = ':'

	// String represents RESP simple string type: "+OK\r\n"
	// Used to transmit non-binary strings that don't contain \r or \n.
	String = '+'

	// Bulk represents RESP bulk string type: "$6\r\nfoobar\r\n"
	// Used to transmit binary-safe strings. Can be null: "$-1\r\n"
	Bulk = '$'

	// Array represents RESP array type: "*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"
	// Used to transmit collections of RESP values. Can be null: "*-1\r\n"
	Array = '*'

	// Error represents RESP error type: "-Error message\r\n"
	// Used to transmit error messages to the client.
	Error = '-'
)

// RESP represents a parsed RESP value.
// It contains the type identifier, raw bytes, parsed content, and element count for arrays.
type RESP struct {
	Type  Type   // Type is the RESP type identifier
	Raw   []byte // Raw is the complete RESP message including type marker and terminators
	Data  []byte // Data is the parsed content (without type marker and terminators)
	Count int    // Count is the number of elements for Array type
}

// ForEach iterates over each element of an Array-type RESP value.
// The iter function is called for each element in the array.
// If iter returns false, iteration stops immediately.
//
// This is only valid for RESP values with Type == Array.
// Calling ForEach on non-array RESP values has no effect.
func (r *RESP) ForEach(iter func(resp RESP) bool) {
	data := r.Data
	for i := 0; i < r.Count; i++ {
		n, resp := ReadNextRESP(data)
		if !iter(resp) {
			return
		}
		data = data[n:]
	}
}

// ReadNextRESP parses the next RESP value from a byte slice.
// It returns the number of bytes consumed and the parsed RESP value.
//
// If the input is incomplete or invalid, returns (0, RESP{}).
//
// This function handles all RESP types:
//   - Integer: Parses the integer value
//   - Simple String/Error: Returns the data as-is
//   - Bulk String: Parses the length and data, handles null bulk strings
//   - Array: Recursively parses array elements
func ReadNextRESP(b []byte) (n int, resp RESP) {
	if len(b) == 0 {
		return 0, RESP{} // no data to read
	}
	resp.Type = Type(b[0])
	switch resp.Type {
	case Integer, String, Bulk, Array, Error:
	default:
		return 0, RESP{} // invalid kind
	}
	// read to end of line
	i := 1
	for ; ; i++ {
		if i == len(b) {
			return 0, RESP{} // not enough data
		}
		if b[i] == '\n' {
			if b[i-1] != '\r' {
				return 0, RESP{} //, missing CR character
			}
			i++
			break
		}
	}
	resp.Raw = b[0:i]
	resp.Data = b[1 : i-2]
	if resp.Type == Integer {
		// Integer
		if len(resp.Data) == 0 {
			return 0, RESP{} //, invalid integer
		}
		var j int
		if resp.Data[0] == '-' {
			if len(resp.Data) == 1 {
				return 0, RESP{} //, invalid integer
			}
			j++
		}
		for ; j < len(resp.Data); j++ {
			if resp.Data[j] < '0' || resp.Data[j] > '9' {
				return 0, RESP{} // invalid integer
			}
		}
		return len(resp.Raw), resp
	}
	if resp.Type == String || resp.Type == Error {
		// String, Error
		return len(resp.Raw), resp
	}
	var err error
	resp.Count, err = strconv.Atoi(string(resp.Data))
	if resp.Type == Bulk {
		// Bulk
		if err != nil {
			return 0, RESP{} // invalid number of bytes
		}
		if resp.Count < 0 {
			resp.Data = nil
			resp.Count = 0
			return len(resp.Raw), resp
		}
		if len(b) < i+resp.Count+2 {
			return 0, RESP{} // not enough data
		}
		if b[i+resp.Count] != '\r' || b[i+resp.Count+1] != '\n' {
			return 0, RESP{} // invalid end of line
		}
		resp.Data = b[i : i+resp.Count]
		resp.Raw = b[0 : i+resp.Count+2]
		resp.Count = 0
		return len(resp.Raw), resp
	}
	// Array
	if err != nil {
		return 0, RESP{} // invalid number of elements
	}
	var tn int
	sdata := b[i:]
	for j := 0; j < resp.Count; j++ {
		rn, rresp := ReadNextRESP(sdata)
		if rresp.Type == 0 {
			return 0, RESP{}
		}
		tn += rn
		sdata = sdata[rn:]
	}
	resp.Data = b[i : i+tn]
	resp.Raw = b[0 : i+tn]
	return len(resp.Raw), resp
}

// appendPrefix will append a "$3\r\n" style redis prefix for a message.
// This is an internal helper function used by AppendInt, AppendArray, and AppendBulk.
func appendPrefix(b []byte, c byte, n int64) []byte {
	if n >= 0 && n <= 9 {
		return append(b, c, byte('0'+n), '\r', '\n')
	}
	b = append(b, c)
	b = strconv.AppendInt(b, n, 10)
	return append(b, '\r', '\n')
}

// AppendInt appends a Redis protocol int64 to the input bytes.
//
// The format is ":<number>\r\n" where <number> is the signed 64-bit integer.
func AppendInt(b []byte, n int64) []byte {
	return appendPrefix(b, ':', n)
}

// AppendArray appends a Redis protocol array header to the input bytes.
//
// The format is "*<count>\r\n" where <count> is the number of elements in the array.
// After calling this, you should append each element using the appropriate Append* function.
func AppendArray(b []byte, n int) []byte {
	return appendPrefix(b, '*', int64(n))
}

// AppendBulk appends a Redis protocol bulk byte slice to the input bytes.
//
// The format is "$<len>\r\n<data>\r\n" where <len> is the length of the data
// and <data> is the actual bytes.
func AppendBulk(b []byte, bulk []byte) []byte {
	b = appendPrefix(b, '$', int64(len(bulk)))
	b = append(b, bulk...)
	return append(b, '\r', '\n')
}

// AppendBulkString appends a Redis protocol bulk string to the input bytes.
//
// This is a convenience wrapper around AppendBulk for string values.
func AppendBulkString(b []byte, bulk string) []byte {
	b = appendPrefix(b, '$', int64(len(bulk)))
	b = append(b, bulk...)
	return append(b, '\r', '\n')
}

// AppendString appends a Redis protocol simple string to the input bytes.
//
// The format is "+<string>\r\n". Simple strings cannot contain newlines, so
// any \r or \n characters are replaced with spaces.
func AppendString(b []byte, s string) []byte {
	b = append(b, '+')
	b = append(b, stripNewlines(s)...)
	return append(b, '\r', '\n')
}

// AppendError appends a Redis protocol error to the input bytes.
//
// The format is "-<message>\r\n". This function does not automatically add
// an "ERR" prefix - callers should include the appropriate error code.
func AppendError(b []byte, s string) []byte {
	b = append(b, '-')
	b = append(b, stripNewlines(s)...)
	return append(b, '\r', '\n')
}

// AppendOK appends a Redis protocol OK response ("+OK\r\n") to the input bytes.
func AppendOK(b []byte) []byte {
	return append(b, '+', 'O', 'K', '\r', '\n')
}

// AppendWrongType appends the Redis-standard WRONGTYPE error for an
// operation against a key whose value is not the type the operation
// requires.
func AppendWrongType(b []byte) []byte {
	return AppendError(b, "WRONGTYPE Operation against a key holding the wrong kind of value")
}

// AppendNotInteger appends the Redis-standard error for an INCR/INCRBY-style
// operation against a value (or argument) that does not parse as an
// integer.
func AppendNotInteger(b []byte) []byte {
	return AppendError(b, "ERR value is not an integer or out of range")
}

// AppendWrongArgs appends the Redis-standard wrong-number-of-arguments error
// for the named command.
func AppendWrongArgs(b []byte, cmd string) []byte {
	return AppendError(b, "ERR wrong number of arguments for '"+cmd+"' command")
}

func stripNewlines(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\r' || s[i] == '\n' {
			s = strings.Replace(s, "\r", " ", -1)
			s = strings.Replace(s, "\n", " ", -1)
			break
		}
	}
	return s
}

// AppendNull appends a Redis protocol null value ("$-1\r\n") to the input
// bytes, used to indicate missing or non-existent values.
func AppendNull(b []byte) []byte {
	return append(b, '$', '-', '1', '\r', '\n')
}
