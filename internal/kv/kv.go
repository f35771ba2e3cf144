// Package kv implements the local, in-memory key/value engine: a single
// mutex guarding a map from key to a tagged String-or-List value.
//
// Ported from original_source/src/KeyValueDatabase.cpp
// (KeyValueDatabaseImpl), translated from a callback+user-pointer API into
// direct result-returning methods, per the redesign cue in spec.md §9.
package kv

import (
	"sort"
	"strconv"
	"sync"

	"github.com/icefiredb-store/redhub-store/internal/wildcard"
)

// Kind distinguishes the two value shapes a key can hold.
type Kind int

const (
	KindString Kind = iota
	KindList
)

// Value is a tagged sequence of immutable byte blocks. A String value has
// exactly one logical payload (SET replaces the whole slice); a List value
// grows one block per RPUSH.
type Value struct {
	Kind   Kind
	blocks [][]byte
}

// Bytes returns the first block's bytes, which is the whole payload for a
// String value and the head element for a List.
func (v *Value) Bytes() []byte {
	if len(v.blocks) == 0 {
		return nil
	}
	return v.blocks[0]
}

// Len returns the number of blocks, which is the list length for a List
// value (1 for a String value).
func (v *Value) Len() int {
	return len(v.blocks)
}

// isIntegerLooking reports whether the first byte of b could begin a
// base-10 integer. This is the spec's "integer-looking" check: a cheap
// first-byte test, not a full parse.
func isIntegerLooking(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	c := b[0]
	return (c >= '0' && c <= '9') || c == '+' || c == '-'
}

// ErrWrongType is returned when an operation is attempted against a key
// whose value has an incompatible tag (e.g. RPUSH on a String).
type ErrWrongType struct{}

func (ErrWrongType) Error() string { return "WRONGTYPE Operation against a key holding the wrong kind of value" }

// ErrNotInteger is returned when an increment-family operation is attempted
// against a value that is not integer-looking.
type ErrNotInteger struct{}

func (ErrNotInteger) Error() string { return "ERR value is not an integer or out of range" }

// Engine is the concurrent key/value store. The zero value is not usable;
// construct with New.
type Engine struct {
	mu   sync.RWMutex
	data map[string]*Value
}

// New returns an empty Engine.
func New() *Engine {
	return &Engine{data: make(map[string]*Value)}
}

// Get returns the first block's bytes for key and true, or (nil, false) if
// key is absent.
func (e *Engine) Get(key string) ([]byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.data[key]
	if !ok {
		return nil, false
	}
	return v.Bytes(), true
}

// Set inserts or replaces key with a single-block String value.
func (e *Engine) Set(key string, val []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data[key] = &Value{Kind: KindString, blocks: [][]byte{cloneBytes(val)}}
}

// SetNX inserts key only if absent. Returns true if the insert happened.
func (e *Engine) SetNX(key string, val []byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.data[key]; ok {
		return false
	}
	e.data[key] = &Value{Kind: KindString, blocks: [][]byte{cloneBytes(val)}}
	return true
}

// Del removes key. Returns true if a key was actually removed.
func (e *Engine) Del(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.data[key]; !ok {
		return false
	}
	delete(e.data, key)
	return true
}

// Exists reports whether key is present, regardless of value type.
func (e *Engine) Exists(key string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.data[key]
	return ok
}

// Increment adds delta to the integer value stored at key, creating it as
// delta if absent. Returns the new value, or an error if key holds a
// non-integer-looking string.
func (e *Engine) Increment(key string, delta int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.data[key]
	if !ok {
		e.data[key] = &Value{Kind: KindString, blocks: [][]byte{[]byte(strconv.FormatInt(delta, 10))}}
		return delta, nil
	}
	if v.Kind != KindString || !isIntegerLooking(v.Bytes()) {
		return 0, ErrNotInteger{}
	}
	cur, err := strconv.ParseInt(string(v.Bytes()), 10, 64)
	if err != nil {
		return 0, ErrNotInteger{}
	}
	next := cur + delta
	v.blocks = [][]byte{[]byte(strconv.FormatInt(next, 10))}
	return next, nil
}

// Push appends val as a new block to the list at key, creating the list if
// absent. Returns the new length, or ErrWrongType if key holds a String.
func (e *Engine) Push(key string, val []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.data[key]
	if !ok {
		e.data[key] = &Value{Kind: KindList, blocks: [][]byte{cloneBytes(val)}}
		return 1, nil
	}
	if v.Kind != KindList {
		return 0, ErrWrongType{}
	}
	v.blocks = append(v.blocks, cloneBytes(val))
	return len(v.blocks), nil
}

// Select reports whether database index i is supported. The local engine
// exposes a single logical database, index 0, per spec.md §3.
func (e *Engine) Select(i int) bool {
	return i == 0
}

// Watch is a no-op: the engine keeps no watch state, and the local engine's
// WATCH never causes EXEC to abort (spec.md §9's documented stub
// behavior). The per-connection watched-key set lives in the dispatcher.
func (e *Engine) Watch(keys ...string) {}

// Unwatch is a no-op for the same reason as Watch.
func (e *Engine) Unwatch() {}

// Scan walks the keys in sorted order starting at position cursor (an index
// into the sorted key list, counting every key whether or not it matches),
// collecting up to max matches, and returns the resulting keys plus the
// position to resume from (0 if iteration reached the end).
func (e *Engine) Scan(cursor int, max int, match *wildcard.Matcher) ([]string, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys := make([]string, 0, len(e.data))
	for k := range e.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if cursor >= len(keys) {
		return nil, 0
	}

	var out []string
	i := cursor
	for ; i < len(keys) && len(out) < max; i++ {
		if match == nil || match.IsMatch(keys[i]) {
			out = append(out, keys[i])
		}
	}
	if i >= len(keys) {
		return out, 0
	}
	return out, i
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
