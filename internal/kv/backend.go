package kv

import (
	"github.com/pkg/errors"

	"github.com/icefiredb-store/redhub-store/internal/wildcard"
)

// ErrDBOutOfRange is returned by LocalBackend.Select for any index other
// than 0 — the local engine exposes a single logical database (spec.md
// §3).
var ErrDBOutOfRange = errors.New("ERR DB index is out of range")

// LocalBackend adapts an *Engine to the error-returning method surface
// internal/dispatcher routes commands through, so the dispatcher can treat
// the local engine and the upstream proxy.Adapter interchangeably. Engine's
// own methods stay bool/value-returning because that is the more natural
// Go shape for a engine with no failure modes of its own; this adapter is
// the seam where that shape meets the shared Backend contract.
type LocalBackend struct {
	Engine *Engine
}

// NewLocalBackend wraps e for dispatching.
func NewLocalBackend(e *Engine) *LocalBackend {
	return &LocalBackend{Engine: e}
}

func (b *LocalBackend) Get(key string) ([]byte, bool, error) {
	val, ok := b.Engine.Get(key)
	return val, ok, nil
}

func (b *LocalBackend) Set(key string, val []byte) error {
	b.Engine.Set(key, val)
	return nil
}

func (b *LocalBackend) SetNX(key string, val []byte) (bool, error) {
	return b.Engine.SetNX(key, val), nil
}

func (b *LocalBackend) Del(key string) (bool, error) {
	return b.Engine.Del(key), nil
}

func (b *LocalBackend) Exists(key string) (bool, error) {
	return b.Engine.Exists(key), nil
}

func (b *LocalBackend) Increment(key string, delta int64) (int64, error) {
	return b.Engine.Increment(key, delta)
}

func (b *LocalBackend) Push(key string, val []byte) (int, error) {
	return b.Engine.Push(key, val)
}

func (b *LocalBackend) Select(i int) error {
	if !b.Engine.Select(i) {
		return ErrDBOutOfRange
	}
	return nil
}

func (b *LocalBackend) Watch(keys ...string) error {
	b.Engine.Watch(keys...)
	return nil
}

func (b *LocalBackend) Unwatch() error {
	b.Engine.Unwatch()
	return nil
}

func (b *LocalBackend) Scan(cursor, count int, match string) ([]string, int, error) {
	var m *wildcard.Matcher
	if match != "" {
		m = wildcard.Compile(match)
	}
	keys, next := b.Engine.Scan(cursor, count, m)
	return keys, next, nil
}
