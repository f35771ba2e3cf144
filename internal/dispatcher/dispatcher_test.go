package dispatcher

import (
	"testing"

	"github.com/panjf2000/gnet/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icefiredb-store/redhub-store/internal/kv"
	"github.com/icefiredb-store/redhub-store/internal/redhub"
	"github.com/icefiredb-store/redhub-store/internal/resp"
)

// fakeGnetConn satisfies gnet.Conn by embedding a nil interface and
// overriding only the two methods redhub.Conn actually calls from the
// dispatcher's side: Context and SetContext.
type fakeGnetConn struct {
	gnet.Conn
	ctx interface{}
}

func (f *fakeGnetConn) Context() interface{}     { return f.ctx }
func (f *fakeGnetConn) SetContext(v interface{}) { f.ctx = v }

func newConn() *redhub.Conn {
	return &redhub.Conn{Conn: &fakeGnetConn{}}
}

func cmd(parts ...string) resp.Command {
	var c resp.Command
	for _, p := range parts {
		c.Args = append(c.Args, []byte(p))
	}
	return c
}

func newLocalDispatcher() *Dispatcher {
	engine := kv.New()
	backend := kv.NewLocalBackend(engine)
	return New(func() (Backend, error) { return backend, nil })
}

func TestPing(t *testing.T) {
	d := newLocalDispatcher()
	c := newConn()
	out, action := d.Handle(c, cmd("PING"), nil)
	assert.Equal(t, "+PONG\r\n", string(out))
	assert.Equal(t, redhub.None, action)
}

func TestSetGet(t *testing.T) {
	d := newLocalDispatcher()
	c := newConn()
	out, _ := d.Handle(c, cmd("SET", "foo", "bar"), nil)
	out, _ = d.Handle(c, cmd("GET", "foo"), out)
	assert.Equal(t, "+OK\r\n$3\r\nbar\r\n", string(out))
}

func TestIncrTwiceThenGet(t *testing.T) {
	d := newLocalDispatcher()
	c := newConn()
	var out []byte
	out, _ = d.Handle(c, cmd("INCR", "k"), out)
	out, _ = d.Handle(c, cmd("INCR", "k"), out)
	out, _ = d.Handle(c, cmd("GET", "k"), out)
	assert.Equal(t, ":1\r\n:2\r\n$1\r\n2\r\n", string(out))
}

func TestExistsMissing(t *testing.T) {
	d := newLocalDispatcher()
	c := newConn()
	out, _ := d.Handle(c, cmd("EXISTS", "nope"), nil)
	assert.Equal(t, ":0\r\n", string(out))
}

func TestMultiExec(t *testing.T) {
	d := newLocalDispatcher()
	c := newConn()
	var out []byte
	var action redhub.Action
	out, action = d.Handle(c, cmd("MULTI"), out)
	assert.Equal(t, redhub.None, action)
	out, _ = d.Handle(c, cmd("SET", "a", "1"), out)
	out, _ = d.Handle(c, cmd("SET", "b", "2"), out)
	out, _ = d.Handle(c, cmd("EXEC"), out)
	assert.Equal(t, "+OK\r\n+QUEUED\r\n+QUEUED\r\n*2\r\n+OK\r\n+OK\r\n", string(out))
}

func TestMultiSingleSetExec(t *testing.T) {
	d := newLocalDispatcher()
	c := newConn()
	var out []byte
	out, _ = d.Handle(c, cmd("MULTI"), out)
	out, _ = d.Handle(c, cmd("SET", "a", "1"), out)
	out, _ = d.Handle(c, cmd("EXEC"), out)
	assert.Equal(t, "+OK\r\n+QUEUED\r\n*1\r\n+OK\r\n", string(out))
}

func TestExecWithoutMulti(t *testing.T) {
	d := newLocalDispatcher()
	c := newConn()
	out, _ := d.Handle(c, cmd("EXEC"), nil)
	assert.Equal(t, "-ERR EXEC without MULTI\r\n", string(out))
}

func TestNestedMulti(t *testing.T) {
	d := newLocalDispatcher()
	c := newConn()
	var out []byte
	out, _ = d.Handle(c, cmd("MULTI"), out)
	out, _ = d.Handle(c, cmd("MULTI"), out)
	assert.Equal(t, "+OK\r\n-ERR MULTI calls can not be nested\r\n", string(out))
}

func TestRPushWrongType(t *testing.T) {
	d := newLocalDispatcher()
	c := newConn()
	var out []byte
	out, _ = d.Handle(c, cmd("RPUSH", "k", "v1"), out)
	out, _ = d.Handle(c, cmd("RPUSH", "k", "v2"), out)
	out, _ = d.Handle(c, cmd("SET", "k", "x"), out)
	out, _ = d.Handle(c, cmd("RPUSH", "k", "v3"), out)
	assert.Equal(t, ":1\r\n:2\r\n+OK\r\n-WRONGTYPE Operation against a key holding the wrong kind of value\r\n", string(out))
}

func TestIncrNonInteger(t *testing.T) {
	d := newLocalDispatcher()
	c := newConn()
	var out []byte
	out, _ = d.Handle(c, cmd("SET", "k", "abc"), out)
	out, _ = d.Handle(c, cmd("INCR", "k"), out)
	assert.Equal(t, "+OK\r\n-ERR value is not an integer or out of range\r\n", string(out))
}

func TestScanMatch(t *testing.T) {
	d := newLocalDispatcher()
	c := newConn()
	var out []byte
	out, _ = d.Handle(c, cmd("SET", "foo", "1"), out)
	out, _ = d.Handle(c, cmd("SET", "fob", "2"), out)
	out, _ = d.Handle(c, cmd("SET", "bar", "3"), out)
	out, _ = d.Handle(c, cmd("SCAN", "0", "MATCH", "fo*"), out)
	assert.Contains(t, string(out), "foo")
	assert.Contains(t, string(out), "fob")
	assert.NotContains(t, string(out), "bar\r\n")
}

func TestWrongNumberOfArguments(t *testing.T) {
	d := newLocalDispatcher()
	c := newConn()
	out, _ := d.Handle(c, cmd("SET", "onlykey"), nil)
	assert.Equal(t, "-ERR wrong number of arguments for 'SET' command\r\n", string(out))
}

func TestUnknownCommand(t *testing.T) {
	d := newLocalDispatcher()
	c := newConn()
	out, _ := d.Handle(c, cmd("FROBNICATE"), nil)
	assert.Equal(t, "-ERR unknown command 'FROBNICATE'\r\n", string(out))
}

func TestQuitClosesConnection(t *testing.T) {
	d := newLocalDispatcher()
	c := newConn()
	out, action := d.Handle(c, cmd("QUIT"), nil)
	assert.Equal(t, "+OK\r\n", string(out))
	assert.Equal(t, redhub.Close, action)
}

func TestSelectOnlyZero(t *testing.T) {
	d := newLocalDispatcher()
	c := newConn()
	out, _ := d.Handle(c, cmd("SELECT", "0"), nil)
	assert.Equal(t, "+OK\r\n", string(out))
	out, _ = d.Handle(c, cmd("SELECT", "1"), nil)
	assert.Equal(t, "-ERR DB index is out of range\r\n", string(out))
}

func TestConfigStub(t *testing.T) {
	d := newLocalDispatcher()
	c := newConn()
	out, _ := d.Handle(c, cmd("CONFIG", "GET", "maxmemory"), nil)
	assert.Equal(t, "*2\r\n$9\r\nmaxmemory\r\n$0\r\n\r\n", string(out))
}

func TestBackendConstructedOncePerConnection(t *testing.T) {
	var calls int
	engine := kv.New()
	backend := kv.NewLocalBackend(engine)
	d := New(func() (Backend, error) {
		calls++
		return backend, nil
	})
	c := newConn()
	d.Handle(c, cmd("PING"), nil)
	d.Handle(c, cmd("PING"), nil)
	require.Equal(t, 1, calls)
}
