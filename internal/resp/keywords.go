package resp

// Kind enumerates the commands this store understands, plus names for the
// four upstream reply kinds. A command the keyword table
// does not recognize classifies as KindUnknown; it is the dispatcher's job
// to turn that into a protocol error, not the decoder's.
type Kind int

const (
	KindUnknown Kind = iota
	KindPing
	KindQuit
	KindSelect
	KindSet
	KindSetNX
	KindGet
	KindDel
	KindExists
	KindIncr
	KindDecr
	KindIncrBy
	KindDecrBy
	KindRPush
	KindScan
	KindWatch
	KindUnwatch
	KindMulti
	KindExec
	KindConfig

	// Sub-token attributes recognized inside SCAN's argument list.
	KindMatch
	KindCount

	// Upstream reply classifications (proxy mode). Lookup never returns
	// these; the proxy adapter classifies reply frames by their decoded
	// RESP Type rather than by these values.
	KindReplyOK
	KindReplyErr
	KindReplyReturnCode
	KindReplyReturnData
)

var keywordTable = map[string]Kind{
	"PING":    KindPing,
	"QUIT":    KindQuit,
	"SELECT":  KindSelect,
	"SET":     KindSet,
	"SETNX":   KindSetNX,
	"GET":     KindGet,
	"DEL":     KindDel,
	"EXISTS":  KindExists,
	"INCR":    KindIncr,
	"DECR":    KindDecr,
	"INCRBY":  KindIncrBy,
	"DECRBY":  KindDecrBy,
	"RPUSH":   KindRPush,
	"SCAN":    KindScan,
	"WATCH":   KindWatch,
	"UNWATCH": KindUnwatch,
	"MULTI":   KindMulti,
	"EXEC":    KindExec,
	"CONFIG":  KindConfig,
	"MATCH":   KindMatch,
	"COUNT":   KindCount,
}

// upperASCII folds a single ASCII byte to uppercase without touching
// non-ASCII bytes, avoiding the allocation strings.ToUpper would cost on
// the hot path.
func upperASCII(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

// foldUpper returns an uppercased copy of b for map lookup. Callers on the
// per-command hot path should prefer Lookup, which avoids this allocation
// for the (overwhelmingly common) already-uppercase case.
func foldUpper(b []byte) string {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = upperASCII(b[i])
	}
	return string(out)
}

// isUpper reports whether b contains no lowercase ASCII letters, so Lookup
// can skip the fold-and-copy path entirely for the common case of clients
// that send commands already uppercased.
func isUpper(b []byte) bool {
	for _, c := range b {
		if c >= 'a' && c <= 'z' {
			return false
		}
	}
	return true
}

// Lookup classifies a command/attribute token case-insensitively. Unknown
// tokens return KindUnknown.
func Lookup(token []byte) Kind {
	if isUpper(token) {
		if k, ok := keywordTable[string(token)]; ok {
			return k
		}
		return KindUnknown
	}
	if k, ok := keywordTable[foldUpper(token)]; ok {
		return k
	}
	return KindUnknown
}
