package main

import (
	"bufio"
	"io"
	"os"
	"strings"
	"time"

	"github.com/panjf2000/gnet/v2"
	"go.uber.org/zap"

	"github.com/icefiredb-store/redhub-store/internal/dispatcher"
	"github.com/icefiredb-store/redhub-store/internal/redhub"
	"github.com/icefiredb-store/redhub-store/internal/resp"
)

// consoleConn stands in for a client connection when dispatching operator
// commands: it only needs to carry per-"connection" MULTI/EXEC state
// between lines typed at the console, so it satisfies gnet.Conn by
// embedding a nil interface and overriding the two methods the dispatcher
// actually calls.
type consoleConn struct {
	gnet.Conn
	ctx interface{}
}

func (c *consoleConn) Context() interface{}     { return c.ctx }
func (c *consoleConn) SetContext(v interface{}) { c.ctx = v }

// runConsole implements spec.md §6's operator interface: a stdin line
// reader that terminates the process on bye/quit/exit, dispatches any other
// line as an inline RESP command through the local engine (even in proxy
// mode — operator commands have no client connection to proxy through),
// and replays a script file line-by-line when given "file <path>".
//
// Generalized from the original's hardcoded test/file1/... sentinel
// commands (original_source/ext's scripted test-harness convention) into an
// explicit "file" keyword.
func runConsole(d *dispatcher.Dispatcher, logger *zap.Logger) {
	conn := &redhub.Conn{Conn: &consoleConn{}}
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "bye", "quit", "exit":
			logger.Info("operator console requested shutdown")
			os.Exit(0)
		}
		if rest, ok := strings.CutPrefix(line, "file "); ok {
			replayFile(d, conn, strings.TrimSpace(rest), logger)
			continue
		}
		dispatchLine(d, conn, line, logger)
	}
}

// dispatchLine parses one line of operator input as an inline RESP command
// and runs it through the dispatcher, logging (but not printing to stdout)
// the reply — the console is a control surface, not a REPL.
func dispatchLine(d *dispatcher.Dispatcher, conn *redhub.Conn, line string, logger *zap.Logger) {
	cmds, _, err := resp.ReadCommands([]byte(line + "\n"))
	if err != nil {
		logger.Warn("operator command parse error", zap.Error(err), zap.String("line", line))
		return
	}
	var out []byte
	for _, cmd := range cmds {
		var action redhub.Action
		out, action = d.Handle(conn, cmd, out)
		if action == redhub.Close {
			break
		}
	}
	logger.Info("operator command", zap.String("line", line), zap.ByteString("reply", out))
}

// replayFile plays back path line-by-line with a 20ms delay between lines,
// the same scripted-input facility spec.md §6 describes for driving tests.
func replayFile(d *dispatcher.Dispatcher, conn *redhub.Conn, path string, logger *zap.Logger) {
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("failed to open script file", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			dispatchLine(d, conn, line, logger)
		}
		if err != nil {
			if err != io.EOF {
				logger.Warn("script replay error", zap.String("path", path), zap.Error(err))
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}
