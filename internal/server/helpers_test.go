package server

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/lox/voterps/internal/game"
	"github.com/lox/voterps/internal/randutil"
	"github.com/lox/voterps/internal/snapshot"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// fakeConn records what the engine sends to it.
type fakeConn struct {
	id     string
	msgs   []*Message
	closed bool
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) SendMessage(msg *Message) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func (f *fakeConn) types() []MessageType {
	out := make([]MessageType, 0, len(f.msgs))
	for _, m := range f.msgs {
		out = append(out, m.Type)
	}
	return out
}

func (f *fakeConn) reset() {
	f.msgs = nil
}

// last decodes the most recent message of type t into a value of type T.
func last[T any](t *testing.T, f *fakeConn, typ MessageType) T {
	t.Helper()
	for i := len(f.msgs) - 1; i >= 0; i-- {
		if f.msgs[i].Type == typ {
			var v T
			require.NoError(t, json.Unmarshal(f.msgs[i].Data, &v))
			return v
		}
	}
	require.Failf(t, "message not found", "%s has no %s message, got %v", f.id, typ, f.types())
	var zero T
	return zero
}

type recordingExporter struct {
	records []snapshot.Record
}

func (r *recordingExporter) Export(rec snapshot.Record) bool {
	r.records = append(r.records, rec)
	return true
}

type harness struct {
	t        *testing.T
	engine   *Engine
	exporter *recordingExporter
	conns    map[string]*fakeConn
}

func newHarness(t *testing.T, cfg game.Config) *harness {
	t.Helper()
	exp := &recordingExporter{}
	return &harness{
		t:        t,
		engine:   NewEngine(game.NewRegistry(cfg, randutil.New(7)), exp, testLogger()),
		exporter: exp,
		conns:    make(map[string]*fakeConn),
	}
}

func (h *harness) connect(id string) *fakeConn {
	c := &fakeConn{id: id}
	h.conns[id] = c
	h.engine.Dispatch(ConnectEvent{Conn: c})
	return c
}

// join connects (if needed) and joins code as name on connection connID.
func (h *harness) join(connID, code, name string) *fakeConn {
	c, ok := h.conns[connID]
	if !ok {
		c = h.connect(connID)
	}
	h.engine.Dispatch(JoinEvent{ConnID: connID, Code: code, Name: name})
	return c
}

func (h *harness) ready(connIDs ...string) {
	for _, id := range connIDs {
		h.engine.Dispatch(ReadyEvent{ConnID: id})
	}
}

func (h *harness) session(code string) *game.Session {
	h.t.Helper()
	s, ok := h.engine.registry.Get(code)
	require.True(h.t, ok, "session %s not live", code)
	return s
}

func (h *harness) resetAll() {
	for _, c := range h.conns {
		c.reset()
	}
}
