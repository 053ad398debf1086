package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"mdvrp/internal/events"
)

// TypeRunState is the first message of every event stream: the run as
// stored when the client connected.
const TypeRunState = "run.state"

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
	wsWriteWait  = 10 * time.Second
)

// wsStatusPoll is how often a stream re-reads the run from the store, so
// it still ends when the broker dropped the terminal event.
var wsStatusPoll = 5 * time.Second

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// RunEventsHandler streams the events of one run as JSON text messages.
// The connection is closed after the run completes or fails.
func (s *Server) RunEventsHandler(w http.ResponseWriter, r *http.Request, runID string) {
	// Subscribe before reading the state so no event falls in between.
	ch := s.Broker.Subscribe(runID)
	defer s.Broker.Unsubscribe(runID, ch)
	run, err := s.Store.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, r, "Get run failed", err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	write := func(evt events.Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(evt)
	}
	closeStream := func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
	}

	if err := write(events.Event{Type: TypeRunState, Data: map[string]any{"run": run}}); err != nil {
		return
	}
	if run.Status.Done() {
		closeStream()
		return
	}

	// Reader: only control frames are expected; it ends on disconnect.
	gone := make(chan struct{})
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(wsPongWait)); return nil })
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	poll := time.NewTicker(wsStatusPoll)
	defer poll.Stop()
	for {
		select {
		case <-gone:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-poll.C:
			ctx, cancel := context.WithTimeout(context.Background(), wsWriteWait)
			cur, err := s.Store.GetRun(ctx, runID)
			cancel()
			if err != nil || !cur.Status.Done() {
				continue
			}
			_ = write(events.Event{Type: TypeRunState, Data: map[string]any{"run": cur}})
			closeStream()
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := write(evt); err != nil {
				return
			}
			if evt.Type == events.TypeRunCompleted || evt.Type == events.TypeRunFailed {
				closeStream()
				return
			}
		}
	}
}
