package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rmax-ai/platformsim/pkg/session"
)

const (
	streamBuffer = 64
	writeWait    = 10 * time.Second
	pingPeriod   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleStream upgrades to a websocket and pushes every session update as
// {"kind":...,"state":...}. The current simulation and platform states are
// sent first. A client that falls streamBuffer updates behind is closed
// with 1013 so engines never block on the network.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("stream_upgrade_failed", "trace_id", getTraceID(r.Context()), "error", err)
		return
	}
	defer ws.Close()

	updates := make(chan session.Update, streamBuffer)
	overflow := make(chan struct{})
	var once sync.Once
	push := func(u session.Update) {
		select {
		case updates <- u:
		default:
			once.Do(func() { close(overflow) })
		}
	}

	unsub := s.session.Subscribe(push)
	defer unsub()
	push(session.Update{Kind: session.KindSimulation, State: s.session.Simulation()})
	push(session.Update{Kind: session.KindPlatform, State: s.session.Platform()})

	// the read side only detects the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	traceID := getTraceID(r.Context())
	s.logger.Info("stream_connected", "trace_id", traceID)
	defer s.logger.Info("stream_disconnected", "trace_id", traceID)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case u := <-updates:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(u); err != nil {
				s.logger.Warn("stream_write_failed", "trace_id", traceID, "error", err)
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-overflow:
			s.logger.Warn("stream_overflow", "trace_id", traceID)
			closeStream(ws, websocket.CloseTryAgainLater, "slow consumer")
			return
		case <-s.done:
			closeStream(ws, websocket.CloseGoingAway, "server stopping")
			return
		case <-gone:
			return
		}
	}
}

func closeStream(ws *websocket.Conn, code int, text string) {
	ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}
