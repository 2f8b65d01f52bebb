package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/platformsim/pkg/catalog"
	"github.com/rmax-ai/platformsim/pkg/scoring"
	"github.com/rmax-ai/platformsim/pkg/session"
)

type streamMessage struct {
	Kind  session.Kind    `json:"kind"`
	State json.RawMessage `json:"state"`
}

func dialStream(t *testing.T, e *testEnv) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/v1/stream"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) streamMessage {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg streamMessage
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestStream_InitialStateAndUpdates(t *testing.T) {
	e := newTestEnv(t, false)
	ws := dialStream(t, e)

	first := readMessage(t, ws)
	assert.Equal(t, session.KindSimulation, first.Kind)
	second := readMessage(t, ws)
	assert.Equal(t, session.KindPlatform, second.Kind)

	_, err := e.sess.AddComponent(context.Background(), scoring.Component{ID: "cdn-1", Type: catalog.ComponentCDN})
	require.NoError(t, err)

	msg := readMessage(t, ws)
	require.Equal(t, session.KindSimulation, msg.Kind)
	var st scoring.SimulationState
	require.NoError(t, json.Unmarshal(msg.State, &st))
	require.Len(t, st.Components, 1)
	assert.Equal(t, "cdn-1", st.Components[0].ID)
}

func TestStream_ClosedOnStop(t *testing.T) {
	e := newTestEnv(t, false)
	ws := dialStream(t, e)
	readMessage(t, ws)
	readMessage(t, ws)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.srv.Stop(ctx))

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := ws.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
}

func TestStream_RequiresUpgrade(t *testing.T) {
	e := newTestEnv(t, false)
	resp := e.do("GET", "/v1/stream", nil, nil)
	assert.Equal(t, 400, resp.StatusCode)
}
